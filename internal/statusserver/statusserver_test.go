package statusserver

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/keshon/driveby/internal/music/session"
	"github.com/keshon/driveby/internal/storage"
)

type fakeSession struct{ snap session.Snapshot }

func (f fakeSession) Snapshot() session.Snapshot { return f.snap }

type fakeHistory struct{ err error }

func (f fakeHistory) FetchCommandHistory(string) ([]storage.CommandHistoryRecord, error) {
	return []storage.CommandHistoryRecord{{Command: "play", Param: "https://x"}}, f.err
}

func (f fakeHistory) FetchTrackHistory(string) ([]storage.TrackHistoryRecord, error) {
	return []storage.TrackHistoryRecord{{Title: "song"}}, nil
}

type fakeJobs struct{}

func (fakeJobs) List() []string { return []string{"c:u:message"} }

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := jsoniter.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, body)
		}
	}
	return resp.StatusCode
}

func TestEndpoints(t *testing.T) {
	snap := session.Snapshot{
		Active:     true,
		GuildID:    "g",
		Supervisor: "active",
		Tracks:     []session.TrackView{{Position: 0, Title: "song", State: "playing"}},
	}
	s := New(Options{Session: fakeSession{snap}, History: fakeHistory{}, Jobs: fakeJobs{}})

	var health map[string]string
	if code := get(t, s, "/healthz", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, health)
	}

	var gotSnap session.Snapshot
	if code := get(t, s, "/queue", &gotSnap); code != http.StatusOK {
		t.Fatalf("queue status = %d", code)
	}
	if !gotSnap.Active || gotSnap.GuildID != "g" || len(gotSnap.Tracks) != 1 || gotSnap.Tracks[0].State != "playing" {
		t.Fatalf("snapshot = %+v", gotSnap)
	}

	var hist struct {
		GuildID  string                         `json:"guild_id"`
		Commands []storage.CommandHistoryRecord `json:"commands"`
		Tracks   []storage.TrackHistoryRecord   `json:"tracks"`
	}
	if code := get(t, s, "/history/g", &hist); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if hist.GuildID != "g" || len(hist.Commands) != 1 || hist.Tracks[0].Title != "song" {
		t.Fatalf("history = %+v", hist)
	}

	var jobs map[string][]string
	if code := get(t, s, "/jobs", &jobs); code != http.StatusOK || len(jobs["lanes"]) != 1 {
		t.Fatalf("jobs = %d %v", code, jobs)
	}
}

func TestHistoryError(t *testing.T) {
	s := New(Options{Session: fakeSession{}, History: fakeHistory{err: errors.New("disk")}})
	if code := get(t, s, "/history/g", nil); code != http.StatusInternalServerError {
		t.Fatalf("status = %d", code)
	}
}

func TestOptionalRoutes(t *testing.T) {
	s := New(Options{Session: fakeSession{}})
	if code := get(t, s, "/history/g", nil); code != http.StatusNotFound {
		t.Fatalf("history without store = %d", code)
	}
	if code := get(t, s, "/jobs", nil); code != http.StatusNotFound {
		t.Fatalf("jobs without manager = %d", code)
	}
}

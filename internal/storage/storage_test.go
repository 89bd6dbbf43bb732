package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/keshon/driveby/internal/datastore"
	"github.com/keshon/driveby/internal/music"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	ds, err := datastore.Open(datastore.Config{FilePath: filepath.Join(t.TempDir(), "store.json")})
	if err != nil {
		t.Fatal(err)
	}
	s := NewWithStore(ds)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommandHistoryIsCapped(t *testing.T) {
	s := newTestStorage(t)

	for i := range commandHistoryLimit + 5 {
		err := s.AppendCommandToHistory("g", CommandHistoryRecord{Command: "play", Param: fmt.Sprint(i)})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FetchCommandHistory("g")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != commandHistoryLimit {
		t.Fatalf("len = %d, want %d", len(got), commandHistoryLimit)
	}
	if got[0].Param != "5" || got[len(got)-1].Param != fmt.Sprint(commandHistoryLimit+4) {
		t.Fatalf("kept the wrong window: first=%s last=%s", got[0].Param, got[len(got)-1].Param)
	}
	if got[0].Datetime.IsZero() {
		t.Fatal("Datetime was not stamped")
	}
}

func TestTrackHistoryIsCappedPerGuild(t *testing.T) {
	s := newTestStorage(t)

	for i := range tracksHistoryLimit + 3 {
		meta := music.Metadata{Title: fmt.Sprintf("t%d", i), Source: "https://x", Duration: time.Minute}
		if err := s.AppendTrack("g1", meta); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AppendTrack("g2", music.Metadata{Title: "other"}); err != nil {
		t.Fatal(err)
	}

	g1, _ := s.FetchTrackHistory("g1")
	if len(g1) != tracksHistoryLimit || g1[0].Title != "t3" {
		t.Fatalf("g1 history = %d entries, first %q", len(g1), g1[0].Title)
	}
	if g1[0].Duration != time.Minute {
		t.Fatalf("duration = %v", g1[0].Duration)
	}
	g2, _ := s.FetchTrackHistory("g2")
	if len(g2) != 1 || g2[0].Title != "other" {
		t.Fatalf("g2 history = %+v", g2)
	}
}

func TestEmptyGuild(t *testing.T) {
	s := newTestStorage(t)
	cmds, err := s.FetchCommandHistory("nobody")
	if err != nil || cmds == nil || len(cmds) != 0 {
		t.Fatalf("commands = %v, %v", cmds, err)
	}
	tracks, err := s.FetchTrackHistory("nobody")
	if err != nil || tracks == nil || len(tracks) != 0 {
		t.Fatalf("tracks = %v, %v", tracks, err)
	}
}

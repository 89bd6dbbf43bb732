package queue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music"
)

type fakeHandle struct {
	state    music.PlayState
	plays    int
	pauses   int
	stops    int
	failNext error
}

func (h *fakeHandle) Play() error {
	if err := h.take(); err != nil {
		return err
	}
	h.plays++
	if h.state != music.StateEnded {
		h.state = music.StatePlaying
	}
	return nil
}

func (h *fakeHandle) Pause() error {
	if err := h.take(); err != nil {
		return err
	}
	h.pauses++
	if h.state == music.StatePlaying {
		h.state = music.StatePaused
	}
	return nil
}

func (h *fakeHandle) Stop() error {
	if err := h.take(); err != nil {
		return err
	}
	h.stops++
	h.state = music.StateEnded
	return nil
}

func (h *fakeHandle) State() music.PlayState { return h.state }

func (h *fakeHandle) take() error {
	err := h.failNext
	h.failNext = nil
	return err
}

func newTrack(name string) *music.Track {
	return music.NewTrack(uuid.New(), music.Metadata{Title: name}, &fakeHandle{})
}

func handle(t *music.Track) *fakeHandle { return t.Handle.(*fakeHandle) }

func titles(q *Queue) []string {
	out := make([]string, 0, q.Len())
	for _, t := range q.Tracks() {
		out = append(out, t.Title)
	}
	return out
}

func fill(t *testing.T, q *Queue, names ...string) []*music.Track {
	t.Helper()
	ts := make([]*music.Track, len(names))
	for i, n := range names {
		ts[i] = newTrack(n)
	}
	if err := q.Enqueue(ts...); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return ts
}

func equal(a, b []string) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestEnqueue_StartsFirstOnEmpty(t *testing.T) {
	q := New()
	ts := fill(t, q, "a", "b", "c")

	if handle(ts[0]).state != music.StatePlaying {
		t.Fatalf("head state = %v, want playing", handle(ts[0]).state)
	}
	for _, tr := range ts[1:] {
		if handle(tr).state != music.StateIdle {
			t.Errorf("%s state = %v, want idle", tr.Title, handle(tr).state)
		}
	}

	more := newTrack("d")
	if err := q.Enqueue(more); err != nil {
		t.Fatal(err)
	}
	if handle(more).plays != 0 {
		t.Fatal("tail track must not start on a non-empty queue")
	}
	if got := titles(q); !equal(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestPlay_JumpsAheadAndPausesCurrent(t *testing.T) {
	q := New()
	ts := fill(t, q, "a", "b")

	x := newTrack("x")
	if err := q.Play(x); err != nil {
		t.Fatal(err)
	}

	if got := titles(q); !equal(got, []string{"x", "a", "b"}) {
		t.Fatalf("order = %v", got)
	}
	if handle(ts[0]).state != music.StatePaused {
		t.Errorf("old head state = %v, want paused", handle(ts[0]).state)
	}
	if handle(x).state != music.StatePlaying {
		t.Errorf("new head state = %v, want playing", handle(x).state)
	}
}

func TestPlay_PauseFailureLeavesQueueAlone(t *testing.T) {
	q := New()
	ts := fill(t, q, "a")
	handle(ts[0]).failNext = errors.New("boom")

	err := q.Play(newTrack("x"))
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("kind = %v, want transport", apperr.KindOf(err))
	}
	if got := titles(q); !equal(got, []string{"a"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestNext(t *testing.T) {
	t.Run("empty queue plays first", func(t *testing.T) {
		q := New()
		x, y := newTrack("x"), newTrack("y")
		if err := q.Next(x, y); err != nil {
			t.Fatal(err)
		}
		if got := titles(q); !equal(got, []string{"x", "y"}) {
			t.Fatalf("order = %v", got)
		}
		if handle(x).state != music.StatePlaying {
			t.Fatal("first track should be playing")
		}
	})

	t.Run("inserts after current in order", func(t *testing.T) {
		q := New()
		fill(t, q, "a", "b", "c")
		if err := q.Next(newTrack("x"), newTrack("y")); err != nil {
			t.Fatal(err)
		}
		if got := titles(q); !equal(got, []string{"a", "x", "y", "b", "c"}) {
			t.Fatalf("order = %v", got)
		}
	})
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    []string
		wantIdx int
	}{
		{name: "single", indices: []int{2}, want: []string{"a", "b", "d"}},
		{name: "several", indices: []int{1, 3}, want: []string{"a", "c"}},
		{name: "duplicates collapse", indices: []int{2, 2}, want: []string{"a", "b", "d"}},
		{name: "current is not removable", indices: []int{0}, wantIdx: 0},
		{name: "past the end", indices: []int{4}, wantIdx: 4},
		{name: "one bad index rejects all", indices: []int{1, 9}, wantIdx: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			ts := fill(t, q, "a", "b", "c", "d")

			err := q.Remove(tt.indices)
			if tt.want == nil {
				var iie *InvalidIndexError
				if !errors.As(err, &iie) || iie.Index != tt.wantIdx {
					t.Fatalf("err = %v, want InvalidIndexError{%d}", err, tt.wantIdx)
				}
				if apperr.KindOf(err) != apperr.KindQueue {
					t.Errorf("kind = %v, want queue", apperr.KindOf(err))
				}
				if got := titles(q); !equal(got, []string{"a", "b", "c", "d"}) {
					t.Fatalf("queue changed on error: %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := titles(q); !equal(got, tt.want) {
				t.Fatalf("order = %v, want %v", got, tt.want)
			}
			if handle(ts[0]).state != music.StatePlaying {
				t.Error("current track must keep playing")
			}
			for _, i := range tt.indices {
				if handle(ts[i]).stops != 1 {
					t.Errorf("track %d stopped %d times, want 1", i, handle(ts[i]).stops)
				}
			}
		})
	}
}

func TestRemove_EmptyQueue(t *testing.T) {
	if err := New().Remove([]int{1}); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("err = %v, want ErrEmptyQueue", err)
	}
}

func TestGoto_EqualsRepeatedSkip(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			names := []string{"a", "b", "c", "d", "e"}

			viaGoto := New()
			fill(t, viaGoto, names...)
			if err := viaGoto.Goto(k); err != nil {
				t.Fatal(err)
			}

			viaSkip := New()
			fill(t, viaSkip, names...)
			for range k {
				if err := viaSkip.Skip(); err != nil {
					t.Fatal(err)
				}
			}

			if a, b := titles(viaGoto), titles(viaSkip); !equal(a, b) {
				t.Fatalf("goto %v != skip %v", a, b)
			}
			if viaGoto.Current().Title != names[k] {
				t.Fatalf("current = %s, want %s", viaGoto.Current().Title, names[k])
			}
			if handle(viaGoto.Current()).state != music.StatePlaying {
				t.Fatal("new current should be playing")
			}
		})
	}
}

func TestGoto_Errors(t *testing.T) {
	if err := New().Goto(1); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("err = %v, want ErrEmptyQueue", err)
	}

	q := New()
	fill(t, q, "a", "b")
	for _, k := range []int{0, 2, -1} {
		var iie *InvalidIndexError
		if err := q.Goto(k); !errors.As(err, &iie) {
			t.Errorf("Goto(%d) err = %v, want InvalidIndexError", k, err)
		}
	}
}

func TestClear(t *testing.T) {
	if err := New().Clear(); !errors.Is(err, ErrEmptyQueueCannotClear) {
		t.Fatalf("err = %v, want ErrEmptyQueueCannotClear", err)
	}

	q := New()
	ts := fill(t, q, "a", "b", "c")
	if err := q.Clear(); err != nil {
		t.Fatal(err)
	}
	if got := titles(q); !equal(got, []string{"a"}) {
		t.Fatalf("order = %v", got)
	}
	if handle(ts[0]).state != music.StatePlaying {
		t.Error("current track must keep playing")
	}
	for _, tr := range ts[1:] {
		if handle(tr).state != music.StateEnded {
			t.Errorf("%s not stopped", tr.Title)
		}
	}

	if err := q.Clear(); err != nil {
		t.Fatalf("clearing a single-track queue should succeed: %v", err)
	}
}

func TestPauseResumeSkipStop_EmptyQueue(t *testing.T) {
	q := New()
	for name, fn := range map[string]func() error{
		"pause":  q.Pause,
		"resume": q.Resume,
		"skip":   q.Skip,
		"stop":   q.Stop,
	} {
		if err := fn(); !errors.Is(err, ErrNothingPlaying) {
			t.Errorf("%s err = %v, want ErrNothingPlaying", name, err)
		}
	}
}

func TestPauseResume(t *testing.T) {
	q := New()
	ts := fill(t, q, "a")

	if err := q.Pause(); err != nil {
		t.Fatal(err)
	}
	if handle(ts[0]).state != music.StatePaused {
		t.Fatalf("state = %v, want paused", handle(ts[0]).state)
	}
	if err := q.Resume(); err != nil {
		t.Fatal(err)
	}
	if handle(ts[0]).state != music.StatePlaying {
		t.Fatalf("state = %v, want playing", handle(ts[0]).state)
	}

	handle(ts[0]).failNext = errors.New("gone")
	if err := q.Pause(); apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("kind = %v, want transport", apperr.KindOf(err))
	}
}

func TestStop_EmptiesQueue(t *testing.T) {
	q := New()
	ts := fill(t, q, "a", "b")
	if err := q.Stop(); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
	for _, tr := range ts {
		if handle(tr).state != music.StateEnded {
			t.Errorf("%s not stopped", tr.Title)
		}
	}
}

func TestAdvance(t *testing.T) {
	q := New()
	ts := fill(t, q, "a", "b", "c")

	if q.Advance(uuid.New()) {
		t.Fatal("unknown id must not advance")
	}
	if q.Advance(ts[1].ID) {
		t.Fatal("non-head id must not advance")
	}
	if q.Len() != 3 {
		t.Fatal("a track that has not ended must stay queued")
	}

	handle(ts[0]).state = music.StateEnded
	if !q.Advance(ts[0].ID) {
		t.Fatal("head id should advance")
	}
	if q.Current() != ts[1] || handle(ts[1]).state != music.StatePlaying {
		t.Fatal("next track should be current and playing")
	}
}

func TestAdvance_SkipsEndedHeads(t *testing.T) {
	q := New()
	ts := fill(t, q, "a", "b", "c")
	handle(ts[1]).state = music.StateEnded

	q.Advance(ts[0].ID)
	if q.Current() != ts[2] {
		t.Fatalf("current = %s, want c", q.Current().Title)
	}
}

func TestAdvance_DropsEndedTrackBehindHead(t *testing.T) {
	q := New()
	fill(t, q, "a")
	x := newTrack("x")
	if err := q.Play(x); err != nil {
		t.Fatal(err)
	}

	a := q.Tracks()[1]
	handle(a).state = music.StateEnded
	if q.Advance(a.ID) {
		t.Fatal("paused-behind track must not count as current")
	}
	if got := titles(q); !equal(got, []string{"x"}) {
		t.Fatalf("order = %v", got)
	}
}

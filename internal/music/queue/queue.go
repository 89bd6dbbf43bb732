// Package queue implements the ordered track list bound to a voice call.
// Position 0 is always the track in the playback slot.
//
// A Queue has no lock of its own: the session serializes every call, which
// also makes multi-step mutations (pause, reorder, resume) atomic to anyone
// else waiting on the session.
package queue

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/pkg/log"
)

var (
	ErrEmptyQueue            = apperr.New(apperr.KindQueue, "queue is empty")
	ErrEmptyQueueCannotClear = apperr.New(apperr.KindQueue, "queue is empty, nothing to clear")
	ErrNothingPlaying        = apperr.New(apperr.KindTransport, "nothing is playing")
)

// InvalidIndexError reports a 1-based index outside the removable range.
type InvalidIndexError struct {
	Index int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("index %d is invalid", e.Index)
}

func invalidIndex(i int) error {
	return apperr.Wrap(apperr.KindQueue, &InvalidIndexError{Index: i})
}

type Queue struct {
	tracks []*music.Track
}

func New() *Queue {
	return &Queue{tracks: make([]*music.Track, 0)}
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

// Current returns the track in the playback slot, or nil.
func (q *Queue) Current() *music.Track {
	if len(q.tracks) == 0 {
		return nil
	}
	return q.tracks[0]
}

// Tracks returns a copy of the queue.
func (q *Queue) Tracks() []*music.Track {
	return slices.Clone(q.tracks)
}

// Play puts t in the playback slot right away. A track that was playing is
// paused and pushed back to position 1.
func (q *Queue) Play(t *music.Track) error {
	if len(q.tracks) > 0 {
		if err := q.tracks[0].Handle.Pause(); err != nil {
			return transportErr("pause", q.tracks[0], err)
		}
		q.tracks = slices.Insert(q.tracks, 0, t)
		log.Debug(log.Fields{"track": t.DisplayTitle(), "len": len(q.tracks)}, "[Queue] Moved new track to the front")
	} else {
		q.tracks = append(q.tracks, t)
	}
	return q.startHead()
}

// Enqueue appends tracks in order. On an empty queue the first one starts.
func (q *Queue) Enqueue(ts ...*music.Track) error {
	wasEmpty := len(q.tracks) == 0
	q.tracks = append(q.tracks, ts...)
	log.Debug(log.Fields{"added": len(ts), "len": len(q.tracks)}, "[Queue] Appended tracks")
	if wasEmpty {
		return q.startHead()
	}
	return nil
}

// Next places tracks right after the current one, keeping their order.
// On an empty queue the first track plays immediately.
func (q *Queue) Next(ts ...*music.Track) error {
	if len(ts) == 0 {
		return nil
	}
	if len(q.tracks) == 0 {
		if err := q.Play(ts[0]); err != nil {
			return err
		}
		ts = ts[1:]
	}
	q.tracks = slices.Insert(q.tracks, 1, ts...)
	return nil
}

// Remove drops the tracks at the given 1-based positions. Position 0 is not
// removable. All indices are validated before anything changes.
func (q *Queue) Remove(indices []int) error {
	if len(q.tracks) == 0 {
		return ErrEmptyQueue
	}
	for _, i := range indices {
		if i < 1 || i > len(q.tracks)-1 {
			return invalidIndex(i)
		}
	}

	drop := make(map[uuid.UUID]bool, len(indices))
	var errs []error
	for _, i := range indices {
		t := q.tracks[i]
		if drop[t.ID] {
			continue
		}
		drop[t.ID] = true
		if err := t.Handle.Stop(); err != nil {
			errs = append(errs, transportErr("stop", t, err))
		}
	}

	q.tracks = slices.DeleteFunc(q.tracks, func(t *music.Track) bool { return drop[t.ID] })
	log.Debug(log.Fields{"removed": len(drop), "len": len(q.tracks)}, "[Queue] Removed tracks")
	return errors.Join(errs...)
}

// Goto skips k times: it stops the current track, pops and stops k tracks
// from the head, then starts whatever is left at position 0.
func (q *Queue) Goto(k int) error {
	if len(q.tracks) == 0 {
		return ErrEmptyQueue
	}
	if k < 1 || k > len(q.tracks)-1 {
		return invalidIndex(k)
	}

	if err := q.tracks[0].Handle.Stop(); err != nil {
		return transportErr("stop", q.tracks[0], err)
	}
	for range k {
		t := q.tracks[0]
		q.tracks = q.tracks[1:]
		if err := t.Handle.Stop(); err != nil {
			log.Warn(log.Fields{"track": t.DisplayTitle(), "error": err.Error()}, "[Queue] Failed to stop skipped track")
		}
	}
	return q.startHead()
}

// Clear drops everything but the current track.
func (q *Queue) Clear() error {
	if len(q.tracks) == 0 {
		return ErrEmptyQueueCannotClear
	}

	dropped := q.tracks[1:]
	q.tracks = q.tracks[:1:1]
	for _, t := range dropped {
		if err := t.Handle.Stop(); err != nil {
			log.Warn(log.Fields{"track": t.DisplayTitle(), "error": err.Error()}, "[Queue] Failed to stop cleared track")
		}
	}
	log.Debug(log.Fields{"cleared": len(dropped)}, "[Queue] Cleared queued tracks")
	return nil
}

func (q *Queue) Pause() error {
	cur := q.Current()
	if cur == nil {
		return ErrNothingPlaying
	}
	if err := cur.Handle.Pause(); err != nil {
		return transportErr("pause", cur, err)
	}
	return nil
}

func (q *Queue) Resume() error {
	cur := q.Current()
	if cur == nil {
		return ErrNothingPlaying
	}
	if err := cur.Handle.Play(); err != nil {
		return transportErr("resume", cur, err)
	}
	return nil
}

// Skip stops the current track and starts the next one.
func (q *Queue) Skip() error {
	cur := q.Current()
	if cur == nil {
		return ErrNothingPlaying
	}
	if err := cur.Handle.Stop(); err != nil {
		return transportErr("skip", cur, err)
	}
	q.tracks = q.tracks[1:]
	return q.startHead()
}

// Stop halts playback and empties the queue.
func (q *Queue) Stop() error {
	if len(q.tracks) == 0 {
		return ErrNothingPlaying
	}
	q.Drain()
	return nil
}

// Drain stops every track and empties the queue. Stop failures are logged.
func (q *Queue) Drain() {
	for _, t := range q.tracks {
		if err := t.Handle.Stop(); err != nil {
			log.Warn(log.Fields{"track": t.DisplayTitle(), "error": err.Error()}, "[Queue] Failed to stop track while draining")
		}
	}
	q.tracks = q.tracks[:0]
}

// Advance handles the end of track id. If it was the current track it is
// popped and the next one starts; the return value reports that case. An
// ended track found further back (it was pushed back and then finished) is
// dropped quietly.
func (q *Queue) Advance(id uuid.UUID) bool {
	i := slices.IndexFunc(q.tracks, func(t *music.Track) bool { return t.ID == id })
	switch {
	case i < 0:
		return false
	case i > 0:
		if q.tracks[i].Handle.State() == music.StateEnded {
			q.tracks = slices.Delete(q.tracks, i, i+1)
		}
		return false
	}

	q.tracks = q.tracks[1:]
	if err := q.startHead(); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "[Queue] Failed to start next track")
	}
	return true
}

// startHead starts the track at position 0, dropping heads that already ended.
func (q *Queue) startHead() error {
	for len(q.tracks) > 0 {
		head := q.tracks[0]
		if head.Handle.State() == music.StateEnded {
			log.Debug(log.Fields{"track": head.DisplayTitle()}, "[Queue] Dropping ended track at head")
			q.tracks = q.tracks[1:]
			continue
		}
		if err := head.Handle.Play(); err != nil {
			return transportErr("start", head, err)
		}
		return nil
	}
	return nil
}

func transportErr(op string, t *music.Track, err error) error {
	return apperr.Wrap(apperr.KindTransport, fmt.Errorf("%s track %q: %w", op, t.DisplayTitle(), err))
}

// Package music holds the track and playback types shared by the queue,
// the session and the voice transport.
package music

import (
	"time"

	"github.com/google/uuid"
)

type PlayState int

const (
	StateIdle PlayState = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s PlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Handle is the transport side of a single loaded track.
type Handle interface {
	// Play starts the track, or resumes it when paused.
	Play() error
	// Pause halts output without releasing the stream.
	Pause() error
	// Stop ends the track and releases its decoder and stream.
	Stop() error
	State() PlayState
}

// Metadata describes a resolved track.
type Metadata struct {
	Title    string
	Artist   string
	Duration time.Duration
	Source   string
}

// Track is a queued, playable item. ID identifies it for removal and for
// matching end-of-playback events.
type Track struct {
	ID uuid.UUID
	Metadata
	Handle Handle
}

func NewTrack(id uuid.UUID, meta Metadata, h Handle) *Track {
	return &Track{ID: id, Metadata: meta, Handle: h}
}

// DisplayTitle falls back to the source identifier when no title is known.
func (t *Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Source
}

// TrackEndAction decides what happens when the current track finishes.
type TrackEndAction int

const (
	ActionTimeout TrackEndAction = iota
	ActionLeave
)

func (a TrackEndAction) String() string {
	if a == ActionLeave {
		return "leave"
	}
	return "timeout"
}

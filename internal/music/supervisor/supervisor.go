// Package supervisor decides when the bot should leave a voice call: after
// an idle countdown, after a drive-by track, or when everyone else has gone.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/keshon/driveby/internal/music"
	"github.com/keshon/driveby/internal/voice"
	"github.com/keshon/driveby/pkg/log"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultSettle  = 250 * time.Millisecond
)

type State int

const (
	StateActive State = iota
	StateCountdown
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCountdown:
		return "countdown"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

type Decision int

const (
	DecisionNone Decision = iota
	DecisionCountdown
	DecisionShutdown
)

func (d Decision) String() string {
	switch d {
	case DecisionCountdown:
		return "countdown"
	case DecisionShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// OnTrackEnd decides what follows a track end. wasCurrent reports whether
// the ended track was in the playback slot.
func OnTrackEnd(action music.TrackEndAction, wasCurrent, queueEmpty bool) Decision {
	if action == music.ActionLeave {
		if wasCurrent || queueEmpty {
			return DecisionShutdown
		}
		return DecisionNone
	}
	return DecisionCountdown
}

// OnExpiry decides whether an expired countdown tears the session down.
// A paused track does not keep the bot in the call.
func OnExpiry(queueEmpty bool, current music.PlayState) Decision {
	if queueEmpty || current != music.StatePlaying {
		return DecisionShutdown
	}
	return DecisionNone
}

// OnRecount decides after a member left: the bot goes when it is alone.
func OnRecount(members []string, selfID string) Decision {
	for _, m := range members {
		if m != selfID {
			return DecisionNone
		}
	}
	return DecisionShutdown
}

// Supervisor holds the single outstanding idle countdown. Every Arm and
// Cancel bumps the generation, so a timer that fires late can tell it was
// superseded.
type Supervisor struct {
	mu      sync.Mutex
	timeout time.Duration
	settle  time.Duration
	state   State
	gen     uint64
	timer   *time.Timer
}

func New(timeout, settle time.Duration) *Supervisor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if settle < 0 {
		settle = DefaultSettle
	}
	return &Supervisor{timeout: timeout, settle: settle, state: StateLeft}
}

// Arm replaces any outstanding countdown with a new one. fire runs on its
// own goroutine after the timeout with the generation it was armed with.
func (s *Supervisor) Arm(fire func(gen uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	gen := s.gen
	s.state = StateCountdown
	s.timer = time.AfterFunc(s.timeout, func() { fire(gen) })

	log.Debug(log.Fields{"gen": gen, "timeout": s.timeout.String()}, "[Supervisor] Countdown armed")
	return gen
}

// Cancel aborts the outstanding countdown, if any.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.state == StateCountdown {
		s.state = StateActive
		log.Debug(nil, "[Supervisor] Countdown cancelled")
	}
}

// Claim is called by a fired countdown. It reports whether gen is still the
// live countdown and, if so, consumes it.
func (s *Supervisor) Claim(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCountdown || gen != s.gen {
		return false
	}
	s.timer = nil
	s.gen++
	s.state = StateActive
	return true
}

func (s *Supervisor) MarkActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLeft {
		s.state = StateActive
	}
}

func (s *Supervisor) MarkLeft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.state = StateLeft
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Target receives the transport events the supervisor routes.
type Target interface {
	TrackEnded(ev voice.TrackEnded)
	// ClientDisconnected is called after the settle delay.
	ClientDisconnected(ev voice.ClientDisconnected)
}

// Run routes transport events to target until ctx ends or events closes.
// Track ends are delivered in order; disconnects wait for the voice state to
// settle on their own goroutine.
func (s *Supervisor) Run(ctx context.Context, events <-chan voice.Event, target Target) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case voice.TrackEnded:
				target.TrackEnded(e)
			case voice.ClientDisconnected:
				wg.Add(1)
				go func() {
					defer wg.Done()
					select {
					case <-ctx.Done():
					case <-time.After(s.settle):
						target.ClientDisconnected(e)
					}
				}()
			}
		}
	}
}

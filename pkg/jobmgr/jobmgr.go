// Package jobmgr runs jobs on ordered lanes. Jobs submitted under the same
// key run one after another in submission order; different keys run in
// parallel. A lane goroutine exists only while its key has pending work.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, func(msg string) {
//	    log.Debug(nil, "JOB: "+msg)
//	})
//	defer jm.Close()
//
//	_ = jm.Submit(channelID+":"+userID, "play", func(ctx context.Context) error {
//	    // runs after everything queued earlier on this lane
//	    return nil
//	})
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrClosed = errors.New("job manager is closed")

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:chan1:user1:play
//	error:chan1:user1:play:nothing is playing
//	done:chan1:user1:play
type StatusReporter func(string)

type job struct {
	name string
	run  func(ctx context.Context) error
}

type lane struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pending []job
	running string
}

// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	lanes    map[string]*lane
	closed   bool
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a Manager whose jobs are cancelled with ctx.
// The reporter callback may be nil.
func NewManager(ctx context.Context, reporter StatusReporter) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		lanes:    make(map[string]*lane),
		Reporter: reporter,
	}
}

// Submit queues run on the lane for key and returns immediately.
func (m *Manager) Submit(key, name string, run func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	l, ok := m.lanes[key]
	if !ok {
		ctx, cancel := context.WithCancel(m.ctx)
		l = &lane{ctx: ctx, cancel: cancel}
		m.lanes[key] = l
		m.wg.Add(1)
		go m.drain(key, l)
	}
	l.pending = append(l.pending, job{name: name, run: run})
	return nil
}

func (m *Manager) drain(key string, l *lane) {
	defer m.wg.Done()
	defer l.cancel()

	for {
		m.mu.Lock()
		if len(l.pending) == 0 || l.ctx.Err() != nil {
			if m.lanes[key] == l {
				delete(m.lanes, key)
			}
			m.mu.Unlock()
			return
		}
		j := l.pending[0]
		l.pending = l.pending[1:]
		l.running = j.name
		m.mu.Unlock()

		id := key + ":" + j.name
		m.report("running:" + id)
		if err := j.run(l.ctx); err != nil {
			m.report("error:" + id + ":" + err.Error())
		} else {
			m.report("done:" + id)
		}

		m.mu.Lock()
		l.running = ""
		m.mu.Unlock()
	}
}

// Close cancels every lane and waits for running jobs to return.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
}

// List returns the active lanes as "key:job" pairs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.lanes))
	for k, l := range m.lanes {
		name := l.running
		if name == "" {
			name = "pending"
		}
		out = append(out, k+":"+name)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active lanes.
// If none are active: "No jobs are running."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}

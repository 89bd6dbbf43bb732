package jobmgr

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubmit_SameLaneRunsInOrder(t *testing.T) {
	m := NewManager(context.Background(), nil)
	defer m.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := range 20 {
		err := m.Submit("c:u", "job", func(ctx context.Context) error {
			if i == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			mu.Lock()
			got = append(got, i)
			n := len(got)
			mu.Unlock()
			if n == 20 {
				close(done)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not finish")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestSubmit_LanesRunInParallel(t *testing.T) {
	m := NewManager(context.Background(), nil)
	defer m.Close()

	block := make(chan struct{})
	other := make(chan struct{})

	_ = m.Submit("a", "slow", func(ctx context.Context) error {
		<-block
		return nil
	})
	_ = m.Submit("b", "fast", func(ctx context.Context) error {
		close(other)
		return nil
	})

	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("lane b waited for lane a")
	}
	close(block)
}

func TestReporterAndClose(t *testing.T) {
	var mu sync.Mutex
	var msgs []string
	m := NewManager(context.Background(), func(s string) {
		mu.Lock()
		msgs = append(msgs, s)
		mu.Unlock()
	})

	_ = m.Submit("k", "ok", func(ctx context.Context) error { return nil })
	_ = m.Submit("k", "bad", func(ctx context.Context) error { return errors.New("nope") })

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(msgs)
		mu.Unlock()
		if n == 4 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	m.Close()

	want := []string{"running:k:ok", "done:k:ok", "running:k:bad", "error:k:bad:nope"}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("reports = %v, want %v", msgs, want)
	}

	if err := m.Submit("k", "late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close = %v", err)
	}
	if !strings.Contains(m.Status(), "No jobs") {
		t.Fatalf("Status() = %q", m.Status())
	}
}

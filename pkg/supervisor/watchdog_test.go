package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	done chan struct{}
	err  error

	mu     sync.Mutex
	closed bool
}

func newFakeSession(err error) *fakeSession {
	return &fakeSession{done: make(chan struct{}), err: err}
}

func (f *fakeSession) Done() <-chan struct{} { return f.done }
func (f *fakeSession) Err() error             { return f.err }
func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
func (f *fakeSession) finish() { close(f.done) }

type fakeRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRecorder) RecordReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *fakeRecorder) value() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func withShortTimings(t *testing.T) {
	t.Helper()
	origInitial, origMax, origPause := initialBackoff, maxBackoff, pauseDuration
	initialBackoff = time.Millisecond
	maxBackoff = 4 * time.Millisecond
	pauseDuration = 10 * time.Millisecond
	t.Cleanup(func() {
		initialBackoff, maxBackoff, pauseDuration = origInitial, origMax, origPause
	})
}

func TestWatchdogRecordsReconnectOnEverySuccessfulOpen(t *testing.T) {
	withShortTimings(t)
	recorder := &fakeRecorder{}

	var mu sync.Mutex
	opens := 0
	sessions := make(chan *fakeSession, 8)

	open := func(ctx context.Context) (SessionHandle, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		s := newFakeSession(nil)
		sessions <- s
		return s, nil
	}

	w := New(open, nil, recorder)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case s := <-sessions:
			s.finish()
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a session to open")
		}
	}

	deadline := time.Now().Add(time.Second)
	for recorder.value() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if recorder.value() < 3 {
		t.Fatalf("expected at least 3 recorded reconnects, got %d", recorder.value())
	}
}

func TestWatchdogBacksOffOnRepeatedDialFailure(t *testing.T) {
	withShortTimings(t)

	var mu sync.Mutex
	attempts := 0
	open := func(ctx context.Context) (SessionHandle, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, errors.New("dial failed")
	}

	w := New(open, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	cancel()

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got == 0 {
		t.Fatal("expected at least one open attempt")
	}
}

func TestWatchdogClosesSessionOnContextCancelWhileActive(t *testing.T) {
	withShortTimings(t)

	s := newFakeSession(nil)
	opened := make(chan struct{})
	open := func(ctx context.Context) (SessionHandle, error) {
		close(opened)
		return s, nil
	}

	w := New(open, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	go w.Run(ctx)

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("session never opened")
	}

	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected session to be closed after context cancellation")
}

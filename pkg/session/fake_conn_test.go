package session

import (
	"context"
	"errors"
	"sync"

	"github.com/coder/websocket"
)

// fakeConn is an in-memory wireConn: outgoing frames land in sent, incoming
// frames are served in order from inbound. It lets the sender/receiver/
// heartbeat goroutines run against a scripted transport with no network.
type fakeConn struct {
	mu       sync.Mutex
	sent     [][]byte
	inbound  chan []byte
	closed   bool
	closeErr error
	pingErr  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 64)}
}

func (f *fakeConn) Write(ctx context.Context, _ websocket.MessageType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeConn: write on closed connection")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case raw, ok := <-f.inbound:
		if !ok {
			return 0, nil, errors.New("fakeConn: connection closed")
		}
		return websocket.MessageBinary, raw, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeConn) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeConn) Close(code websocket.StatusCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return f.closeErr
}

// push enqueues a frame for a future Read.
func (f *fakeConn) push(raw []byte) {
	f.inbound <- raw
}

// sentFrames returns a snapshot of everything written so far.
func (f *fakeConn) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

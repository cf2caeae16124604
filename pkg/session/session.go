package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/lokutor-ai/lokutor-s2s/pkg/protocol"
	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

// maxFrameBytes is the read limit installed on every connection so a
// misbehaving TTS stream can't exhaust memory.
const maxFrameBytes = 1 << 30 // 1GiB

var dialBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// wireConn is the subset of *websocket.Conn the session drives, narrowed to
// an interface so the sender/receiver/heartbeat loops can be exercised
// against a fake transport in tests.
type wireConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Session owns one open WebSocket connection to the translation service and
// the three goroutines that drive it: the paced sender, the receiver, and
// the heartbeat. A Session is single-use; once it ends (Done closes) the
// caller discards it and, if desired, opens a new one.
type Session struct {
	id     string
	serial uint64
	params Params

	conn wireConn

	sendQueue  chan []byte
	logger     translatorlog.Logger
	health     HealthRecorder
	playback   PlaybackSink
	subscriber Subscriber

	cancel context.CancelFunc
	wg     sync.WaitGroup

	activeTasks atomic.Int32

	mu    sync.Mutex
	state State

	done    chan struct{}
	err     error
	errOnce sync.Once

	closeOnce sync.Once
}

// Open dials the service, completes the StartSession handshake, and spawns
// the session's background goroutines. On any failure before the handshake
// completes, Open tears down the partially-opened connection itself and
// returns a non-nil error; the caller owns the returned Session otherwise.
func Open(ctx context.Context, params Params, logger translatorlog.Logger, health HealthRecorder, playback PlaybackSink, subscriber Subscriber) (*Session, error) {
	if logger == nil {
		logger = translatorlog.NoOpLogger{}
	}

	sessionID := uuid.NewString()
	connectID := uuid.NewString()

	conn, err := dial(ctx, params, connectID, logger)
	if err != nil {
		return nil, err
	}

	handshakeCtx, cancelHandshake := context.WithTimeout(ctx, 20*time.Second)
	defer cancelHandshake()

	if err := writeEvent(handshakeCtx, conn, protocol.NewStartSession(sessionID, params.SourceLanguage, params.TargetLanguage)); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "start session write failed")
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	ev, err := readEvent(handshakeCtx, conn)
	if err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "handshake read failed")
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	if ev.Type != protocol.EventSessionStarted {
		conn.Close(websocket.StatusAbnormalClosure, "unexpected handshake")
		return nil, fmt.Errorf("%w: got %v", ErrUnexpectedHandshake, ev.Type)
	}

	s := newActiveSession(ctx, sessionID, conn, logger, health, playback, subscriber)
	s.params = params

	if health != nil {
		health.UpdateSessionState(StateActive.String())
	}

	logger.Info("session opened", "sessionID", sessionID, "serial", s.serial)
	return s, nil
}

// dial opens the transport with up to len(dialBackoff) retries.
func dial(ctx context.Context, params Params, connectID string, logger translatorlog.Logger) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Api-App-Key", params.AppKey)
	header.Set("X-Api-Access-Key", params.AccessKey)
	header.Set("X-Api-Resource-Id", params.ResourceID)
	header.Set("X-Api-Connect-Id", connectID)

	var lastErr error
	attempts := len(dialBackoff) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		conn, _, err := websocket.Dial(dialCtx, params.WSURL, &websocket.DialOptions{HTTPHeader: header})
		cancel()
		if err == nil {
			conn.SetReadLimit(maxFrameBytes)
			return conn, nil
		}

		lastErr = err
		logger.Warn("dial attempt failed", "attempt", attempt+1, "error", err)

		if attempt < len(dialBackoff) {
			select {
			case <-time.After(dialBackoff[attempt]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrDialFailed, lastErr)
}

func writeEvent(ctx context.Context, conn wireConn, ev protocol.Event) error {
	raw, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, raw)
}

func readEvent(ctx context.Context, conn wireConn) (*protocol.Event, error) {
	_, raw, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(raw)
}

// newActiveSession wires a Session around an already-open transport and
// spawns its background goroutines. Open uses this after a successful
// handshake; tests use it directly with a fake wireConn to exercise the
// sender/receiver/heartbeat loops without a real network connection.
func newActiveSession(ctx context.Context, id string, conn wireConn, logger translatorlog.Logger, health HealthRecorder, playback PlaybackSink, subscriber Subscriber) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         id,
		serial:     nextSerial(),
		conn:       conn,
		sendQueue:  make(chan []byte, sendQueueCapacity),
		logger:     logger,
		health:     health,
		playback:   playback,
		subscriber: subscriber,
		cancel:     cancel,
		state:      StateActive,
		done:       make(chan struct{}),
	}

	s.wg.Add(3)
	s.activeTasks.Store(3)
	if health != nil {
		health.UpdateActiveTasks(3)
	}
	go s.runSender(sessCtx)
	go s.runReceiver(sessCtx)
	go s.runHeartbeat(sessCtx)

	return s
}

// taskExited decrements the live goroutine count and reports it, mirroring
// the watchdog task set the session's three background loops belong to.
// Called once per goroutine on the way out, just before wg.Done (it is
// deferred after it, so it runs first).
func (s *Session) taskExited() {
	n := s.activeTasks.Add(-1)
	if s.health != nil {
		s.health.UpdateActiveTasks(int(n))
	}
}

// ID returns the session's server-facing identifier.
func (s *Session) ID() string { return s.id }

// Serial returns the process-lifetime monotone id assigned at Open.
func (s *Session) Serial() uint64 { return s.serial }

// State reports the current lifecycle node.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PushChunk hands one captured or silence-padded chunk to the paced sender.
// It never blocks: when the queue is full the newest chunk is dropped and a
// warning is logged.
func (s *Session) PushChunk(pcm []byte) {
	select {
	case s.sendQueue <- pcm:
	default:
		s.logger.Warn("send queue full, dropping newest chunk", "capacity", sendQueueCapacity)
	}
}

// Done closes when the session has ended, whether from a clean server close,
// a transport failure, or an explicit Close. Callers should follow up with
// Err to tell these apart and Close to release resources.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the reason the session ended. nil means a clean server-side
// finish; ErrShuttingDown means an explicit Close ended it; any other value
// is a transport or protocol failure.
func (s *Session) Err() error { return s.err }

// fail records a terminal condition exactly once and unblocks Done.
// ErrShuttingDown does not move the session to StateError: it marks a
// deliberate Close, not a transport or protocol failure, and Close manages
// its own state transitions (Disconnecting -> Idle) around this call.
func (s *Session) fail(err error) {
	s.errOnce.Do(func() {
		s.err = err
		if err != nil && !errors.Is(err, ErrShuttingDown) {
			s.mu.Lock()
			s.state = StateError
			s.mu.Unlock()
		}
		s.cancel()
		close(s.done)
	})
}

// Close tears the session down: it stops the background goroutines, drains
// and discards any queued audio, and closes the socket. Close is safe to
// call multiple times and safe to call whether or not the session already
// failed on its own. If the session is still running, Close records
// ErrShuttingDown via fail so Err() can distinguish a deliberate shutdown
// from a transport failure or a clean remote SessionFinished (both of
// which leave Err() nil or set to their own cause instead).
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDisconnecting
		s.mu.Unlock()

		s.fail(ErrShuttingDown)

	drain:
		for {
			select {
			case <-s.sendQueue:
			default:
				break drain
			}
		}

		s.conn.Close(websocket.StatusNormalClosure, "")
		s.wg.Wait()

		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()

		if s.health != nil {
			s.health.UpdateSessionState(StateIdle.String())
		}
		s.logger.Info("session closed", "sessionID", s.id, "serial", s.serial)
	})
}

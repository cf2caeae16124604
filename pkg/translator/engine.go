// Package translator wires the audio, session, and supervisor packages
// into the single public control surface the CLI drives: a realtime
// translation Engine with idempotent Start/Stop and live language/device
// switching.
package translator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/lokutor-s2s/pkg/audio"
	"github.com/lokutor-ai/lokutor-s2s/pkg/config"
	"github.com/lokutor-ai/lokutor-s2s/pkg/session"
	"github.com/lokutor-ai/lokutor-s2s/pkg/supervisor"
	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

type engineState int32

const (
	engineIdle engineState = iota
	engineStarting
	engineActive
	engineStopping
)

// stopJoinDeadline bounds how long Stop waits for the background
// goroutines before abandoning them with a warning rather than blocking
// forever on a stuck I/O call.
const stopJoinDeadline = 10 * time.Second

// HealthRecorder is the full surface the engine, its session, and its
// supervisor report resource usage and reconnects to.
type HealthRecorder interface {
	session.HealthRecorder
	supervisor.ReconnectRecorder
	UpdateAudioBufferDepth(depth int)
	UpdatePlaybackDepth(depth int)
	UpdateAudioLatency(audioMs float64)
}

// Engine is the realtime translation pipeline: one audio capturer feeding
// one paced sender, one receiver feeding one (or two, in conference mode)
// playback engine, supervised by a reconnect watchdog. All Start/Stop/
// SetLanguage/SetDevices transitions are serialized under mu; state also
// carries an atomic snapshot so State() never blocks on a potentially slow
// transition.
type Engine struct {
	mctx   *malgo.AllocatedContext
	logger translatorlog.Logger
	health HealthRecorder

	mu    sync.Mutex
	state atomic.Int32

	cfg      config.Config
	capturer *audio.Capturer
	player   *audio.Player
	confPlay *audio.Player

	cancel context.CancelFunc
	wg     sync.WaitGroup

	subMu               sync.Mutex
	sourceCallback      func(string)
	translationCallback func(string)
}

// New builds an Engine bound to an already-initialized malgo context
// (owned by the caller for the life of the process) and a validated
// configuration.
func New(mctx *malgo.AllocatedContext, cfg config.Config, logger translatorlog.Logger, health HealthRecorder) *Engine {
	if logger == nil {
		logger = translatorlog.NoOpLogger{}
	}
	e := &Engine{mctx: mctx, logger: logger, health: health, cfg: cfg}
	e.state.Store(int32(engineIdle))
	return e
}

// SetSourceCallback installs the callback invoked with each reassembled
// source-language subtitle line. Must be set before Start to guarantee no
// lines are missed; may be changed at any time otherwise.
func (e *Engine) SetSourceCallback(fn func(string)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.sourceCallback = fn
}

// SetTranslationCallback installs the callback invoked with each
// reassembled translated subtitle line.
func (e *Engine) SetTranslationCallback(fn func(string)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.translationCallback = fn
}

// OnSourceSentence implements session.Subscriber.
func (e *Engine) OnSourceSentence(text string) {
	e.subMu.Lock()
	cb := e.sourceCallback
	e.subMu.Unlock()
	if cb != nil {
		cb(text)
	}
}

// OnTranslationSentence implements session.Subscriber.
func (e *Engine) OnTranslationSentence(text string) {
	e.subMu.Lock()
	cb := e.translationCallback
	e.subMu.Unlock()
	if cb != nil {
		cb(text)
	}
}

// Start opens the audio devices and begins the supervised session loop.
// Calling Start while already starting or active is a no-op that returns
// nil. A zero-value language argument leaves the configured language
// unchanged.
func (e *Engine) Start(inputDevice, outputDevice *int, sourceLanguage, targetLanguage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch engineState(e.state.Load()) {
	case engineStarting, engineActive:
		return nil
	}
	e.state.Store(int32(engineStarting))

	if sourceLanguage != "" {
		e.cfg.Translation.SourceLanguage = sourceLanguage
	}
	if targetLanguage != "" {
		e.cfg.Translation.TargetLanguage = targetLanguage
	}
	if inputDevice != nil {
		e.cfg.Devices.Input = inputDevice
	}
	if outputDevice != nil {
		e.cfg.Devices.Output = outputDevice
	}
	if err := e.cfg.Validate(); err != nil {
		e.state.Store(int32(engineIdle))
		return err
	}

	capturer := audio.NewCapturer(e.logger, 30)
	if err := capturer.Open(e.mctx, e.cfg.Devices.Input); err != nil {
		e.state.Store(int32(engineIdle))
		return fmt.Errorf("%w: open capture device: %v", ErrDeviceUnavailable, err)
	}

	player := audio.NewPlayer(e.logger)
	if err := player.Open(e.mctx, e.cfg.Devices.Output); err != nil {
		capturer.Close()
		e.state.Store(int32(engineIdle))
		return fmt.Errorf("%w: open playback device: %v", ErrDeviceUnavailable, err)
	}

	var confPlayer *audio.Player
	if e.cfg.Devices.ConferenceOutput != nil {
		confPlayer = audio.NewPlayer(e.logger)
		if err := confPlayer.Open(e.mctx, e.cfg.Devices.ConferenceOutput); err != nil {
			e.logger.Warn("conference output device failed to open, continuing without it", "error", err)
			confPlayer = nil
		}
	}

	var playbackSink session.PlaybackSink = player
	if confPlayer != nil {
		playbackSink = fanoutPlayback{player, confPlayer}
	}

	e.capturer = capturer
	e.player = player
	e.confPlay = confPlayer

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	params := session.Params{
		WSURL:          e.cfg.API.WSURL,
		AppKey:         e.cfg.API.AppKey,
		AccessKey:      e.cfg.API.AccessKey,
		ResourceID:     e.cfg.API.ResourceID,
		SourceLanguage: e.cfg.Translation.SourceLanguage,
		TargetLanguage: e.cfg.Translation.TargetLanguage,
	}

	open := func(ctx context.Context) (supervisor.SessionHandle, error) {
		sess, err := session.Open(ctx, params, e.logger, e.health, playbackSink, e)
		if err != nil {
			return nil, err
		}
		capturer.SetSink(sess)
		return &sessionCloser{Session: sess, capturer: capturer}, nil
	}

	watchdog := supervisor.New(open, e.logger, e.health)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		watchdog.Run(ctx)
	}()

	if e.health != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.pollHealth(ctx, capturer, player)
		}()
	}

	e.state.Store(int32(engineActive))
	e.logger.Info("translator engine started",
		"sourceLanguage", e.cfg.Translation.SourceLanguage, "targetLanguage", e.cfg.Translation.TargetLanguage)
	return nil
}

// healthPollInterval bounds how often the engine samples live buffer depths
// and derives an audio-latency estimate for the health monitor.
const healthPollInterval = 2 * time.Second

// pollHealth feeds the capture pre-buffer depth, the playback FIFO depth,
// and a capture-side latency estimate into the health monitor until ctx is
// done. The latency estimate is the pre-buffer depth in chunks times the
// nominal chunk duration, the age of the oldest buffered chunk while no
// session is attached. Once one is attached the pre-buffer is drained on
// SetSink and stays empty, so the estimate is zero; send-queue delay is not
// counted.
func (e *Engine) pollHealth(ctx context.Context, capturer *audio.Capturer, player *audio.Player) {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bufDepth := capturer.BufferedChunks()
			e.health.UpdateAudioBufferDepth(bufDepth)
			e.health.UpdatePlaybackDepth(player.Depth())
			e.health.UpdateAudioLatency(float64(bufDepth) * float64(audio.ChunkDuration/time.Millisecond))
		}
	}
}

// sessionCloser adapts *session.Session to supervisor.SessionHandle,
// returning the capturer to prebuffering mode whenever a session ends.
type sessionCloser struct {
	*session.Session
	capturer *audio.Capturer
}

func (s *sessionCloser) Close() {
	s.capturer.ClearSink()
	s.Session.Close()
}

// fanoutPlayback mirrors TTS audio to a primary and a conference-room
// output device.
type fanoutPlayback struct {
	primary    *audio.Player
	conference *audio.Player
}

func (f fanoutPlayback) Enqueue(samples []float32) {
	f.primary.Enqueue(samples)
	f.conference.Enqueue(samples)
}

// Stop ends the supervised session loop and closes the audio devices.
// Calling Stop while already idle is a no-op. If the background goroutines
// don't exit within stopJoinDeadline, Stop logs a warning and returns
// anyway rather than blocking forever on a stuck I/O call.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if engineState(e.state.Load()) == engineIdle {
		return nil
	}
	e.state.Store(int32(engineStopping))

	if e.cancel != nil {
		e.cancel()
	}

	joined := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(stopJoinDeadline):
		e.logger.Warn("stop exceeded join deadline, abandoning background goroutines", "deadline", stopJoinDeadline)
	}

	if e.capturer != nil {
		e.capturer.Close()
	}
	if e.player != nil {
		e.player.Close()
	}
	if e.confPlay != nil {
		e.confPlay.Close()
	}

	e.state.Store(int32(engineIdle))
	e.logger.Info("translator engine stopped")
	return nil
}

// SetLanguage changes the active language pair, restarting the pipeline if
// it is currently running.
func (e *Engine) SetLanguage(sourceLanguage, targetLanguage string) error {
	wasActive := engineState(e.state.Load()) == engineActive
	if wasActive {
		if err := e.Stop(); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.cfg.Translation.SourceLanguage = sourceLanguage
	e.cfg.Translation.TargetLanguage = targetLanguage
	input, output := e.cfg.Devices.Input, e.cfg.Devices.Output
	e.mu.Unlock()

	if wasActive {
		return e.Start(input, output, sourceLanguage, targetLanguage)
	}
	return nil
}

// SetDevices changes the active input/output device selection, restarting
// the pipeline if it is currently running.
func (e *Engine) SetDevices(inputDevice, outputDevice *int) error {
	wasActive := engineState(e.state.Load()) == engineActive
	if wasActive {
		if err := e.Stop(); err != nil {
			return err
		}
	}
	e.mu.Lock()
	source, target := e.cfg.Translation.SourceLanguage, e.cfg.Translation.TargetLanguage
	e.mu.Unlock()

	if wasActive {
		return e.Start(inputDevice, outputDevice, source, target)
	}
	e.mu.Lock()
	if inputDevice != nil {
		e.cfg.Devices.Input = inputDevice
	}
	if outputDevice != nil {
		e.cfg.Devices.Output = outputDevice
	}
	e.mu.Unlock()
	return nil
}

// State reports the current lifecycle phase without blocking on an
// in-flight Start/Stop transition.
func (e *Engine) State() string {
	switch engineState(e.state.Load()) {
	case engineIdle:
		return "idle"
	case engineStarting:
		return "starting"
	case engineActive:
		return "active"
	case engineStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

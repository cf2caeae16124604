package translator

import (
	"testing"

	"github.com/lokutor-ai/lokutor-s2s/pkg/audio"
	"github.com/lokutor-ai/lokutor-s2s/pkg/config"
	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

// fakeHealth satisfies HealthRecorder without touching /proc or any real
// session/supervisor wiring.
type fakeHealth struct{}

func (fakeHealth) UpdateSessionState(string)  {}
func (fakeHealth) UpdateSendQueueDepth(int)   {}
func (fakeHealth) UpdateLatency(float64)      {}
func (fakeHealth) UpdateActiveTasks(int)      {}
func (fakeHealth) RecordError(string)         {}
func (fakeHealth) RecordSentence()            {}
func (fakeHealth) RecordReconnect()           {}
func (fakeHealth) UpdateAudioBufferDepth(int) {}
func (fakeHealth) UpdatePlaybackDepth(int)    {}
func (fakeHealth) UpdateAudioLatency(float64) {}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.API.AppKey = "key"
	cfg.API.AccessKey = "secret"
	return cfg
}

func TestNewEngineStartsIdle(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})
	if got := e.State(); got != "idle" {
		t.Fatalf("expected idle, got %q", got)
	}
}

func TestSourceAndTranslationCallbacksDispatch(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})

	var source, translation string
	e.SetSourceCallback(func(s string) { source = s })
	e.SetTranslationCallback(func(s string) { translation = s })

	e.OnSourceSentence("hello")
	e.OnTranslationSentence("bonjour")

	if source != "hello" {
		t.Fatalf("expected source callback to fire, got %q", source)
	}
	if translation != "bonjour" {
		t.Fatalf("expected translation callback to fire, got %q", translation)
	}
}

func TestCallbacksAreNoOpsWhenUnset(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})
	e.OnSourceSentence("hello")
	e.OnTranslationSentence("bonjour")
}

func TestStartRejectsInvalidConfigWithoutTouchingDevices(t *testing.T) {
	cfg := config.Default() // no credentials: Validate must reject this
	e := New(nil, cfg, translatorlog.NoOpLogger{}, fakeHealth{})

	err := e.Start(nil, nil, "zh", "en")
	if err == nil {
		t.Fatal("expected an error for a credential-less config")
	}
	if got := e.State(); got != "idle" {
		t.Fatalf("expected engine to fall back to idle after a rejected Start, got %q", got)
	}
}

func TestSetLanguageUpdatesConfigWithoutStartingWhenIdle(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})

	if err := e.SetLanguage("en", "zh"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if got := e.State(); got != "idle" {
		t.Fatalf("expected idle engine to stay idle, got %q", got)
	}
	if e.cfg.Translation.SourceLanguage != "en" || e.cfg.Translation.TargetLanguage != "zh" {
		t.Fatalf("expected language pair to update, got %+v", e.cfg.Translation)
	}
}

func TestSetDevicesUpdatesConfigWithoutStartingWhenIdle(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})

	in, out := 2, 3
	if err := e.SetDevices(&in, &out); err != nil {
		t.Fatalf("SetDevices: %v", err)
	}
	if got := e.State(); got != "idle" {
		t.Fatalf("expected idle engine to stay idle, got %q", got)
	}
	if e.cfg.Devices.Input == nil || *e.cfg.Devices.Input != 2 {
		t.Fatalf("expected input device to update, got %+v", e.cfg.Devices.Input)
	}
	if e.cfg.Devices.Output == nil || *e.cfg.Devices.Output != 3 {
		t.Fatalf("expected output device to update, got %+v", e.cfg.Devices.Output)
	}
}

func TestStopOnIdleEngineIsANoOp(t *testing.T) {
	e := New(nil, testConfig(), translatorlog.NoOpLogger{}, fakeHealth{})
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop on idle engine: %v", err)
	}
	if got := e.State(); got != "idle" {
		t.Fatalf("expected idle, got %q", got)
	}
}

func TestFanoutPlaybackEnqueuesToBothDevices(t *testing.T) {
	primary := audio.NewPlayer(nil)
	conference := audio.NewPlayer(nil)
	f := fanoutPlayback{primary: primary, conference: conference}

	samples := []float32{0.1, 0.2, 0.3}
	f.Enqueue(samples)

	if primary.Depth() != 1 {
		t.Fatalf("expected primary FIFO depth 1, got %d", primary.Depth())
	}
	if conference.Depth() != 1 {
		t.Fatalf("expected conference FIFO depth 1, got %d", conference.Depth())
	}
}

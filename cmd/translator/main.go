package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/lokutor-s2s/pkg/config"
	"github.com/lokutor-ai/lokutor-s2s/pkg/health"
	"github.com/lokutor-ai/lokutor-s2s/pkg/translator"
	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

const logFilePath = "logs/translator.log"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		log.Fatalf("Error: could not open log file: %v", err)
	}
	defer closeLog()

	monitor := health.NewMonitor(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatalf("Error: could not initialize audio context: %v", err)
	}
	defer mctx.Uninit()

	engine := translator.New(mctx, cfg, logger, monitor)
	engine.SetSourceCallback(func(text string) {
		fmt.Printf("\r\033[K[SOURCE] %s\n", text)
	})
	engine.SetTranslationCallback(func(text string) {
		fmt.Printf("\r\033[K[TRANSLATION] %s\n", text)
	})

	fmt.Printf("Translating %s -> %s\n", cfg.Translation.SourceLanguage, cfg.Translation.TargetLanguage)
	fmt.Println("Press Ctrl+C to exit")

	if err := engine.Start(cfg.Devices.Input, cfg.Devices.Output, "", ""); err != nil {
		log.Fatalf("Error: could not start translator: %v", err)
	}

	go statusLoop(ctx, monitor)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Printf("\nShutting down...\n")
	if err := engine.Stop(); err != nil {
		logger.Error("error stopping translator", "error", err)
	}
}

// newLogger wires stderr and a rotating, secret-redacted log file together,
// matching the console-plus-file split the original agent binary never
// needed but a long-running translation session does.
func newLogger() (translatorlog.Logger, func(), error) {
	rotating, err := translatorlog.OpenRotatingFile(logFilePath)
	if err != nil {
		return nil, nil, err
	}
	redacting := translatorlog.NewRedactingWriter(rotating)
	logger := translatorlog.NewStdLogger(io.MultiWriter(os.Stderr, redacting))
	return logger, func() { redacting.Close() }, nil
}

func statusLoop(ctx context.Context, monitor *health.Monitor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := monitor.Snapshot()
			fmt.Printf("\r\033[K[STATUS] mem=%.1f%% queue=%d playback=%d reconnects=%d errors=%d\n",
				s.MemoryPercent, s.SendQueueDepth, s.PlaybackDepth, s.ReconnectCount, s.ErrorCount)
		}
	}
}

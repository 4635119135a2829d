package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x-mperego/unimec-display/internal/display"
	"github.com/0x-mperego/unimec-display/internal/platform/logging"
	"github.com/0x-mperego/unimec-display/internal/platform/version"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging returns a func that flushes and closes the log file, if any.
func setupLogging(cfg *displayConfig) (closeLog func()) {
	if cfg.LogFile == "" {
		logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
		return func() {}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	logging.Setup(io.MultiWriter(os.Stdout, rotating), cfg.LogLevel, cfg.LogFormat)
	return func() { _ = rotating.Close() }
}

func logState(st display.State) {
	attrs := []any{"phase", st.Phase.String()}
	if st.Item != nil {
		attrs = append(attrs,
			"index", st.Index,
			"item_id", st.Item.ID,
			"kind", st.Item.Kind,
			"duration_seconds", st.Item.DurationSeconds,
		)
	}
	if st.Phase == display.PhaseTransitioning {
		attrs = append(attrs, "next", st.Next)
	}
	slog.Info("Screen updated", attrs...)
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to load config: %v", err)
	}

	closeLog := setupLogging(cfg)
	defer closeLog()

	slog.Info("Display starting", "version", version.Get().Version, "server", cfg.Server)

	dialer, err := display.NewWebsocketDialer(cfg.Server, cfg.PulseInterval)
	if err != nil {
		slog.Error("Failed to create stream dialer", "error", err)
		os.Exit(1)
	}
	fetcher, err := display.NewHTTPFetcher(cfg.Server, nil)
	if err != nil {
		slog.Error("Failed to create playlist fetcher", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	scheduler := display.NewScheduler(clock,
		display.WithTransition(cfg.Transition),
		display.WithOnChange(logState),
	)
	defer scheduler.Stop()

	manager := display.NewConnectionManager(dialer, fetcher, scheduler.Update, clock,
		display.WithRetryDelay(cfg.RetryDelay),
		display.WithOnStatus(func(connected bool) {
			slog.Info("Connection status changed", "connected", connected)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.Run(ctx)
	slog.Info("Display stopped")
}

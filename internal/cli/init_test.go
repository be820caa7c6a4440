package cli

import (
	"context"
	"log/slog"
	"syscall"
	"testing"
	"time"
)

func TestSetupLoggerReadsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := SetupLogger("cli")
	if logger.Component() != "cli" {
		t.Errorf("Component() = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

func TestSignalContext(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger := SetupLogger("cli")

	ctx, stop := SignalContext(context.Background(), logger)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}

func TestSignalContextStop(t *testing.T) {
	ctx, stop := SignalContext(context.Background(), SetupLogger("cli"))
	stop()
	if ctx.Err() == nil {
		t.Error("stop should cancel the context")
	}
}

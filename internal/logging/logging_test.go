package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := ContextWithLogger(context.Background(), logger)
	FromContext(ctx).Info("attached")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger from bare context")
	}
	if got := ContextWithLogger(context.Background(), nil); FromContext(got) != nil {
		t.Fatalf("expected nil logger to be ignored")
	}
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	fallback := zap.NewExample()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	if got := FromContextOr(context.Background(), nil); got == nil {
		t.Fatalf("expected nop logger when no fallback is given")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, env := range []string{"production", "development"} {
		logger, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
		if logger == nil {
			t.Fatalf("expected logger for %q", env)
		}
	}
}

package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "staging", "local", "dev", "docker", "test"} {
		t.Run(env, func(t *testing.T) {
			l, err := NewLogger(env)
			if err != nil {
				t.Fatalf("NewLogger(%q): %v", env, err)
			}
			if l == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("qa"); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Error("warn must be enabled")
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil {
		t.Fatal("expected nop logger")
	}
}

func TestWith_PrefersContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	With(ctx, zap.NewNop(), zap.String("search_id", "sr-1234abcd")).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["search_id"]; got != "sr-1234abcd" {
		t.Errorf("expected search_id field, got %v", got)
	}
}

func TestWith_FallsBackToBase(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	With(context.Background(), zap.New(core), zap.Int("n", 1)).Info("hello")

	if logs.Len() != 1 {
		t.Fatalf("expected base logger to receive entry, got %d", logs.Len())
	}
}

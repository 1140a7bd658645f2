package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		wantErr    bool
		debug      bool
	}{
		{"prod", "", false, false},
		{"prod", "debug", false, true},
		{"local", "", false, true},
		{"dev", "warn", false, false},
		{"staging", "", true, false},
		{"prod", "loud", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}

func TestNewLogger_Test(t *testing.T) {
	l, err := NewLogger("test", "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("test logger should discard everything")
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fallback := zap.New(core).Named("fallback")

	FromContext(context.Background(), fallback).Info("from fallback")
	if logs.Len() != 1 || logs.All()[0].LoggerName != "fallback" {
		t.Fatalf("logs = %+v", logs.All())
	}

	if l := FromContext(context.Background(), nil); l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("nil fallback should give a no-op logger")
	}

	ctx := ContextWithLogger(context.Background(), zap.New(core).Named("request"))
	FromContext(ctx, fallback).Info("from request")
	if got := logs.All()[1].LoggerName; got != "request" {
		t.Errorf("logger = %q, want request", got)
	}
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx := With(context.Background(), zap.New(core), zap.String("progress_id", "job-1"))
	FromContext(ctx, nil).Info("batch")

	entry := logs.All()[0]
	if entry.ContextMap()["progress_id"] != "job-1" {
		t.Errorf("fields = %v", entry.ContextMap())
	}
}

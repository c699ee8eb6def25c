package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		DebugLevel: zapcore.DebugLevel,
		"verbose":  zapcore.DebugLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel)
	b := Init(ErrorLevel, EncodingJSON)
	if a != b {
		t.Fatalf("expected the same logger instance")
	}
	if a.With("device_id", "d1") == a {
		t.Fatalf("With must return a child logger")
	}
}

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	dcerrors "github.com/demandcast/demandcast/pkg/errors"
)

func TestWarningSinkEmitsStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	InstallWarningSinkTo(&buf)
	defer dcerrors.SetZerologWarnFunc(nil)

	dcerrors.Warn(dcerrors.NewTrialWarning(3, 1, dcerrors.New("boom")))

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("warning stream is not JSON: %v", err)
	}
	if event["level"] != "warn" {
		t.Errorf("level = %v, want warn", event["level"])
	}
	if event[ComponentKey] != "warnings" {
		t.Errorf("component = %v, want warnings", event[ComponentKey])
	}
	warning, ok := event["warning"].(map[string]interface{})
	if !ok {
		t.Fatal("warning object missing from event")
	}
	if warning["trial"] != float64(3) || warning["fold"] != float64(1) {
		t.Errorf("warning object = %v, want trial 3 fold 1", warning)
	}
	if warning["type"] != "TrialWarning" {
		t.Errorf("warning type = %v, want TrialWarning", warning["type"])
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		if got := ToLogLevel(tt.level); got != tt.want {
			t.Errorf("ToLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestToLogLevelPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ToLogLevel with unknown level should panic")
		}
	}()
	ToLogLevel("verbose")
}

func TestGetLoggerWithName(t *testing.T) {
	logger := GetLoggerWithName("gbt.trainer")
	if logger == nil {
		t.Fatal("GetLoggerWithName returned nil")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		level     string
		verbose   bool
		wantDebug bool
		wantInfo  bool
	}{
		{"", false, false, true},
		{"debug", false, true, true},
		{"warn", false, false, false},
		{"warn", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewWithWriter(&buf, tt.level, tt.verbose)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestNewWithWriterInvalidLevel(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

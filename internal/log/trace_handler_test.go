package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestTraceHandler_TruncatesPayloadKeys tests that oversized payload
// attributes are cut while short ones pass through.
func TestTraceHandler_TruncatesPayloadKeys(t *testing.T) {
	t.Parallel()

	longHex := strings.Repeat("A0 ", MaxPayloadLen)

	tests := []struct {
		name         string
		key          string
		value        string
		wantTruncate bool
	}{
		{
			name:         "oversized apdu is truncated",
			key:          "apdu",
			value:        longHex,
			wantTruncate: true,
		},
		{
			name:         "oversized response is truncated",
			key:          "response",
			value:        longHex,
			wantTruncate: true,
		},
		{
			name:         "Apdu key (mixed case) is truncated",
			key:          "Apdu",
			value:        longHex,
			wantTruncate: true,
		},
		{
			name:         "oversized stdout is truncated",
			key:          "stdout",
			value:        longHex,
			wantTruncate: true,
		},
		{
			name:         "short apdu passes through",
			key:          "apdu",
			value:        "00 A4 04 00 00",
			wantTruncate: false,
		},
		{
			name:         "oversized non-payload key passes through",
			key:          "reader",
			value:        longHex,
			wantTruncate: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(NewTraceHandler(slog.NewTextHandler(&buf, nil)))

			logger.Info("exchange", tt.key, tt.value)

			out := buf.String()
			gotTruncated := strings.Contains(out, "bytes omitted")
			if gotTruncated != tt.wantTruncate {
				t.Errorf("truncated = %v, want %v (output: %.120s)", gotTruncated, tt.wantTruncate, out)
			}
			if tt.wantTruncate && strings.Contains(out, tt.value) {
				t.Error("full payload leaked into output")
			}
		})
	}
}

// TestTraceHandler_Groups tests truncation inside attribute groups.
func TestTraceHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewTextHandler(&buf, nil)))

	longHex := strings.Repeat("FF", MaxPayloadLen)
	logger.Info("exchange", slog.Group("card",
		slog.String("apdu", longHex),
		slog.String("reader", "ACS ACR1252"),
	))

	out := buf.String()
	if !strings.Contains(out, "bytes omitted") {
		t.Error("expected grouped apdu to be truncated")
	}
	if !strings.Contains(out, "ACS ACR1252") {
		t.Error("expected non-payload group attribute to pass through")
	}
}

// TestTraceHandler_WithAttrs tests that pre-bound attributes are truncated.
func TestTraceHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewTextHandler(&buf, nil)))

	longHex := strings.Repeat("3B", MaxPayloadLen)
	logger.With("atr", longHex).Info("connected")

	if !strings.Contains(buf.String(), "bytes omitted") {
		t.Error("expected bound atr attribute to be truncated")
	}
}

// TestNewLogger tests level selection by verbose flag.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("default level suppresses debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)

		logger.Debug("hidden")
		logger.Info("also hidden")
		logger.Warn("visible")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Error("expected debug and info output to be suppressed")
		}
		if !strings.Contains(out, "visible") {
			t.Error("expected warn output")
		}
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)

		logger.Debug("trace line")
		if !strings.Contains(buf.String(), "trace line") {
			t.Error("expected debug output in verbose mode")
		}
	})
}

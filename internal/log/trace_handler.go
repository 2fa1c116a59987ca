package log

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// payloadKeys contains attribute keys that carry raw wire payloads.
// Values under these keys are truncated when they exceed MaxPayloadLen.
var payloadKeys = map[string]bool{
	// Card transport
	"apdu":     true,
	"response": true,
	"atr":      true,

	// Installer process capture
	"stdout": true,
	"stderr": true,
	"output": true,
}

// MaxPayloadLen is the maximum length of a payload attribute value.
// Longer values are cut and suffixed with the omitted byte count.
const MaxPayloadLen = 512

// TraceHandler wraps an slog.Handler to truncate oversized payload
// attributes. It intercepts log records and shortens attribute values
// under payload keys before passing them to the underlying handler, so
// verbose APDU tracing stays readable.
type TraceHandler struct {
	// handler is the underlying slog handler that receives truncated records.
	handler slog.Handler
}

// NewTraceHandler creates a new TraceHandler wrapping the given handler.
// If handler is nil, the returned TraceHandler uses slog.Default().Handler().
func NewTraceHandler(handler slog.Handler) *TraceHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &TraceHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle truncates the record's payload attributes and passes it to the
// underlying handler.
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	truncated := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		truncated.AddAttrs(h.truncateAttr(a))
		return true
	})

	return h.handler.Handle(ctx, truncated)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are truncated before being added.
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	truncatedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		truncatedAttrs[i] = h.truncateAttr(a)
	}
	return &TraceHandler{handler: h.handler.WithAttrs(truncatedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{handler: h.handler.WithGroup(name)}
}

// truncateAttr shortens a single attribute, recursively handling groups.
func (h *TraceHandler) truncateAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		truncatedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			truncatedAttrs[i] = h.truncateAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(truncatedAttrs...)}
	}

	if !payloadKeys[strings.ToLower(a.Key)] {
		return a
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	val := a.Value.String()
	if len(val) <= MaxPayloadLen {
		return a
	}

	omitted := len(val) - MaxPayloadLen
	return slog.String(a.Key, val[:MaxPayloadLen]+"... ("+strconv.Itoa(omitted)+" bytes omitted)")
}

// NewLogger creates a new slog.Logger for measurement runs.
// Payload attributes in the output are truncated.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewTraceHandler(textHandler))
}

// NewJSONLogger creates a new slog.Logger that outputs JSON format.
// Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	jsonHandler := slog.NewJSONHandler(w, opts)
	return slog.New(NewTraceHandler(jsonHandler))
}

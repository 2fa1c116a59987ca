package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/applet-tools/cardmeter/internal/database"
	"github.com/applet-tools/cardmeter/internal/model"
)

// MarkdownWriter outputs aggregate documents in Markdown format for
// documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// title is the H1 heading of the rendered report.
	title string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer under the given title.
func NewMarkdownWriter(output io.Writer, title string) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      title,
	}
}

// Write outputs the document in Markdown format. Each top-level group
// becomes a section with a table of its entries.
func (w *MarkdownWriter) Write(doc model.AggregateDocument) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(w.title)
	md.PlainText("")

	if doc.Len() == 0 {
		md.PlainText("No measurements recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	for _, group := range sortedKeys(doc) {
		entries := doc[group]

		md.H2(group)
		md.PlainText("")

		rows := make([][]string, 0, len(entries))
		for _, name := range sortedKeys(entries) {
			m := entries[name]
			rows = append(rows, []string{
				name,
				strconv.FormatUint(m.PersistentBytes, 10),
				strconv.FormatUint(m.TransientBytes, 10),
			})
		}

		md.Table(markdown.TableSet{
			Header: []string{"Name", "Persistent (bytes)", "Transient (bytes)"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// WriteHistory renders the measurement history of a single package as a
// Markdown table with per-version deltas.
func WriteHistory(output io.Writer, name string, history []database.VersionMeasurement) error {
	md := markdown.NewMarkdown(output)

	md.H1("Storage history: " + name)
	md.PlainText("")

	if len(history) == 0 {
		md.PlainText("No measurements recorded.")
		md.PlainText("")
		return md.Build()
	}

	rows := make([][]string, 0, len(history))
	var prev *database.VersionMeasurement
	for i := range history {
		h := history[i]
		rows = append(rows, []string{
			h.Version,
			strconv.FormatUint(h.Measurement.PersistentBytes, 10),
			formatDelta(prev, h.Measurement.PersistentBytes, func(m model.StorageMeasurement) uint64 { return m.PersistentBytes }),
			strconv.FormatUint(h.Measurement.TransientBytes, 10),
			formatDelta(prev, h.Measurement.TransientBytes, func(m model.StorageMeasurement) uint64 { return m.TransientBytes }),
		})
		prev = &history[i]
	}

	md.Table(markdown.TableSet{
		Header: []string{"Version", "Persistent", "Δ Persistent", "Transient", "Δ Transient"},
		Rows:   rows,
	})
	md.PlainText("")
	return md.Build()
}

// formatDelta renders the signed difference from the previous version,
// or "-" for the first row.
func formatDelta(prev *database.VersionMeasurement, cur uint64, field func(model.StorageMeasurement) uint64) string {
	if prev == nil {
		return "-"
	}
	old := field(prev.Measurement)
	if cur >= old {
		return "+" + strconv.FormatUint(cur-old, 10)
	}
	return "-" + strconv.FormatUint(old-cur, 10)
}

// sortedKeys returns the map keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

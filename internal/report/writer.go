package report

import (
	"io"

	"github.com/applet-tools/cardmeter/internal/model"
)

// Writer outputs an aggregate measurement document to a configured
// destination.
type Writer interface {
	// Write outputs the document. Returns the number of bytes written
	// and any error encountered.
	Write(doc model.AggregateDocument) (int, error)
}

// MultiWriter writes a document to multiple Writers. Useful for
// outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the document to all configured Writers. Returns the
// total bytes written. Stops on the first error encountered.
func (m *MultiWriter) Write(doc model.AggregateDocument) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(doc)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for document writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

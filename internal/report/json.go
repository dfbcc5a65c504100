package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/precache/internal/model"
)

// JSONWriter outputs the report as JSON for scripts.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type jsonReport struct {
	*model.StatusReport
	State string `json:"state"`
}

// Write outputs the report followed by a newline.
func (w *JSONWriter) Write(report *model.StatusReport) (int, error) {
	payload := jsonReport{StatusReport: report, State: report.RunState()}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(payload, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		return 0, err
	}
	return w.output.Write(append(data, '\n'))
}

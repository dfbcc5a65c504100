package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/precache/internal/model"
)

// SimpleWriter outputs a plain text report for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the run id and format version.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.StatusReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeRun(&sb, report)
	w.writeStorage(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.StatusReport) {
	sb.WriteString("PRECACHE STATUS\n")
	sb.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(sb, "Origin:      %s\n", report.Origin)
	fmt.Fprintf(sb, "Cache:       %s\n", report.CacheName)
	fmt.Fprintf(sb, "First visit: %s\n", yesNo(report.IsFirstVisit))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRun(sb *strings.Builder, report *model.StatusReport) {
	sb.WriteString("Last run\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(sb, "State:       %s\n", report.RunState())

	s := report.Status
	if s == nil {
		sb.WriteString("\n")
		return
	}
	if s.IsComplete {
		fmt.Fprintf(sb, "Items:       %d\n", s.TotalItems)
		fmt.Fprintf(sb, "Images:      %d\n", s.TotalImages)
		fmt.Fprintf(sb, "Completed:   %s\n", formatTime(s.CompletedAt))
	} else {
		fmt.Fprintf(sb, "Error:       %s\n", s.Error)
		fmt.Fprintf(sb, "Failed:      %s\n", formatTime(s.FailedAt))
	}
	if w.verbose {
		fmt.Fprintf(sb, "Run ID:      %s\n", s.RunID)
		fmt.Fprintf(sb, "Version:     %s\n", s.Version)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStorage(sb *strings.Builder, report *model.StatusReport) {
	sb.WriteString("Storage\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(sb, "API caches:  %d (%d entries, %s)\n",
		report.Storage.Caches, report.Storage.Entries, formatBytes(report.Storage.Bytes))
	fmt.Fprintf(sb, "Images:      %d (%s)\n",
		report.Images.Entries, formatBudget(report.Images.Bytes, report.Images.Budget))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

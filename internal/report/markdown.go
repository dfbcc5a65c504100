package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/precache/internal/model"
)

// MarkdownWriter outputs the report as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.StatusReport) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Pre-cache Status")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Origin", "`" + report.Origin + "`"},
			{"Cache", "`" + report.CacheName + "`"},
			{"Generated", report.GeneratedAt.Format(timeLayout)},
			{"First visit", yesNo(report.IsFirstVisit)},
			{"State", report.RunState()},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)
	w.writeStorage(md, report)

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.StatusReport) {
	s := report.Status
	switch report.RunState() {
	case model.RunStateComplete:
		md.Tip(fmt.Sprintf("%d items and %d images were cached at %s.",
			s.TotalItems, s.TotalImages, formatTime(s.CompletedAt)))
	case model.RunStateFailed:
		md.Warningf("The last run failed at %s: %s", formatTime(s.FailedAt), s.Error)
	case model.RunStateOutdated:
		md.Note("The stored status was written by an older version and will be refreshed.")
	default:
		md.Note("No pre-cache run has been recorded yet.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeStorage(md *markdown.Markdown, report *model.StatusReport) {
	md.H2("Storage")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Store", "Entries", "Size"},
		Rows: [][]string{
			{"API responses", strconv.Itoa(report.Storage.Entries), formatBytes(report.Storage.Bytes)},
			{"Images", strconv.Itoa(report.Images.Entries), formatBudget(report.Images.Bytes, report.Images.Budget)},
		},
	})
	md.PlainText("")
	md.BulletList(
		strconv.Itoa(report.Storage.Caches)+" named cache(s)",
		"Generated by precache",
	)
}

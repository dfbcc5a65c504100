// Package report renders a model.StatusReport.
//
// SimpleWriter is for terminals, MarkdownWriter for sharing and JSONWriter
// for scripts. All of them implement Writer.
package report

package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// Format selects the log encoding.
type Format string

const (
	// FormatAuto picks text for terminals and JSON otherwise.
	FormatAuto Format = "auto"
	// FormatText is slog's logfmt-style text output.
	FormatText Format = "text"
	// FormatJSON is one JSON object per line.
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool

	// Format is the output encoding. Empty means FormatAuto.
	Format Format
}

// New returns a secure logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	switch resolveFormat(w, opts.Format) {
	case FormatJSON:
		return NewSecureJSONLogger(w, opts.Verbose)
	default:
		return NewSecureLogger(w, opts.Verbose)
	}
}

func resolveFormat(w io.Writer, f Format) Format {
	switch f {
	case FormatText, FormatJSON:
		return f
	}
	if file, ok := w.(*os.File); ok {
		fd := file.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return FormatText
		}
		return FormatJSON
	}
	return FormatText
}

func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger returns a text logger. verbose selects Debug instead of
// Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(h))
}

// NewSecureJSONLogger returns a JSON logger. verbose selects Debug instead
// of Warn.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(h))
}

// Package log builds the slog loggers used by precache.
//
// Every logger is wrapped in a SecureHandler that masks credentials before
// they reach the output: authorization and cookie headers, tokens, and
// secret query parameters embedded in logged URLs. The API the pre-cache
// subsystem talks to is public, but the same process may be configured
// with an authenticated base URL or user agent, and logs are routinely
// pasted into bug reports.
//
// Usage:
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	slog.SetDefault(logger)
//	logger.Info("stored response", "url", "https://api.example/x?token=abc")
//	// url=https://api.example/x?token=***REDACTED***
package log

// Package logging provides structured logging for ghcisession.
//
// It wraps log/slog with a JSON handler and adds persistent attributes
// (session ID, command) so that the log of a long-running REPL or a batch
// run can be filtered per session afterwards.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Persistent attributes via WithSession, WithCommand and With
//   - Size-based log rotation with optional gzip compression
//   - A [Logger.Slog] bridge for packages that take a *slog.Logger
//   - Reading back the active file and its rotated backups ([ReadLogs]),
//     with filtering ([Filter]) and export to JSON, text or CSV ([Export])
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sess, err := ghci.New(ghci.Config{Logger: logger.WithCommand("eval").Slog()})
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"session ready","command":"eval","session_id":"...","pid":4242}
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use; child loggers
// share their parent's writer.
package logging

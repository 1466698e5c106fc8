package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/ghcisession/ghci"
	"github.com/Iron-Ham/ghcisession/internal/config"
	"github.com/Iron-Ham/ghcisession/internal/errors"
	"github.com/Iron-Ham/ghcisession/internal/logging"
	"github.com/Iron-Ham/ghcisession/internal/styles"
)

// evaluator is the subset of *ghci.Session used by the commands.
type evaluator interface {
	EvalContext(ctx context.Context, snippet string) (ghci.EvalOutput, error)
	Import(modules ...string) error
	Load(paths ...string) error
	SetTimeout(d time.Duration)
	Timeout() time.Duration
	State() ghci.State
	ID() string
	Close() error
}

// startSession is swapped out in tests.
var startSession = func(cfg ghci.Config) (evaluator, error) {
	sess, err := ghci.New(cfg)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// openSession starts a session configured from cfg and brings the
// configured default imports into scope.
func openSession(cfg *config.Config, logger *logging.Logger) (evaluator, error) {
	sess, err := startSession(ghci.Config{
		Path:    cfg.GHCI.ResolvePath(),
		Args:    cfg.GHCI.Args,
		Dir:     cfg.GHCI.WorkDir,
		Timeout: cfg.Eval.Timeout(),
		Logger:  logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ghci: %w", err)
	}
	if err := sess.Import(cfg.Eval.Imports...); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("failed to import default modules: %w", err)
	}
	return sess, nil
}

// createLogger creates a logger if logging is enabled in config.
// Returns a NopLogger if logging is disabled or if creation fails.
func createLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}
	logger, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level, rotation)
	if err != nil {
		// Log creation failure shouldn't prevent the command from running
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// writeOutput prints an evaluation's streams to the matching writers.
// Stderr is colored when styled is set.
func writeOutput(stdout, stderr io.Writer, out ghci.EvalOutput, styled bool) {
	if out.Stdout != "" {
		fmt.Fprint(stdout, out.Stdout)
	}
	if out.Stderr == "" {
		return
	}
	if styled {
		fmt.Fprintln(stderr, styles.Stderr.Render(strings.TrimRight(out.Stderr, "\n")))
		return
	}
	fmt.Fprint(stderr, out.Stderr)
}

// logEvalFailure logs err at the level its severity calls for, tagged with
// its kind when it is a session error.
func logEvalFailure(logger *logging.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if kind, ok := errors.KindOf(err); ok {
		args = append(args, "error_kind", kind.String())
	}

	switch errors.GetSeverity(err) {
	case errors.SeverityCritical, errors.SeverityError:
		logger.Error(msg, args...)
	case errors.SeverityWarning:
		logger.Warn(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

package ghci

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// EnvPath is the environment variable consulted when Config.Path is empty.
const EnvPath = "GHCI_PATH"

// DefaultExecutable is looked up on PATH when neither Config.Path nor
// $GHCI_PATH is set.
const DefaultExecutable = "ghci"

// Config holds the settings used to start a Session.
type Config struct {
	// Path is the interpreter executable. See ResolvePath.
	Path string

	// Args are extra command-line arguments, e.g. "-ignore-dot-ghci".
	Args []string

	// Dir is the working directory. Empty means the caller's.
	Dir string

	// Env is the process environment. Nil inherits the caller's.
	Env []string

	// Timeout bounds each wait for output during Eval. Zero or negative
	// waits indefinitely. It can be changed later with SetTimeout.
	Timeout time.Duration

	// Logger receives debug and lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// Validate checks that the Config can be used to start a process.
func (c *Config) Validate() error {
	if c.Path != "" && strings.TrimSpace(c.Path) == "" {
		return errors.New("Path must not be blank")
	}
	for i, arg := range c.Args {
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("Args[%d] contains a NUL byte", i)
		}
	}
	return nil
}

// ResolvePath returns path if set, otherwise $GHCI_PATH, otherwise
// DefaultExecutable. Lookup on PATH happens when the process is spawned.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultExecutable
}

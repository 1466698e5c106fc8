package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/ghcisession/ghci"
	"github.com/Iron-Ham/ghcisession/internal/logging"
	"github.com/spf13/viper"
)

// EnvPath is the environment variable that overrides the ghci executable.
const EnvPath = ghci.EnvPath

// EnvPrefix is the prefix for environment overrides of any config key,
// e.g. GHCISESSION_EVAL_TIMEOUT_MS for eval.timeout_ms.
const EnvPrefix = "GHCISESSION"

// Config represents the complete ghcisession configuration
type Config struct {
	GHCI    GHCIConfig    `mapstructure:"ghci"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GHCIConfig controls how the evaluator process is launched
type GHCIConfig struct {
	// Path is the executable to run. Empty means $GHCI_PATH, then "ghci" on PATH.
	Path string `mapstructure:"path"`
	// Args are extra command-line arguments passed to the executable
	Args []string `mapstructure:"args"`
	// WorkDir is the working directory of the evaluator (default: current directory)
	WorkDir string `mapstructure:"work_dir"`
}

// EvalConfig controls evaluation behavior
type EvalConfig struct {
	// TimeoutMs bounds each wait for evaluator output in milliseconds (0 = wait forever)
	TimeoutMs int `mapstructure:"timeout_ms"`
	// Imports are modules brought into scope right after the session starts
	Imports []string `mapstructure:"imports"`
}

// BatchConfig controls the batch command
type BatchConfig struct {
	// MaxParallel is the maximum number of sessions running at once (default: 4)
	MaxParallel int `mapstructure:"max_parallel"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where log files go. Empty means {ConfigDir}/logs.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	rotation := logging.DefaultRotationConfig()
	return &Config{
		GHCI: GHCIConfig{
			Path:    "",
			Args:    []string{},
			WorkDir: "",
		},
		Eval: EvalConfig{
			TimeoutMs: 0, // No timeout by default
			Imports:   []string{},
		},
		Batch: BatchConfig{
			MaxParallel: 4,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			Compress:   rotation.Compress,
		},
	}
}

// Timeout returns the evaluation timeout as a time.Duration (0 means none)
func (c *EvalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ResolveDir returns the log directory, defaulting to {ConfigDir}/logs and
// expanding a leading ~.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return expandHome(c.Dir)
}

// ResolvePath returns the executable to launch: the configured path, then
// $GHCI_PATH, then "ghci".
func (c *GHCIConfig) ResolvePath() string {
	return ghci.ResolvePath(expandHome(strings.TrimSpace(c.Path)))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// SetDefaults registers default values and environment bindings with viper
func SetDefaults() {
	defaults := Default()

	// GHCI defaults
	viper.SetDefault("ghci.path", defaults.GHCI.Path)
	viper.SetDefault("ghci.args", defaults.GHCI.Args)
	viper.SetDefault("ghci.work_dir", defaults.GHCI.WorkDir)
	_ = viper.BindEnv("ghci.path", EnvPath)

	// Eval defaults
	viper.SetDefault("eval.timeout_ms", defaults.Eval.TimeoutMs)
	viper.SetDefault("eval.imports", defaults.Eval.Imports)

	// Batch defaults
	viper.SetDefault("batch.max_parallel", defaults.Batch.MaxParallel)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghcisession")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghcisession"
	}
	return filepath.Join(home, ".config", "ghcisession")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

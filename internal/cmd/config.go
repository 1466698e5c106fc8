package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iron-Ham/ghcisession/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify ghcisession configuration",
	Long: `View or modify ghcisession configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  ghcisession config set eval.timeout_ms 5000
  ghcisession config set ghci.path ~/.ghcup/bin/ghci

Valid keys:
  ghci.path            - ghci executable
  eval.timeout_ms      - Bound on each wait for output (0 = none)
  batch.max_parallel   - Concurrent sessions for the batch command
  logging.enabled      - Write JSON logs to the log directory (true/false)
  logging.level        - debug, info, warn, error
  logging.max_size_mb  - Rotate the log file at this size
  logging.max_backups  - Rotated files to keep
  logging.compress     - Gzip rotated files (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/ghcisession/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "ghci:")
	fmt.Fprintf(out, "  path: %s (resolves to %s)\n", cfg.GHCI.Path, cfg.GHCI.ResolvePath())
	fmt.Fprintf(out, "  args: [%s]\n", strings.Join(cfg.GHCI.Args, ", "))
	fmt.Fprintf(out, "  work_dir: %s\n", cfg.GHCI.WorkDir)

	fmt.Fprintln(out, "eval:")
	fmt.Fprintf(out, "  timeout_ms: %d\n", cfg.Eval.TimeoutMs)
	fmt.Fprintf(out, "  imports: [%s]\n", strings.Join(cfg.Eval.Imports, ", "))

	fmt.Fprintln(out, "batch:")
	fmt.Fprintf(out, "  max_parallel: %d\n", cfg.Batch.MaxParallel)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.ResolveDir())
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	return nil
}

// settableKeys maps each key accepted by "config set" to its value type.
var settableKeys = map[string]string{
	"ghci.path":           "string",
	"eval.timeout_ms":     "int",
	"batch.max_parallel":  "int",
	"logging.enabled":     "bool",
	"logging.level":       "string",
	"logging.max_size_mb": "int",
	"logging.max_backups": "int",
	"logging.compress":    "bool",
}

// parseConfigValue checks value against the type registered for key.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'ghcisession config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	default:
		if key == "logging.level" && !isValidLogLevel(value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
		return value, nil
	}
}

func isValidLogLevel(level string) bool {
	for _, l := range config.ValidLogLevels() {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typedValue)

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# ghcisession configuration

ghci:
  # ghci executable; empty means $GHCI_PATH, then "ghci" on PATH
  path: ""
  # Extra arguments, e.g. ["-ignore-dot-ghci"]
  args: []
  # Working directory for the interpreter; empty means the current one
  work_dir: ""

eval:
  # Bound on each wait for output in milliseconds (0 = wait forever).
  # A session that hits it must be discarded.
  timeout_ms: 0
  # Modules brought into scope in every new session
  imports: []

batch:
  # Maximum number of sessions the batch command runs at once
  max_parallel: 4

logging:
  enabled: false
  # debug, info, warn, error
  level: info
  # Empty means ~/.config/ghcisession/logs
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'ghcisession config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_EVAL_TIMEOUT_MS), %s\n",
		config.EnvPrefix, config.EnvPrefix, config.EnvPath)
	return nil
}

package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/ghcisession/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ghcisession",
	Short: "Evaluate Haskell snippets in a managed ghci session",
	Long: `ghcisession runs ghci as a subprocess and evaluates Haskell snippets
against it, keeping stdout and stderr of every evaluation separate.

The interpreter is found via --ghci, the ghci.path config key, $GHCI_PATH,
or "ghci" on PATH, in that order.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/ghcisession/config.yaml)")
	flags.String("ghci", "", "ghci executable to run")
	flags.Duration("timeout", 0, "bound on each wait for output, e.g. 2s (0 waits forever)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("ghci.path", flags.Lookup("ghci"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g., GHCISESSION_EVAL_TIMEOUT_MS for eval.timeout_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig applies flags that need conversion before viper sees them and
// returns the validated configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Flags().Changed("timeout") {
		d, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		viper.Set("eval.timeout_ms", durationToMillis(d))
	}
	return config.Load()
}

// durationToMillis rounds up so that a positive duration never becomes the
// "no timeout" value 0.
func durationToMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}

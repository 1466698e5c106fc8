package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

var evalCmd = &cobra.Command{
	Use:   "eval [snippet...]",
	Short: "Evaluate snippets in a fresh ghci session",
	Long: `Evaluate one or more snippets in order in a single ghci session and
print what each wrote to stdout and stderr.

Snippets come from the arguments, then from --file. With neither, the whole
of standard input is evaluated as one snippet.

Examples:
  # Print a value
  ghcisession eval 'print (sum [1..10])'

  # Evaluate a file with Data.Char in scope and a 2s wait bound
  ghcisession eval --import Data.Char --timeout 2s -f snippet.hs

  # Load a module first
  ghcisession eval --load src/Lib.hs 'main'`,
	RunE: runEval,
}

var (
	evalFiles   []string
	evalImports []string
	evalLoads   []string
)

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringArrayVarP(&evalFiles, "file", "f", nil, "read a snippet from `FILE` (repeatable, - for stdin)")
	evalCmd.Flags().StringSliceVar(&evalImports, "import", nil, "modules to bring into scope before evaluating")
	evalCmd.Flags().StringArrayVar(&evalLoads, "load", nil, "source files to :load before evaluating")
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	snippets, err := collectSnippets(args, evalFiles, cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger := createLogger(cfg).WithCommand("eval")
	defer func() { _ = logger.Close() }()

	sess, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.Import(evalImports...); err != nil {
		return errors.Wrap(err, "failed to import modules")
	}
	if err := sess.Load(evalLoads...); err != nil {
		return errors.Wrap(err, "failed to load files")
	}

	for i, snippet := range snippets {
		out, err := sess.EvalContext(cmd.Context(), snippet)
		if err != nil {
			logEvalFailure(logger, "evaluation failed", err, "index", i)
			return errors.Wrapf(err, "snippet %d", i+1)
		}
		writeOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, false)
	}
	return nil
}

// collectSnippets returns args followed by the contents of files. "-"
// reads stdin. With no args and no files, stdin is the only snippet.
func collectSnippets(args, files []string, stdin io.Reader) ([]string, error) {
	snippets := append([]string(nil), args...)

	if len(args) == 0 && len(files) == 0 {
		files = []string{"-"}
	}

	for _, file := range files {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read snippet: %w", err)
		}
		snippets = append(snippets, strings.TrimRight(string(data), "\n"))
	}

	for _, s := range snippets {
		if strings.TrimSpace(s) != "" {
			return snippets, nil
		}
	}
	return nil, errors.New("nothing to evaluate")
}

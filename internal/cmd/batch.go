package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ghcisession/ghci"
	"github.com/Iron-Ham/ghcisession/internal/config"
	"github.com/Iron-Ham/ghcisession/internal/logging"
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE...",
	Short: "Evaluate each file in its own session, in parallel",
	Long: `Evaluate every file as one snippet in a separate ghci session. Up to
batch.max_parallel sessions run at a time. Results are printed in the order
the files were given, each under a "==> FILE <==" header.

The command fails if any file fails to evaluate. Diagnostics printed by ghci
on stderr do not count as failures.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var batchParallel int

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 0, "maximum concurrent sessions (overrides batch.max_parallel)")
}

type batchResult struct {
	File     string
	Output   ghci.EvalOutput
	Err      error
	Duration time.Duration
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if batchParallel > 0 {
		cfg.Batch.MaxParallel = batchParallel
	}

	logger := createLogger(cfg).WithCommand("batch")
	defer func() { _ = logger.Close() }()

	results := runBatchFiles(cmd.Context(), cfg, logger, args)

	failed := printBatchResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), results)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// runBatchFiles evaluates files concurrently and returns one result per
// file, in input order.
func runBatchFiles(ctx context.Context, cfg *config.Config, logger *logging.Logger, files []string) []batchResult {
	results := make([]batchResult, len(files))

	p := pool.New().WithMaxGoroutines(max(cfg.Batch.MaxParallel, 1))
	for i, file := range files {
		p.Go(func() {
			results[i] = evalFile(ctx, cfg, logger.With("file", file), file)
		})
	}
	p.Wait()

	return results
}

func evalFile(ctx context.Context, cfg *config.Config, logger *logging.Logger, file string) (result batchResult) {
	start := time.Now()
	result.File = file
	defer func() {
		result.Duration = time.Since(start)
	}()

	data, err := os.ReadFile(file)
	if err != nil {
		result.Err = err
		return result
	}

	sess, err := openSession(cfg, logger)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() { _ = sess.Close() }()

	result.Output, result.Err = sess.EvalContext(ctx, strings.TrimRight(string(data), "\n"))
	if result.Err != nil {
		logEvalFailure(logger, "batch evaluation failed", result.Err)
	} else {
		logger.Debug("batch evaluation finished", "duration", time.Since(start))
	}
	return result
}

// printBatchResults writes each result under a header and returns the
// number of failures.
func printBatchResults(stdout, stderr io.Writer, results []batchResult) int {
	failed := 0
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "==> %s <==\n", r.File)
		if r.Err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %v\n", r.File, r.Err)
			continue
		}
		writeOutput(stdout, stderr, r.Output, false)
	}
	return failed
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/ghcisession/ghci"
	"github.com/Iron-Ham/ghcisession/internal/config"
	"github.com/Iron-Ham/ghcisession/internal/logging"
	"github.com/Iron-Ham/ghcisession/internal/styles"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read snippets from stdin and evaluate them one by one",
	Long: `Start a ghci session and evaluate each input line as a snippet.

Lines between :{ and :} are sent as one snippet. A few commands are handled
locally instead of being sent to ghci:

  :timeout            show the per-wait timeout
  :timeout <dur|off>  change it, e.g. :timeout 500ms
  :state              show the session state
  :restart            replace the session with a fresh one
  :quit, :q           exit

A session that times out is replaced automatically. Edits to
eval.timeout_ms in the config file apply to the next evaluation.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := createLogger(cfg).WithCommand("repl")
	defer func() { _ = logger.Close() }()

	r := newRepl(cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	r.interactive = cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd()))

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(r.onConfigChange)
		viper.WatchConfig()
	}

	return r.run(cmd.Context())
}

type repl struct {
	cfg         *config.Config
	logger      *logging.Logger
	in          *bufio.Scanner
	out         io.Writer
	errOut      io.Writer
	interactive bool

	sess evaluator

	// pendingTimeout is set by the config watcher and applied before the
	// next evaluation.
	pendingTimeout atomic.Pointer[time.Duration]
}

func newRepl(cfg *config.Config, logger *logging.Logger, in io.Reader, out, errOut io.Writer) *repl {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &repl{
		cfg:    cfg,
		logger: logger,
		in:     scanner,
		out:    out,
		errOut: errOut,
	}
}

func (r *repl) run(ctx context.Context) error {
	if err := r.start(); err != nil {
		return err
	}
	defer func() { _ = r.sess.Close() }()

	var block []string
	inBlock := false
	for ctx.Err() == nil {
		if inBlock {
			r.prompt("... ")
		} else {
			r.prompt("λ> ")
		}
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := r.in.Text()

		switch {
		case inBlock && strings.TrimSpace(line) == ":}":
			inBlock = false
			r.eval(ctx, strings.Join(block, "\n"))
			block = nil
			continue
		case inBlock:
			block = append(block, line)
			continue
		case strings.TrimSpace(line) == ":{":
			inBlock = true
			continue
		case strings.TrimSpace(line) == "":
			continue
		}

		quit, handled, err := r.meta(line)
		if err != nil {
			r.notice(styles.Warning, err.Error())
			continue
		}
		if quit {
			return nil
		}
		if !handled {
			r.eval(ctx, line)
		}
	}
	return nil
}

func (r *repl) start() error {
	sess, err := openSession(r.cfg, r.logger)
	if err != nil {
		return err
	}
	r.sess = sess
	r.logger.WithSession(sess.ID()).Info("repl session started")
	return nil
}

func (r *repl) restart() error {
	_ = r.sess.Close()
	return r.start()
}

func (r *repl) eval(ctx context.Context, snippet string) {
	if p := r.pendingTimeout.Swap(nil); p != nil {
		r.sess.SetTimeout(*p)
		r.notice(styles.Info, "timeout is now "+formatTimeout(*p))
	}

	out, err := r.sess.EvalContext(ctx, snippet)
	if err == nil {
		writeOutput(r.out, r.errOut, out, r.interactive)
		return
	}

	r.notice(styles.Stderr, err.Error())
	logEvalFailure(r.logger.WithSession(r.sess.ID()), "evaluation failed", err)

	// A poll error means the interpreter's output is gone, usually because
	// it exited.
	var reason string
	switch {
	case ghci.IsTimeout(err) || r.sess.State().IsTerminal():
		reason = "session timed out"
	case ghci.IsPoll(err):
		reason = "interpreter stopped responding"
	}
	if reason != "" {
		timeout := r.sess.Timeout()
		r.notice(styles.Warning, reason+", starting a new one")
		if err := r.restart(); err != nil {
			r.notice(styles.Stderr, err.Error())
			return
		}
		r.sess.SetTimeout(timeout)
	}
}

// meta handles the locally interpreted commands. handled is false when the
// line should go to ghci.
func (r *repl) meta(line string) (quit, handled bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true, true, nil
	case ":state":
		r.notice(styles.Info, "session "+r.sess.ID()+" is "+styles.State(r.sess.State().String()))
		return false, true, nil
	case ":restart":
		if err := r.restart(); err != nil {
			return false, true, err
		}
		r.notice(styles.Success, "started a new session")
		return false, true, nil
	case ":timeout":
		if len(fields) == 1 {
			r.notice(styles.Info, "timeout is "+formatTimeout(r.sess.Timeout()))
			return false, true, nil
		}
		d, err := parseTimeoutArg(fields[1])
		if err != nil {
			return false, true, err
		}
		r.sess.SetTimeout(d)
		r.notice(styles.Info, "timeout is now "+formatTimeout(d))
		return false, true, nil
	}
	return false, false, nil
}

// onConfigChange picks up a new eval.timeout_ms from the watched config.
func (r *repl) onConfigChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	d := time.Duration(viper.GetInt("eval.timeout_ms")) * time.Millisecond
	if d < 0 {
		r.logger.Warn("ignoring negative timeout from config", "file", e.Name)
		return
	}
	r.pendingTimeout.Store(&d)
	r.logger.Info("config file changed", "file", e.Name, "timeout", d)
}

func (r *repl) prompt(p string) {
	if r.interactive {
		fmt.Fprint(r.out, styles.Prompt.Render(p))
	}
}

func (r *repl) notice(style lipgloss.Style, msg string) {
	if r.interactive {
		msg = style.Render(msg)
	}
	fmt.Fprintln(r.errOut, msg)
}

// parseTimeoutArg accepts a Go duration, a bare number of milliseconds,
// or "off".
func parseTimeoutArg(s string) (time.Duration, error) {
	if s == "off" || s == "none" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("timeout must not be negative: %s", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: use a duration like 500ms or off", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative: %s", s)
	}
	return d, nil
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return d.String()
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/ghcisession/internal/logging"
	"github.com/Iron-Ham/ghcisession/internal/styles"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View session logs",
	Long: `View and filter the JSON log written when logging.enabled is set.

Rotated backups, compressed or not, are read along with the active file.

Examples:
  # Show the last 50 entries
  ghcisession logs

  # Show every entry of one session (an ID prefix is enough)
  ghcisession logs -s 3f2a -n 0

  # Follow new entries as they are written
  ghcisession logs -f

  # Warnings and errors from the last hour
  ghcisession logs --level warn --since 1h

  # Export matching entries as CSV
  ghcisession logs --grep "timeout|closed" --format csv > timeouts.csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsSessionID string
	logsCommand   string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Only entries whose session ID starts with this")
	logsCmd.Flags().StringVar(&logsCommand, "command", "", "Only entries written by this command (eval, repl, batch)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsFormat, "format", "", "Export format instead of the terminal view: json, text, csv")
}

// buildLogFilter turns the flag values into a logging.Filter.
func buildLogFilter(level, since, grep, sessionID, command string, now time.Time) (logging.Filter, error) {
	filter := logging.Filter{
		SessionID: sessionID,
		Command:   command,
	}

	if level != "" {
		if !isValidLogLevel(level) {
			return filter, fmt.Errorf("invalid level %q: valid options are %s",
				level, strings.Join(logging.ValidLevels(), ", "))
		}
		filter.Level = logging.ParseLevel(level)
	}

	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return filter, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = now.Add(-d)
	}

	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return filter, fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.Pattern = re
	}

	return filter, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter, err := buildLogFilter(logsLevel, logsSince, logsGrep, logsSessionID, logsCommand, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	view := newLogView(out)
	logPath := filepath.Join(cfg.Logging.ResolveDir(), logging.LogFileName)

	if logsFollow {
		fmt.Fprintln(out, styles.Info.Render("Following logs... (Ctrl+C to stop)"))
		return followLogs(cmd.Context(), out, logPath, filter, view, nil)
	}

	return displayLogs(out, logPath, filter, logsTail, logsFormat, view)
}

// displayLogs prints the last tail entries matching filter, either for the
// terminal or in an export format.
func displayLogs(out io.Writer, logPath string, filter logging.Filter, tail int, format string, view logView) error {
	entries, err := logging.ReadLogs(logPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "No logs found at %s\n", logPath)
		fmt.Fprintln(out, "Enable them with: ghcisession config set logging.enabled true")
		return nil
	}
	if err != nil {
		return err
	}

	entries = logging.FilterEntries(entries, filter)
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	if format != "" {
		return logging.Export(out, entries, format)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintln(out, view.format(entry))
	}
	return nil
}

// maxAttrLen bounds attribute values, such as captured stderr, in the
// terminal view.
const maxAttrLen = 120

// logView controls how entries are printed. The zero value prints plain
// text lines.
type logView struct {
	styled bool
	width  int // terminal columns; 0 means unbounded
}

func newLogView(w io.Writer) logView {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return logView{}
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 0
	}
	return logView{styled: true, width: width}
}

// format renders one entry.
func (v logView) format(entry logging.Entry) string {
	if !v.styled {
		return logging.FormatText(entry)
	}

	var sb strings.Builder
	sb.WriteString(styles.Info.Render("[" + entry.Time.Local().Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(styles.Level(strings.ToUpper(entry.Level)))
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	field := func(key, value string) {
		sb.WriteString(" ")
		sb.WriteString(styles.Prompt.Render(key + "="))
		sb.WriteString(value)
	}
	if entry.SessionID != "" {
		field("session", entry.SessionID)
	}
	if entry.Command != "" {
		field("command", entry.Command)
	}
	if entry.PID != 0 {
		field("pid", fmt.Sprint(entry.PID))
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, styles.Clip(fmt.Sprint(entry.Attrs[k]), maxAttrLen))
	}
	return styles.Fit(sb.String(), v.width)
}

// followLogs prints entries appended to logPath until ctx is done. The file
// is reopened from the start when rotation replaces it. started, when not
// nil, is closed once the watcher is in place.
func followLogs(ctx context.Context, out io.Writer, logPath string, filter logging.Filter, view logView, started chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	// Watch the directory so that a file created by rotation is seen.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	t := &logTail{out: out, filter: filter, view: view}
	defer t.close()
	if err := t.open(logPath, true); err != nil {
		return err
	}

	if started != nil {
		close(started)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(logPath) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				t.drain()
				t.close()
				if err := t.open(logPath, false); err != nil {
					return err
				}
				t.drain()
			case event.Has(fsnotify.Write):
				t.drain()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				t.drain()
				t.close()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// logTail reads complete lines appended to one log file.
type logTail struct {
	out    io.Writer
	filter logging.Filter
	view   logView

	file    *os.File
	reader  *bufio.Reader
	partial string
}

// open starts reading path, at its end when seekEnd is set. A missing file
// is not an error; the Create event opens it later.
func (t *logTail) open(path string, seekEnd bool) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if seekEnd {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to seek to end: %w", err)
		}
	}
	t.file = file
	t.reader = bufio.NewReader(file)
	t.partial = ""
	return nil
}

func (t *logTail) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file, t.reader = nil, nil
	}
}

// drain prints every complete line available. A trailing partial line is
// kept until the rest of it is written.
func (t *logTail) drain() {
	if t.reader == nil {
		return
	}
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			t.partial += line
			return
		}
		line = strings.TrimSpace(t.partial + line)
		t.partial = ""
		if line == "" {
			continue
		}

		entry, err := logging.ParseEntry(line)
		if err != nil {
			fmt.Fprintln(t.out, line)
			continue
		}
		if !t.filter.Matches(entry) {
			continue
		}
		fmt.Fprintln(t.out, t.view.format(entry))
	}
}

package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one parsed log record.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	SessionID string         `json:"session_id,omitempty"`
	Command   string         `json:"command,omitempty"`
	PID       int            `json:"pid,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter selects log entries. Zero fields match everything; set fields
// are combined with AND.
type Filter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level string

	Since time.Time
	Until time.Time

	SessionID string
	Command   string

	// Pattern is matched against the message and the attribute values.
	Pattern *regexp.Regexp
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// LevelPriority returns the ordering of level, or -1 if it is unknown.
func LevelPriority(level string) int {
	if p, ok := levelOrder[strings.ToUpper(level)]; ok {
		return p
	}
	return -1
}

// ReadLogs returns the entries of the log file at path and of its rotated
// backups (compressed or not), oldest first. Lines that are not valid JSON
// are skipped.
func ReadLogs(path string) ([]Entry, error) {
	var files []string
	for n := 1; ; n++ {
		backup := path + "." + strconv.Itoa(n)
		if _, err := os.Stat(backup); err == nil {
			files = append(files, backup)
			continue
		}
		if _, err := os.Stat(backup + ".gz"); err == nil {
			files = append(files, backup+".gz")
			continue
		}
		break
	}
	// Backups are numbered newest first.
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	if _, err := os.Stat(path); err == nil {
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log file found at %s: %w", path, os.ErrNotExist)
	}

	var entries []Entry
	for _, f := range files {
		fileEntries, err := readLogFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func readLogFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var entries []Entry
	scanner := bufio.NewScanner(r)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

// ParseEntry parses one JSON log line.
func ParseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var entry Entry
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.SessionID, _ = raw["session_id"].(string)
	entry.Command, _ = raw["command"].(string)
	if pid, ok := raw["pid"].(float64); ok {
		entry.PID = int(pid)
	}

	for _, k := range []string{"time", "level", "msg", "session_id", "command", "pid"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		entry.Attrs = raw
	}
	return entry, nil
}

// Matches reports whether entry passes every criterion set in f.
func (f Filter) Matches(entry Entry) bool {
	if f.Level != "" {
		min, entryLevel := LevelPriority(f.Level), LevelPriority(entry.Level)
		if min >= 0 && entryLevel >= 0 && entryLevel < min {
			return false
		}
	}
	if !f.Since.IsZero() && entry.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && entry.Time.After(f.Until) {
		return false
	}
	if f.SessionID != "" && !strings.HasPrefix(entry.SessionID, f.SessionID) {
		return false
	}
	if f.Command != "" && entry.Command != f.Command {
		return false
	}
	if f.Pattern != nil {
		text := entry.Message
		for _, v := range entry.Attrs {
			text += " " + fmt.Sprint(v)
		}
		if !f.Pattern.MatchString(text) {
			return false
		}
	}
	return true
}

// FilterEntries returns the entries matched by f.
func FilterEntries(entries []Entry, f Filter) []Entry {
	var filtered []Entry
	for _, e := range entries {
		if f.Matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Export writes entries to w. Supported formats: "json", "text", "csv".
func Export(w io.Writer, entries []Entry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text":
		return exportText(w, entries)
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, text, csv)", format)
	}
}

// FormatText renders an entry as one plain line:
// [TIMESTAMP] LEVEL - MESSAGE (context) {attrs}
func FormatText(entry Entry) string {
	parts := []string{
		"[" + entry.Time.Format("2006-01-02 15:04:05.000") + "]",
		entry.Level,
		"-",
		entry.Message,
	}

	var context []string
	if entry.SessionID != "" {
		context = append(context, "session="+entry.SessionID)
	}
	if entry.Command != "" {
		context = append(context, "command="+entry.Command)
	}
	if entry.PID != 0 {
		context = append(context, "pid="+strconv.Itoa(entry.PID))
	}
	if len(context) > 0 {
		parts = append(parts, "("+strings.Join(context, ", ")+")")
	}

	if len(entry.Attrs) > 0 {
		attrs, _ := json.Marshal(entry.Attrs)
		parts = append(parts, string(attrs))
	}
	return strings.Join(parts, " ")
}

func exportText(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		if _, err := fmt.Fprintln(w, FormatText(entry)); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func exportCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)

	headers := []string{"timestamp", "level", "message", "session_id", "command", "pid", "attrs"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		attrs := ""
		if len(entry.Attrs) > 0 {
			if b, err := json.Marshal(entry.Attrs); err == nil {
				attrs = string(b)
			}
		}
		pid := ""
		if entry.PID != 0 {
			pid = strconv.Itoa(entry.PID)
		}
		record := []string{
			entry.Time.Format(time.RFC3339Nano),
			entry.Level,
			entry.Message,
			entry.SessionID,
			entry.Command,
			pid,
			attrs,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

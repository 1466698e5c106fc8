package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func writeGzipLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func TestReadLogs(t *testing.T) {
	t.Run("parses entries written by Logger", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.WithCommand("eval").WithSession("sess-1").With("pid", 4242).Info("session started", "path", "ghci")
		logger.WithCommand("eval").WithSession("sess-1").Debug("eval complete")
		logger.WithCommand("repl").Error("session restart failed", "error", "boom")
		_ = logger.Close()

		entries, err := ReadLogs(filepath.Join(dir, LogFileName))
		if err != nil {
			t.Fatalf("ReadLogs failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}

		first := entries[0]
		if first.Message != "session started" {
			t.Errorf("Message = %q, want %q", first.Message, "session started")
		}
		if first.Level != LevelInfo {
			t.Errorf("Level = %q, want %q", first.Level, LevelInfo)
		}
		if first.SessionID != "sess-1" {
			t.Errorf("SessionID = %q, want %q", first.SessionID, "sess-1")
		}
		if first.Command != "eval" {
			t.Errorf("Command = %q, want %q", first.Command, "eval")
		}
		if first.PID != 4242 {
			t.Errorf("PID = %d, want 4242", first.PID)
		}
		if first.Attrs["path"] != "ghci" {
			t.Errorf("Attrs[path] = %v, want ghci", first.Attrs["path"])
		}
		if _, ok := first.Attrs["session_id"]; ok {
			t.Error("known fields should not be repeated in Attrs")
		}
		if first.Time.IsZero() {
			t.Error("Time should be parsed")
		}
	})

	t.Run("includes rotated and compressed backups oldest first", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, LogFileName)

		writeGzipLines(t, path+".2.gz",
			`{"time":"2026-01-01T10:00:00Z","level":"INFO","msg":"oldest"}`)
		writeLines(t, path+".1",
			`{"time":"2026-01-01T11:00:00Z","level":"INFO","msg":"older"}`)
		writeLines(t, path,
			`{"time":"2026-01-01T12:00:00Z","level":"INFO","msg":"current"}`)

		entries, err := ReadLogs(path)
		if err != nil {
			t.Fatalf("ReadLogs failed: %v", err)
		}

		var got []string
		for _, e := range entries {
			got = append(got, e.Message)
		}
		want := []string{"oldest", "older", "current"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("messages = %v, want %v", got, want)
		}
	})

	t.Run("reads backups when the active file is gone", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, LogFileName)
		writeLines(t, path+".1", `{"time":"2026-01-01T11:00:00Z","level":"WARN","msg":"only backup"}`)

		entries, err := ReadLogs(path)
		if err != nil {
			t.Fatalf("ReadLogs failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Message != "only backup" {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, LogFileName)
		writeLines(t, path,
			`{"time":"2026-01-01T10:00:00Z","level":"INFO","msg":"valid 1"}`,
			`not json`,
			``,
			`{"time":"2026-01-01T10:00:01Z","level":"INFO","msg":"valid 2"}`)

		entries, err := ReadLogs(path)
		if err != nil {
			t.Fatalf("ReadLogs failed: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(entries))
		}
	})

	t.Run("missing log file", func(t *testing.T) {
		_, err := ReadLogs(filepath.Join(t.TempDir(), LogFileName))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("ReadLogs error = %v, want os.ErrNotExist", err)
		}
	})
}

func TestParseEntry(t *testing.T) {
	entry, err := ParseEntry(`{"time":"2026-03-04T05:06:07.123Z","level":"ERROR","msg":"eval failed","session_id":"abc","pid":17,"error_kind":"timeout"}`)
	if err != nil {
		t.Fatalf("ParseEntry failed: %v", err)
	}
	if entry.Level != LevelError || entry.Message != "eval failed" || entry.SessionID != "abc" || entry.PID != 17 {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Attrs["error_kind"] != "timeout" {
		t.Errorf("Attrs = %v", entry.Attrs)
	}
	wantTime := time.Date(2026, 3, 4, 5, 6, 7, 123_000_000, time.UTC)
	if !entry.Time.Equal(wantTime) {
		t.Errorf("Time = %v, want %v", entry.Time, wantTime)
	}

	if _, err := ParseEntry("{"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLevelPriority(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"DEBUG", 0},
		{"info", 1},
		{"Warn", 2},
		{"ERROR", 3},
		{"TRACE", -1},
		{"", -1},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := LevelPriority(tt.level); got != tt.want {
				t.Errorf("LevelPriority(%q) = %d, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestFilterEntries(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Time: base, Level: LevelDebug, Message: "debug message", SessionID: "aaaa-1111", Command: "eval"},
		{Time: base.Add(time.Minute), Level: LevelInfo, Message: "session started", SessionID: "aaaa-1111", Command: "eval"},
		{Time: base.Add(2 * time.Minute), Level: LevelWarn, Message: "load reported errors", SessionID: "bbbb-2222", Command: "repl",
			Attrs: map[string]any{"stderr": "can't find a source file"}},
		{Time: base.Add(3 * time.Minute), Level: LevelError, Message: "eval failed", SessionID: "bbbb-2222", Command: "batch"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "empty filter keeps everything",
			filter: Filter{},
			want:   []string{"debug message", "session started", "load reported errors", "eval failed"},
		},
		{
			name:   "minimum level",
			filter: Filter{Level: "warn"},
			want:   []string{"load reported errors", "eval failed"},
		},
		{
			name:   "since and until",
			filter: Filter{Since: base.Add(30 * time.Second), Until: base.Add(150 * time.Second)},
			want:   []string{"session started", "load reported errors"},
		},
		{
			name:   "session prefix",
			filter: Filter{SessionID: "bbbb"},
			want:   []string{"load reported errors", "eval failed"},
		},
		{
			name:   "command",
			filter: Filter{Command: "eval"},
			want:   []string{"debug message", "session started"},
		},
		{
			name:   "pattern matches attribute values",
			filter: Filter{Pattern: regexp.MustCompile(`source file`)},
			want:   []string{"load reported errors"},
		},
		{
			name:   "criteria combine",
			filter: Filter{Level: LevelInfo, SessionID: "aaaa"},
			want:   []string{"session started"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range FilterEntries(entries, tt.filter) {
				got = append(got, e.Message)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	entries := []Entry{
		{
			Time:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			Level:     LevelInfo,
			Message:   "session started",
			SessionID: "sess-1",
			Command:   "eval",
			PID:       99,
			Attrs:     map[string]any{"path": "ghci"},
		},
		{
			Time:    time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC),
			Level:   LevelError,
			Message: "eval failed",
		},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "json"); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		var decoded []Entry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].PID != 99 || decoded[1].Message != "eval failed" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "TEXT"); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		want := `[2026-01-01 12:00:00.000] INFO - session started (session=sess-1, command=eval, pid=99) {"path":"ghci"}`
		if lines[0] != want {
			t.Errorf("line 0 = %q, want %q", lines[0], want)
		}
		if lines[1] != "[2026-01-01 12:00:01.000] ERROR - eval failed" {
			t.Errorf("line 1 = %q", lines[1])
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "csv"); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header + 2 records, got %d", len(records))
		}
		if records[0][0] != "timestamp" || records[0][6] != "attrs" {
			t.Errorf("header = %v", records[0])
		}
		if records[1][5] != "99" || records[2][5] != "" {
			t.Errorf("pid columns = %q, %q", records[1][5], records[2][5])
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		err := Export(&bytes.Buffer{}, entries, "xml")
		if err == nil || !strings.Contains(err.Error(), "unsupported export format") {
			t.Errorf("Export error = %v", err)
		}
	})
}

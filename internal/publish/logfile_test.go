package publish

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMonthlyLogPath(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	got := MonthlyLogPath("/var/log/trendpulse", now)
	want := filepath.Join("/var/log/trendpulse", "update_log_2026-08.txt")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOpenMonthlyLogAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	for _, line := range []string{"first run\n", "second run\n"} {
		f, err := OpenMonthlyLog(dir, now)
		if err != nil {
			t.Fatalf("opening log: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("writing log: %v", err)
		}
		f.Close()
	}

	data, err := os.ReadFile(MonthlyLogPath(dir, now))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if string(data) != "first run\nsecond run\n" {
		t.Errorf("unexpected log content: %q", data)
	}
}

func TestWriteRunHeader(t *testing.T) {
	var buf bytes.Buffer
	WriteRunHeader(&buf, time.Date(2026, 8, 29, 6, 30, 0, 0, time.UTC))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 header lines, got %d", len(lines))
	}
	if lines[0] != strings.Repeat("=", 60) || lines[2] != lines[0] {
		t.Error("expected separator lines around the timestamp")
	}
	if lines[1] != "Run: 2026-08-29 06:30:00" {
		t.Errorf("unexpected timestamp line: %q", lines[1])
	}
}

func TestPruneOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	retention := 180 * 24 * time.Hour

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("log\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := now.Add(-age)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	write("update_log_2026-08.txt", 24*time.Hour)
	write("update_log_2026-02.txt", 179*24*time.Hour)
	write("update_log_2025-12.txt", 200*24*time.Hour)
	write("update_log_2025-06.txt", 400*24*time.Hour)
	write("notes.txt", 400*24*time.Hour) // not a log, left alone

	removed := PruneOldLogs(dir, retention, now)
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	for _, name := range []string{"update_log_2026-08.txt", "update_log_2026-02.txt", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to survive: %v", name, err)
		}
	}
	for _, name := range []string{"update_log_2025-12.txt", "update_log_2025-06.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be pruned", name)
		}
	}
}

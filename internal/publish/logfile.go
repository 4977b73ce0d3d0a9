package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	logFilePrefix = "update_log_"
	logFileSuffix = ".txt"
)

const runHeaderSeparator = "============================================================"

// MonthlyLogPath returns the log file for the month of now, e.g.
// logs/update_log_2026-08.txt. One file per month collects every run.
func MonthlyLogPath(dir string, now time.Time) string {
	return filepath.Join(dir, logFilePrefix+now.Format("2006-01")+logFileSuffix)
}

// OpenMonthlyLog opens the current month's log for appending, creating the
// directory as needed. The file is never truncated: it is the rolling record
// of every run in its month.
func OpenMonthlyLog(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(MonthlyLogPath(dir, now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return f, nil
}

// WriteRunHeader writes the separator block that starts each run's section.
func WriteRunHeader(w io.Writer, now time.Time) {
	fmt.Fprintln(w, runHeaderSeparator)
	fmt.Fprintf(w, "Run: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, runHeaderSeparator)
}

// PruneOldLogs deletes run logs whose last modification is older than the
// retention window. Best-effort: unreadable directories or failed deletes
// are ignored. Returns the number of files removed.
func PruneOldLogs(dir string, retention time.Duration, now time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := now.Add(-retention)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(dir, name)) == nil {
				removed++
			}
		}
	}
	return removed
}

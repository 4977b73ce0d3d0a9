package database

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertRun records the start of an updater run and returns its ID.
func (db *DB) InsertRun(startedAt time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO runs (started_at) VALUES (?)",
		startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun marks a run complete with its outcome. succeeded is false for
// runs that ended in an error; those don't count for the once-per-day guard.
func (db *DB) FinishRun(id int64, finishedAt time.Time, succeeded, changed bool, latestDataDate, note string) error {
	succeededInt := 0
	if succeeded {
		succeededInt = 1
	}
	changedInt := 0
	if changed {
		changedInt = 1
	}
	var latest, n *string
	if latestDataDate != "" {
		latest = &latestDataDate
	}
	if note != "" {
		n = &note
	}
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, succeeded = ?, changed = ?, latest_data_date = ?, note = ? WHERE id = ?",
		finishedAt.UTC().Format(time.RFC3339), succeededInt, changedInt, latest, n, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	return nil
}

// GetLatestDataDate returns the newest data date any changed run recorded,
// or "" when the ledger has none. This is the freshness gate input.
func (db *DB) GetLatestDataDate() (string, error) {
	var date sql.NullString
	err := db.conn.QueryRow(
		"SELECT latest_data_date FROM runs WHERE changed = 1 AND latest_data_date IS NOT NULL ORDER BY id DESC LIMIT 1",
	).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading latest data date: %w", err)
	}
	return date.String, nil
}

// HasRunOn reports whether a successful run started on the given local date
// (YYYY-MM-DD). Used for the once-per-day guard; failed runs don't count, so
// a transient failure is retried by the next same-day invocation.
func (db *DB) HasRunOn(date string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM runs WHERE started_at >= ? AND started_at < ? AND finished_at IS NOT NULL AND succeeded = 1",
		dayStartUTC(date), dayEndUTC(date),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking runs for %s: %w", date, err)
	}
	return count > 0, nil
}

// GetRecentRuns returns the newest runs, most recent first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		"SELECT id, started_at, finished_at, succeeded, changed, latest_data_date, note FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var succeeded, changed int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &succeeded, &changed, &r.LatestDataDate, &r.Note); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Succeeded = succeeded != 0
		r.Changed = changed != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate ledger statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	err := db.conn.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(changed), 0) FROM runs",
	).Scan(&s.TotalRuns, &s.ChangedRuns)
	if err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	err = db.conn.QueryRow(
		"SELECT COUNT(*), COUNT(DISTINCT name) FROM artifacts",
	).Scan(&s.TotalArtifacts, &s.ArtifactNames)
	if err != nil {
		return nil, fmt.Errorf("counting artifacts: %w", err)
	}

	var lastRun, lastData sql.NullString
	_ = db.conn.QueryRow("SELECT started_at FROM runs ORDER BY id DESC LIMIT 1").Scan(&lastRun)
	_ = db.conn.QueryRow(
		"SELECT latest_data_date FROM runs WHERE latest_data_date IS NOT NULL ORDER BY id DESC LIMIT 1",
	).Scan(&lastData)
	s.LastRunAt = lastRun.String
	s.LastDataDate = lastData.String

	return s, nil
}

func dayStartUTC(date string) string {
	t, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return date
	}
	return t.UTC().Format(time.RFC3339)
}

func dayEndUTC(date string) string {
	t, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).UTC().Format(time.RFC3339)
}

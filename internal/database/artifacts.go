package database

import (
	"database/sql"
	"fmt"
)

// RecordArtifact stores one written artifact version for a run.
func (db *DB) RecordArtifact(runID int64, name, relPath, sha256 string, size int64) error {
	_, err := db.conn.Exec(
		"INSERT INTO artifacts (run_id, name, rel_path, sha256, bytes) VALUES (?, ?, ?, ?, ?)",
		runID, name, relPath, sha256, size,
	)
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", name, err)
	}
	return nil
}

// GetCurrentArtifact returns the newest recorded version of an artifact,
// or nil when the ledger has never seen it.
func (db *DB) GetCurrentArtifact(name string) (*Artifact, error) {
	var a Artifact
	err := db.conn.QueryRow(
		"SELECT id, run_id, name, rel_path, sha256, bytes, written_at FROM artifacts WHERE name = ? ORDER BY id DESC LIMIT 1",
		name,
	).Scan(&a.ID, &a.RunID, &a.Name, &a.RelPath, &a.SHA256, &a.Bytes, &a.WrittenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading current artifact %s: %w", name, err)
	}
	return &a, nil
}

// GetCurrentChecksum returns the newest recorded checksum of an artifact,
// or "" when it has never been written.
func (db *DB) GetCurrentChecksum(name string) (string, error) {
	a, err := db.GetCurrentArtifact(name)
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", nil
	}
	return a.SHA256, nil
}

// GetArtifactsForRun returns every artifact a run wrote, in insert order.
func (db *DB) GetArtifactsForRun(runID int64) ([]Artifact, error) {
	rows, err := db.conn.Query(
		"SELECT id, run_id, name, rel_path, sha256, bytes, written_at FROM artifacts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for run %d: %w", runID, err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.Name, &a.RelPath, &a.SHA256, &a.Bytes, &a.WrittenAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

package database

// Run represents one updater invocation.
type Run struct {
	ID             int64
	StartedAt      string
	FinishedAt     *string
	Succeeded      bool
	Changed        bool
	LatestDataDate *string
	Note           *string
}

// Artifact is one written version of a dataset file.
type Artifact struct {
	ID        int64
	RunID     int64
	Name      string
	RelPath   string
	SHA256    string
	Bytes     int64
	WrittenAt *string
}

// Stats contains aggregate ledger statistics.
type Stats struct {
	TotalRuns      int
	ChangedRuns    int
	ArtifactNames  int
	LastRunAt      string
	LastDataDate   string
	TotalArtifacts int
}

package models

// ParseStats counts what the parser saw while scanning a report.
type ParseStats struct {
	// RowsScanned is the number of physical rows read.
	RowsScanned int `json:"rows_scanned"`
	// Sections is the number of valid section markers found.
	Sections int `json:"sections"`
	// SkippedMarkers counts marker-shaped rows whose code is not in the reference set.
	SkippedMarkers int `json:"skipped_markers"`
	// Emitted is the number of records produced.
	Emitted int `json:"emitted"`
}

// TransformStats counts records dropped or collapsed before persistence.
type TransformStats struct {
	Filtered   int `json:"filtered"`
	MissingKey int `json:"missing_key"`
	Duplicates int `json:"duplicates"`
}

// UpsertStats is the per-batch outcome reported by the upsert engine.
type UpsertStats struct {
	Considered   int `json:"considered"`
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Ignored      int `json:"ignored"`
	Deleted      int `json:"deleted"`
	ColumnsAdded int `json:"columns_added"`
}

// Result is the summary of one table import.
type Result struct {
	// Table is the destination table name.
	Table string `json:"table"`
	// RunID identifies the import run.
	RunID string `json:"run_id"`
	// Policy is the conflict policy applied.
	Policy string `json:"policy"`
	// DryRun is set when nothing was written.
	DryRun bool `json:"dry_run"`

	Parse     ParseStats     `json:"parse"`
	Transform TransformStats `json:"transform"`
	Upsert    UpsertStats    `json:"upsert"`
}

package syncer

import "time"

// EntityFailure records one entity that could not be transferred.
type EntityFailure struct {
	ID     string
	Reason string
}

// SyncResult summarizes a completed backup.
type SyncResult struct {
	ItemsSaved      int
	CategoriesSaved int
	Timestamp       time.Time

	// Failures lists entities that failed to transfer. Non-empty below the
	// abort threshold still counts as a successful (partial) backup.
	Failures []EntityFailure
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	ItemsRestored      int
	CategoriesRestored int

	// SkippedRecords counts remote records dropped because they were
	// malformed or their blobs were gone.
	SkippedRecords int

	// Timestamp is the metadata timestamp of the backup that was restored.
	Timestamp time.Time
}

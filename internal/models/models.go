// Package models defines the local domain objects owned by the inventory
// store: items, categories, and the per-backup metadata record.
package models

import "time"

// Category groups inventory items. Items reference categories by ID, so on
// restore categories must exist locally before the items that point at them.
type Category struct {
	// ID is a globally unique identifier, stable across backup cycles.
	ID string

	Name string
	Icon string

	// ModifiedAt is the last local modification time in UTC.
	ModifiedAt time.Time
}

// Item is a single inventory entry (a possession being documented for
// insurance purposes).
type Item struct {
	// ID is a globally unique identifier, stable across backup cycles.
	ID string

	Name         string
	Notes        string
	SerialNumber string

	// CategoryID references a Category; empty means uncategorized.
	CategoryID string

	// PurchasePrice and EstimatedValue are monetary amounts in the user's
	// currency. Zero means "unset".
	PurchasePrice  float64
	EstimatedValue float64

	Quantity int64

	// PurchaseDate is the acquisition date; zero value means unknown.
	PurchaseDate time.Time

	// Photo holds the primary image bytes; nil when no photo was taken.
	// During backup the bytes go to the blob store and only a handle is
	// written to the remote record.
	Photo []byte

	// PhotoRefs and DocumentRefs list additional attachment handles.
	PhotoRefs    []string
	DocumentRefs []string

	Tags []string

	// ModifiedAt is the last local modification time in UTC.
	ModifiedAt time.Time
}

// BackupStatus tracks the lifecycle of one backup run in the remote store.
type BackupStatus string

const (
	BackupStatusInProgress BackupStatus = "in_progress"
	BackupStatusCompleted  BackupStatus = "completed"
)

// BackupMetadata is the singleton-per-run record describing a backup. It is
// written once per successful backup and read once at the start of each
// restore, and distinguishes "no backup", "a backup in progress", and
// "a completed backup".
type BackupMetadata struct {
	Timestamp     time.Time
	ItemCount     int
	CategoryCount int
	DeviceName    string
	AppVersion    string
	Status        BackupStatus
}

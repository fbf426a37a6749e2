// Package remotestore defines the primitive, retry-free operations against
// the remote per-user datastore, scoped to one logical zone. Any conforming
// implementation of Client is substitutable: the in-memory store is a
// first-class implementation used by tests and offline development, with
// redis- and postgres-backed stores for real deployments.
//
// Retry and recovery decisions live in the orchestrator, never here.
package remotestore

import (
	"context"

	"github.com/alexkarev/homekeeper/internal/models"
	"github.com/alexkarev/homekeeper/internal/record"
)

// SaveResult reports the outcome of persisting one record. SaveMany is not
// atomic; callers must be prepared for partial success.
type SaveResult struct {
	ID  string
	Err error
}

// FetchResult carries one fetched record. Err is per-record so a single
// corrupt remote record cannot abort the whole fetch.
type FetchResult struct {
	ID     string
	Record *record.Record
	Err    error
}

// FetchOptions narrows a paged query.
type FetchOptions struct {
	// SortByDateDesc orders results by modification date, newest first.
	SortByDateDesc bool

	// Limit caps the number of results; zero means no cap.
	Limit int

	// Filter keeps only records the predicate accepts. Applied after
	// decoding, so records failing to decode are still reported.
	Filter func(*record.Record) bool
}

// Client is the set of primitive operations against the remote datastore.
//
// Contract:
//   - EnsureZone is idempotent; "already exists" is success.
//   - DeleteAll is best-effort cleanup; per-record failures are swallowed
//     and logged, never surfaced.
//   - SaveOne/SaveMany assign the server-side modification date.
//   - Every method is an asynchronous I/O boundary; callers must not hold
//     local-store locks across a call.
type Client interface {
	EnsureZone(ctx context.Context) error
	DeleteAll(ctx context.Context, recordType string) error
	SaveOne(ctx context.Context, rec *record.Record) error
	SaveMany(ctx context.Context, recs []*record.Record) []SaveResult
	Fetch(ctx context.Context, recordType string, opts FetchOptions) ([]FetchResult, error)
}

// Reconnecter is implemented by backends that can re-initialize their
// connection after the remote account changed mid-operation.
type Reconnecter interface {
	Reconnect(ctx context.Context) error
}

// SaveMetadata writes the singleton metadata record for a backup run.
func SaveMetadata(ctx context.Context, c Client, md models.BackupMetadata) error {
	return c.SaveOne(ctx, record.MetadataToRecord(md))
}

// FetchMetadata returns the most recent metadata record, or nil when no
// backup exists in the zone.
func FetchMetadata(ctx context.Context, c Client) (*record.Record, error) {
	results, err := c.Fetch(ctx, record.TypeMetadata, FetchOptions{
		SortByDateDesc: true,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Record, nil
}

// Package syncer implements the cloud backup/restore engine. The
// Orchestrator composes the remote store, the local store, the blob store
// and the record transformer into the two public operations, Backup and
// Restore, and owns every cross-cutting concern: zone lifecycle, batching,
// progress reporting, and the retry policy. The primitives it drives are
// retry-free; all recovery decisions live here.
package syncer

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/alexkarev/homekeeper/internal/blobstore"
	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/localstore"
	"github.com/alexkarev/homekeeper/internal/logging"
	"github.com/alexkarev/homekeeper/internal/models"
	"github.com/alexkarev/homekeeper/internal/record"
	"github.com/alexkarev/homekeeper/internal/remotestore"
	"github.com/alexkarev/homekeeper/internal/resolver"
)

const (
	defaultBatchSize  = 20
	defaultBatchPause = 200 * time.Millisecond
	defaultRetryPause = 500 * time.Millisecond
	defaultQuotaPause = 3 * time.Second

	// maxFailureSample bounds the per-entity error strings attached to a
	// surfaced failure; the full list stays in the SyncResult.
	maxFailureSample = 5
)

// Options configures an Orchestrator. Remote, Local, Blobs and DeviceName
// are required; everything else has defaults.
type Options struct {
	Remote remotestore.Client
	Local  localstore.Store
	Blobs  blobstore.Store
	Logger logging.Logger

	// DeviceName and AppVersion go into the backup metadata record.
	DeviceName string
	AppVersion string

	// BatchSize is tuned to the remote store's per-call record ceiling,
	// not to total volume.
	BatchSize int

	// BatchPause is the delay inserted between batches so the remote
	// service is not overwhelmed.
	BatchPause time.Duration

	// RetryPause is the delay before the single retry of account-changed
	// and record-conflict errors. QuotaPause is the longer delay before
	// the quota-exceeded retry.
	RetryPause time.Duration
	QuotaPause time.Duration
}

// Orchestrator sequences backup and restore runs. One logical operation is
// in flight per instance: a second call while one is active is rejected
// with ErrOperationInProgress.
type Orchestrator struct {
	remote remotestore.Client
	local  localstore.Store
	blobs  blobstore.Store
	tr     *record.Transformer
	log    logging.Logger

	deviceName string
	appVersion string

	batchSize  int
	batchPause time.Duration
	retryPause time.Duration
	quotaPause time.Duration

	mu       stdsync.Mutex
	active   bool
	progress Progress
	observer Observer
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Remote == nil || opts.Local == nil || opts.Blobs == nil {
		return nil, fmt.Errorf("%w: remote, local and blob stores are required", common.ErrNotConfigured)
	}
	if opts.DeviceName == "" {
		return nil, fmt.Errorf("%w: device name is required", common.ErrNotConfigured)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = defaultBatchPause
	}
	if opts.RetryPause <= 0 {
		opts.RetryPause = defaultRetryPause
	}
	if opts.QuotaPause <= 0 {
		opts.QuotaPause = defaultQuotaPause
	}

	return &Orchestrator{
		remote:     opts.Remote,
		local:      opts.Local,
		blobs:      opts.Blobs,
		tr:         record.NewTransformer(opts.Blobs),
		log:        opts.Logger,
		deviceName: opts.DeviceName,
		appVersion: opts.AppVersion,
		batchSize:  opts.BatchSize,
		batchPause: opts.BatchPause,
		retryPause: opts.RetryPause,
		quotaPause: opts.QuotaPause,
	}, nil
}

// SetObserver registers a progress observer. Call before starting a run.
func (o *Orchestrator) SetObserver(fn Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = fn
}

// Progress returns the current phase and completion fraction.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return common.ErrOperationInProgress
	}
	o.active = true
	o.progress = Progress{Phase: PhasePreparing}
	return nil
}

func (o *Orchestrator) end(final Phase) {
	o.mu.Lock()
	o.active = false
	o.progress.Phase = final
	if final == PhaseCompleted {
		o.progress.Fraction = 1
	}
	observer, snapshot := o.observer, o.progress
	o.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.progress.Phase = p
	observer, snapshot := o.observer, o.progress
	o.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

// setFraction raises the completion fraction; it never goes backwards.
func (o *Orchestrator) setFraction(f float64) {
	o.mu.Lock()
	if f > o.progress.Fraction {
		o.progress.Fraction = f
	}
	observer, snapshot := o.observer, o.progress
	o.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

// sleep waits for d or until ctx is done; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// withRetry runs fn and retries it exactly once for the transient error
// kinds, with the recovery action the kind calls for. Everything else
// propagates immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, common.ErrQuotaExceeded):
		// Free space by evicting temporary blob copies, then retry after
		// a multi-second delay.
		o.log.Warn(ctx, "quota exceeded, evicting staged blobs", "op", op)
		if cerr := o.blobs.CleanupTemporary(ctx); cerr != nil {
			o.log.Warn(ctx, "staging cleanup failed", "op", op, "error", cerr)
		}
		if !sleep(ctx, o.quotaPause) {
			return ctx.Err()
		}
		return fn()

	case errors.Is(err, common.ErrAccountChanged):
		o.log.Warn(ctx, "remote account changed, reconnecting", "op", op)
		if rc, ok := o.remote.(remotestore.Reconnecter); ok {
			if rerr := rc.Reconnect(ctx); rerr != nil {
				return rerr
			}
		}
		if !sleep(ctx, o.retryPause) {
			return ctx.Err()
		}
		return fn()

	case errors.Is(err, common.ErrRecordConflict):
		// Overwrite-on-backup: the write is expected to win on retry.
		o.log.Warn(ctx, "record conflict, retrying write", "op", op)
		if !sleep(ctx, o.retryPause) {
			return ctx.Err()
		}
		return fn()

	default:
		return err
	}
}

// batches partitions s into fixed-size chunks.
func batches[T any](s []T, size int) [][]T {
	var out [][]T
	for size < len(s) {
		out = append(out, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

// Backup pushes the given entities to the remote zone and finishes by
// writing the metadata record. Per-entity failures below one third of the
// total are recorded in the result; above that the run aborts with
// ErrTooManyFailures.
func (o *Orchestrator) Backup(ctx context.Context, items []models.Item, cats []models.Category) (*SyncResult, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	final := PhaseFailed
	defer func() {
		// Staged blob copies are removed whether the run succeeded or not.
		if err := o.blobs.CleanupTemporary(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn(ctx, "staging cleanup failed", "error", err)
		}
		o.end(final)
	}()

	total := len(items) + len(cats)
	o.log.Info(ctx, "backup starting", "items", len(items), "categories", len(cats), "device", o.deviceName)

	if err := o.withRetry(ctx, "ensure zone", func() error { return o.remote.EnsureZone(ctx) }); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	inProgress := models.BackupMetadata{
		Timestamp:  started,
		DeviceName: o.deviceName,
		AppVersion: o.appVersion,
		Status:     models.BackupStatusInProgress,
	}
	if err := o.withRetry(ctx, "mark backup in progress", func() error {
		return remotestore.SaveMetadata(ctx, o.remote, inProgress)
	}); err != nil {
		return nil, err
	}

	o.setPhase(PhaseClearingPrevious)
	_ = o.remote.DeleteAll(ctx, record.TypeItem)
	_ = o.remote.DeleteAll(ctx, record.TypeCategory)

	result := &SyncResult{Timestamp: started}
	var failures []EntityFailure
	processed := 0

	// aborted reports whether failures crossed the one-third threshold,
	// which is treated as a systemic problem rather than bad records.
	aborted := func() bool { return total > 0 && len(failures)*3 > total }

	o.setPhase(PhaseWritingCategories)
	for _, batch := range batches(cats, o.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		recs := make([]*record.Record, 0, len(batch))
		for i := range batch {
			rec, err := o.tr.CategoryToRecord(&batch[i])
			if err != nil {
				failures = append(failures, EntityFailure{ID: batch[i].ID, Reason: err.Error()})
				continue
			}
			recs = append(recs, rec)
		}

		for _, res := range o.remote.SaveMany(ctx, recs) {
			if res.Err != nil {
				failures = append(failures, EntityFailure{ID: res.ID, Reason: res.Err.Error()})
				continue
			}
			result.CategoriesSaved++
		}

		processed += len(batch)
		o.setFraction(float64(processed) / float64(total))
		if aborted() {
			return nil, o.tooManyFailures(failures, total)
		}
	}

	o.setPhase(PhaseWritingItems)
	itemBatches := batches(items, o.batchSize)
	for bi, batch := range itemBatches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Each entity transforms and saves independently; one bad record
		// never fails its batch.
		for i := range batch {
			item := &batch[i]
			rec, err := o.tr.ItemToRecord(ctx, item)
			if err != nil {
				o.log.Warn(ctx, "item transform failed", "id", item.ID, "error", err)
				failures = append(failures, EntityFailure{ID: item.ID, Reason: err.Error()})
				continue
			}
			if err := o.withRetry(ctx, "save item", func() error {
				return o.remote.SaveOne(ctx, rec)
			}); err != nil {
				// An unreachable service is not a bad record; surface it
				// without burning through the remaining entities.
				if errors.Is(err, common.ErrUnavailable) {
					return nil, err
				}
				o.log.Warn(ctx, "item save failed", "id", item.ID, "error", err)
				failures = append(failures, EntityFailure{ID: item.ID, Reason: err.Error()})
				continue
			}
			result.ItemsSaved++
		}

		processed += len(batch)
		o.setFraction(float64(processed) / float64(total))
		if aborted() {
			return nil, o.tooManyFailures(failures, total)
		}

		if bi < len(itemBatches)-1 && !sleep(ctx, o.batchPause) {
			return nil, ctx.Err()
		}
	}

	o.setPhase(PhaseWritingMetadata)
	completed := models.BackupMetadata{
		Timestamp:     started,
		ItemCount:     result.ItemsSaved,
		CategoryCount: result.CategoriesSaved,
		DeviceName:    o.deviceName,
		AppVersion:    o.appVersion,
		Status:        models.BackupStatusCompleted,
	}
	if err := o.withRetry(ctx, "write metadata", func() error {
		return remotestore.SaveMetadata(ctx, o.remote, completed)
	}); err != nil {
		return nil, err
	}

	result.Failures = failures
	final = PhaseCompleted
	o.log.Info(ctx, "backup completed",
		"items", result.ItemsSaved, "categories", result.CategoriesSaved, "failures", len(failures))
	return result, nil
}

// tooManyFailures wraps the abort-threshold error with a bounded sample of
// per-entity reasons.
func (o *Orchestrator) tooManyFailures(failures []EntityFailure, total int) error {
	sample := failures
	if len(sample) > maxFailureSample {
		sample = sample[:maxFailureSample]
	}
	reasons := make([]string, 0, len(sample))
	for _, f := range sample {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.ID, f.Reason))
	}
	return fmt.Errorf("%w: %d of %d entities failed (first %d: %v)",
		common.ErrTooManyFailures, len(failures), total, len(sample), reasons)
}

// Restore pulls the latest backup from the remote zone into the local
// store. Categories are restored before items so restored items never
// reference a category the local store does not have yet. Records that
// already exist locally with divergent content are merged field by field.
func (o *Orchestrator) Restore(ctx context.Context) (*RestoreResult, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	final := PhaseFailed
	defer func() {
		if err := o.blobs.CleanupTemporary(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn(ctx, "staging cleanup failed", "error", err)
		}
		o.end(final)
	}()

	if err := o.withRetry(ctx, "ensure zone", func() error { return o.remote.EnsureZone(ctx) }); err != nil {
		return nil, err
	}

	o.setPhase(PhaseReadingMetadata)
	mdRec, err := remotestore.FetchMetadata(ctx, o.remote)
	if err != nil {
		return nil, err
	}
	if mdRec == nil {
		return nil, common.ErrBackupNotFound
	}
	md, err := record.MetadataFromRecord(mdRec)
	if err != nil {
		return nil, err
	}
	o.log.Info(ctx, "restoring backup",
		"timestamp", md.Timestamp, "device", md.DeviceName, "status", md.Status)

	total := md.ItemCount + md.CategoryCount
	result := &RestoreResult{Timestamp: md.Timestamp}
	processed := 0

	advance := func() {
		processed++
		if total > 0 {
			o.setFraction(float64(processed) / float64(total))
		}
	}

	o.setPhase(PhaseReadingCategories)
	catResults, err := o.remote.Fetch(ctx, record.TypeCategory, remotestore.FetchOptions{})
	if err != nil {
		return nil, err
	}
	for _, res := range catResults {
		if res.Err != nil {
			o.log.Warn(ctx, "skipping unreadable category record", "id", res.ID, "error", res.Err)
			result.SkippedRecords++
			continue
		}
		if err := o.restoreCategory(ctx, res.Record); err != nil {
			if errors.Is(err, common.ErrMalformedRecord) {
				o.log.Warn(ctx, "skipping malformed category record", "id", res.ID, "error", err)
				result.SkippedRecords++
				continue
			}
			return nil, err
		}
		result.CategoriesRestored++
		advance()
	}

	o.setPhase(PhaseReadingItems)
	itemResults, err := o.remote.Fetch(ctx, record.TypeItem, remotestore.FetchOptions{})
	if err != nil {
		return nil, err
	}
	for _, res := range itemResults {
		if res.Err != nil {
			o.log.Warn(ctx, "skipping unreadable item record", "id", res.ID, "error", res.Err)
			result.SkippedRecords++
			continue
		}
		if err := o.restoreItem(ctx, res.Record); err != nil {
			if errors.Is(err, common.ErrMalformedRecord) {
				o.log.Warn(ctx, "skipping malformed item record", "id", res.ID, "error", err)
				result.SkippedRecords++
				continue
			}
			return nil, err
		}
		result.ItemsRestored++
		advance()
	}

	final = PhaseCompleted
	o.log.Info(ctx, "restore completed",
		"items", result.ItemsRestored, "categories", result.CategoriesRestored, "skipped", result.SkippedRecords)
	return result, nil
}

// restoreCategory inserts one fetched category, merging with a divergent
// local copy when one exists.
func (o *Orchestrator) restoreCategory(ctx context.Context, rec *record.Record) error {
	existing, err := o.local.ExistingCategory(ctx, rec.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		localRec, lerr := o.tr.CategoryToRecord(existing)
		if lerr == nil {
			localRec.ModificationDate = existing.ModifiedAt
			if conflict := resolver.Detect(localRec, rec); conflict != nil {
				o.log.Info(ctx, "merging divergent category",
					"id", rec.ID, "fields", conflict.ChangedFields)
				rec = conflict.Resolve()
			}
		}
	}

	cat, err := o.tr.CategoryFromRecord(rec)
	if err != nil {
		return err
	}
	return o.local.InsertCategory(ctx, cat)
}

// restoreItem inserts one fetched item, merging with a divergent local copy
// when one exists. A photo whose blob is gone costs the photo, not the item.
func (o *Orchestrator) restoreItem(ctx context.Context, rec *record.Record) error {
	existing, err := o.local.ExistingItem(ctx, rec.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		// Compare without re-uploading the local photo; the blob reference
		// fields carry the divergence we care about.
		withoutPhoto := *existing
		withoutPhoto.Photo = nil
		localRec, lerr := o.tr.ItemToRecord(ctx, &withoutPhoto)
		if lerr == nil {
			localRec.ModificationDate = existing.ModifiedAt
			if conflict := resolver.Detect(localRec, rec); conflict != nil {
				o.log.Info(ctx, "merging divergent item",
					"id", rec.ID, "fields", conflict.ChangedFields)
				rec = conflict.Resolve()
			}
		}
	}

	item, err := o.tr.ItemFromRecord(ctx, rec)
	if errors.Is(err, common.ErrBlobUnavailable) {
		o.log.Warn(ctx, "item photo blob unavailable, restoring without it", "id", rec.ID)
		stripped := rec.Clone()
		delete(stripped.Fields, record.FieldPhotoRef)
		item, err = o.tr.ItemFromRecord(ctx, stripped)
	}
	if err != nil {
		return err
	}

	// A local photo survives a merge that dropped the remote reference.
	if item.Photo == nil && existing != nil && existing.Photo != nil {
		item.Photo = existing.Photo
	}

	return o.local.InsertItem(ctx, item)
}

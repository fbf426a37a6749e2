package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexkarev/homekeeper/internal/blobstore"
	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/models"
	"github.com/alexkarev/homekeeper/internal/record"
	"github.com/alexkarev/homekeeper/internal/remotestore"
)

// flakyRemote wraps the in-memory remote store and injects failures: failAlways
// makes every save of the given record ID fail, failOnce only the first.
type flakyRemote struct {
	*remotestore.MemoryStore
	failAlways map[string]error
	failOnce   map[string]error

	reconnects int
}

func newFlakyRemote() *flakyRemote {
	return &flakyRemote{
		MemoryStore: remotestore.NewMemoryStore(),
		failAlways:  map[string]error{},
		failOnce:    map[string]error{},
	}
}

func (f *flakyRemote) saveErr(id string) error {
	if err, ok := f.failOnce[id]; ok {
		delete(f.failOnce, id)
		return err
	}
	if err, ok := f.failAlways[id]; ok {
		return err
	}
	return nil
}

func (f *flakyRemote) SaveOne(ctx context.Context, rec *record.Record) error {
	if err := f.saveErr(rec.ID); err != nil {
		return err
	}
	return f.MemoryStore.SaveOne(ctx, rec)
}

func (f *flakyRemote) SaveMany(ctx context.Context, recs []*record.Record) []remotestore.SaveResult {
	results := make([]remotestore.SaveResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, remotestore.SaveResult{ID: rec.ID, Err: f.SaveOne(ctx, rec)})
	}
	return results
}

func (f *flakyRemote) Reconnect(context.Context) error {
	f.reconnects++
	return nil
}

// memLocal is an in-memory local store recording insert order.
type memLocal struct {
	items       map[string]*models.Item
	categories  map[string]*models.Category
	insertOrder []string
}

func newMemLocal() *memLocal {
	return &memLocal{
		items:      map[string]*models.Item{},
		categories: map[string]*models.Category{},
	}
}

func (s *memLocal) FetchAllItems(context.Context) ([]models.Item, error) {
	out := make([]models.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	return out, nil
}

func (s *memLocal) FetchAllCategories(context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (s *memLocal) InsertItem(_ context.Context, item *models.Item) error {
	cp := *item
	s.items[item.ID] = &cp
	s.insertOrder = append(s.insertOrder, "item:"+item.ID)
	return nil
}

func (s *memLocal) InsertCategory(_ context.Context, cat *models.Category) error {
	cp := *cat
	s.categories[cat.ID] = &cp
	s.insertOrder = append(s.insertOrder, "category:"+cat.ID)
	return nil
}

func (s *memLocal) ExistingItem(_ context.Context, id string) (*models.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (s *memLocal) ExistingCategory(_ context.Context, id string) (*models.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func newTestOrchestrator(t *testing.T, remote remotestore.Client, local *memLocal) *Orchestrator {
	t.Helper()
	o, err := New(Options{
		Remote:     remote,
		Local:      local,
		Blobs:      blobstore.NewMemoryStore(),
		DeviceName: "test-device",
		AppVersion: "1.0.0",
		BatchSize:  3,
		BatchPause: time.Millisecond,
		RetryPause: time.Millisecond,
		QuotaPause: time.Millisecond,
	})
	require.NoError(t, err)
	return o
}

func makeItems(n int) []models.Item {
	items := make([]models.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, models.Item{
			ID:         uuid.NewString(),
			Name:       fmt.Sprintf("item-%02d", i),
			ModifiedAt: time.Date(2026, 8, 1, 10, 0, i, 0, time.UTC),
		})
	}
	return items
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, common.ErrNotConfigured)

	_, err = New(Options{
		Remote: remotestore.NewMemoryStore(),
		Local:  newMemLocal(),
		Blobs:  blobstore.NewMemoryStore(),
	})
	assert.ErrorIs(t, err, common.ErrNotConfigured)
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(7)
	cats := []models.Category{
		{ID: uuid.NewString(), Name: "Electronics", ModifiedAt: time.Now().UTC()},
		{ID: uuid.NewString(), Name: "Furniture", ModifiedAt: time.Now().UTC()},
	}

	result, err := o.Backup(ctx, items, cats)
	require.NoError(t, err)

	assert.Equal(t, 7, result.ItemsSaved)
	assert.Equal(t, 2, result.CategoriesSaved)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 7, remote.Count(record.TypeItem))
	assert.Equal(t, 2, remote.Count(record.TypeCategory))

	mdRec, err := remotestore.FetchMetadata(ctx, remote)
	require.NoError(t, err)
	require.NotNil(t, mdRec)
	md, err := record.MetadataFromRecord(mdRec)
	require.NoError(t, err)
	assert.Equal(t, 7, md.ItemCount)
	assert.Equal(t, 2, md.CategoryCount)
	assert.Equal(t, "test-device", md.DeviceName)
	assert.Equal(t, models.BackupStatusCompleted, md.Status)
}

func TestBackupReplacesPreviousBackup(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	o := newTestOrchestrator(t, remote, newMemLocal())

	_, err := o.Backup(ctx, makeItems(5), nil)
	require.NoError(t, err)
	require.Equal(t, 5, remote.Count(record.TypeItem))

	_, err = o.Backup(ctx, makeItems(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.Count(record.TypeItem))
}

func TestBackupPartialFailure(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(10)
	remote.failAlways[items[3].ID] = errors.New("record rejected: payload too large")

	result, err := o.Backup(ctx, items, nil)
	require.NoError(t, err)

	assert.Equal(t, 9, result.ItemsSaved)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, items[3].ID, result.Failures[0].ID)
	assert.Equal(t, 9, remote.Count(record.TypeItem))
}

func TestBackupAbortsAboveFailureThreshold(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(10)
	for _, i := range []int{0, 1, 2, 3} {
		remote.failAlways[items[i].ID] = errors.New("record rejected: payload too large")
	}

	_, err := o.Backup(ctx, items, nil)
	assert.ErrorIs(t, err, common.ErrTooManyFailures)

	// No completed metadata after an abort.
	mdRec, err := remotestore.FetchMetadata(ctx, remote)
	require.NoError(t, err)
	require.NotNil(t, mdRec)
	md, err := record.MetadataFromRecord(mdRec)
	require.NoError(t, err)
	assert.Equal(t, models.BackupStatusInProgress, md.Status)
}

func TestBackupRetriesTransientErrorsOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"quota exceeded", common.ErrQuotaExceeded},
		{"account changed", common.ErrAccountChanged},
		{"record conflict", common.ErrRecordConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			remote := newFlakyRemote()
			o := newTestOrchestrator(t, remote, newMemLocal())

			items := makeItems(3)
			remote.failOnce[items[1].ID] = tt.err

			result, err := o.Backup(ctx, items, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, result.ItemsSaved)
			assert.Empty(t, result.Failures)
		})
	}
}

func TestBackupReconnectsOnAccountChange(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(2)
	remote.failOnce[items[0].ID] = common.ErrAccountChanged

	_, err := o.Backup(ctx, items, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.reconnects)
}

func TestBackupPersistentTransientErrorFailsEntity(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(4)
	remote.failAlways[items[2].ID] = common.ErrQuotaExceeded

	result, err := o.Backup(ctx, items, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ItemsSaved)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, items[2].ID, result.Failures[0].ID)
}

func TestBackupUnreachableServiceSurfacesImmediately(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyRemote()
	o := newTestOrchestrator(t, remote, newMemLocal())

	items := makeItems(6)
	remote.failAlways[items[1].ID] = common.ErrUnavailable

	_, err := o.Backup(ctx, items, nil)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.NotErrorIs(t, err, common.ErrTooManyFailures)
}

// failingBlobStore rejects every upload, so items carrying photos cannot be
// transformed.
type failingBlobStore struct {
	inner blobstore.Store
}

func (failingBlobStore) Store(context.Context, []byte, string) (string, error) {
	return "", common.ErrBlobUnavailable
}

func (f failingBlobStore) Load(ctx context.Context, handle string) ([]byte, error) {
	return f.inner.Load(ctx, handle)
}

func (f failingBlobStore) CleanupTemporary(ctx context.Context) error {
	return f.inner.CleanupTemporary(ctx)
}

func TestBackupTransformFailureIsCountedNotFatal(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	o, err := New(Options{
		Remote:     remote,
		Local:      newMemLocal(),
		Blobs:      failingBlobStore{inner: blobstore.NewMemoryStore()},
		DeviceName: "test-device",
		BatchPause: time.Millisecond,
	})
	require.NoError(t, err)

	items := makeItems(10)
	items[4].Photo = []byte{0x01, 0x02}

	result, err := o.Backup(ctx, items, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, result.ItemsSaved)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, items[4].ID, result.Failures[0].ID)
}

func TestOperationsAreMutuallyExclusive(t *testing.T) {
	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())

	release := make(chan struct{})
	started := make(chan struct{})
	o.SetObserver(func(p Progress) {
		if p.Phase == PhaseWritingItems {
			select {
			case <-started:
			default:
				close(started)
				<-release
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := o.Backup(context.Background(), makeItems(2), nil)
		done <- err
	}()

	<-started
	_, err := o.Restore(context.Background())
	assert.ErrorIs(t, err, common.ErrOperationInProgress)
	_, err = o.Backup(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrOperationInProgress)

	close(release)
	require.NoError(t, <-done)

	// Released once the first run finishes; no backup exists to restore is
	// not the exclusion error anymore.
	_, err = o.Restore(context.Background())
	assert.NotErrorIs(t, err, common.ErrOperationInProgress)
}

func TestRestoreNoBackup(t *testing.T) {
	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())

	_, err := o.Restore(context.Background())
	assert.ErrorIs(t, err, common.ErrBackupNotFound)
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	cat := models.Category{ID: uuid.NewString(), Name: "Electronics", Icon: "tv", ModifiedAt: time.Now().UTC()}
	items := makeItems(4)
	for i := range items {
		items[i].CategoryID = cat.ID
		items[i].PurchasePrice = float64(100 * (i + 1))
	}

	_, err := o.Backup(ctx, items, []models.Category{cat})
	require.NoError(t, err)

	result, err := o.Restore(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, result.ItemsRestored)
	assert.Equal(t, 1, result.CategoriesRestored)
	assert.Zero(t, result.SkippedRecords)
	assert.Len(t, local.items, 4)
	assert.Len(t, local.categories, 1)

	got := local.items[items[0].ID]
	require.NotNil(t, got)
	assert.Equal(t, items[0].Name, got.Name)
	assert.Equal(t, cat.ID, got.CategoryID)
	assert.Equal(t, 100.0, got.PurchasePrice)
}

func TestRestoreCategoriesBeforeItems(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	// Items are written to the remote before categories so ordering on
	// restore cannot come from remote insertion order.
	items := makeItems(3)
	for i := range items {
		rec, err := record.NewTransformer(blobstore.NewMemoryStore()).ItemToRecord(ctx, &items[i])
		require.NoError(t, err)
		require.NoError(t, remote.SaveOne(ctx, rec))
	}
	cat := models.Category{ID: uuid.NewString(), Name: "Tools", ModifiedAt: time.Now().UTC()}
	catRec, err := record.NewTransformer(blobstore.NewMemoryStore()).CategoryToRecord(&cat)
	require.NoError(t, err)
	require.NoError(t, remote.SaveOne(ctx, catRec))
	require.NoError(t, remotestore.SaveMetadata(ctx, remote, models.BackupMetadata{
		Timestamp: time.Now().UTC(), ItemCount: 3, CategoryCount: 1,
		Status: models.BackupStatusCompleted,
	}))

	_, err = o.Restore(ctx)
	require.NoError(t, err)

	require.Len(t, local.insertOrder, 4)
	assert.Equal(t, "category:"+cat.ID, local.insertOrder[0])
	for _, entry := range local.insertOrder[1:] {
		assert.Contains(t, entry, "item:")
	}
}

func TestRestoreSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	_, err := o.Backup(ctx, makeItems(3), nil)
	require.NoError(t, err)

	// A record with no identifier does not decode back to an item.
	bad := record.New(record.TypeItem, "")
	require.NoError(t, remote.SaveOne(ctx, bad))

	result, err := o.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ItemsRestored)
	assert.Equal(t, 1, result.SkippedRecords)
}

func TestRestoreMergesDivergentLocalItem(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	id := uuid.NewString()
	remoteItem := models.Item{
		ID:            id,
		Name:          "Camera",
		PurchasePrice: 500,
		Tags:          []string{"photo"},
		ModifiedAt:    time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}
	_, err := o.Backup(ctx, []models.Item{remoteItem}, nil)
	require.NoError(t, err)

	// The local copy diverged: newer, but with a zero price and extra tags.
	require.NoError(t, local.InsertItem(ctx, &models.Item{
		ID:            id,
		Name:          "Camera",
		Notes:         "bought in Berlin",
		PurchasePrice: 0,
		Tags:          []string{"photo", "travel"},
		ModifiedAt:    time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}))
	local.insertOrder = nil

	result, err := o.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsRestored)

	got := local.items[id]
	require.NotNil(t, got)
	assert.Equal(t, "Camera", got.Name)
	assert.Equal(t, "bought in Berlin", got.Notes)
	assert.Equal(t, 500.0, got.PurchasePrice)
	assert.ElementsMatch(t, []string{"photo", "travel"}, got.Tags)
}

func TestRestoreIdenticalLocalCopyIsOverwrittenCleanly(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	item := makeItems(1)[0]
	_, err := o.Backup(ctx, []models.Item{item}, nil)
	require.NoError(t, err)
	require.NoError(t, local.InsertItem(ctx, &item))

	result, err := o.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsRestored)
	assert.Equal(t, item.Name, local.items[item.ID].Name)
}

func TestRestoreKeepsLocalPhotoWhenRemoteHasNone(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	item := makeItems(1)[0]
	_, err := o.Backup(ctx, []models.Item{item}, nil)
	require.NoError(t, err)

	withPhoto := item
	withPhoto.Photo = []byte{0xff, 0xd8, 0xff}
	require.NoError(t, local.InsertItem(ctx, &withPhoto))

	_, err = o.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, local.items[item.ID].Photo)
}

func TestRestoreItemWithMissingBlobLosesPhotoNotItem(t *testing.T) {
	ctx := context.Background()
	remote := remotestore.NewMemoryStore()
	local := newMemLocal()
	o := newTestOrchestrator(t, remote, local)

	item := makeItems(1)[0]
	rec, err := record.NewTransformer(blobstore.NewMemoryStore()).ItemToRecord(ctx, &item)
	require.NoError(t, err)
	// Reference a blob the orchestrator's store has never seen.
	rec.Set(record.FieldPhotoRef, record.BlobRef("mem/gone/photo.jpg"))
	require.NoError(t, remote.SaveOne(ctx, rec))
	require.NoError(t, remotestore.SaveMetadata(ctx, remote, models.BackupMetadata{
		Timestamp: time.Now().UTC(), ItemCount: 1,
		Status: models.BackupStatusCompleted,
	}))

	result, err := o.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsRestored)

	got := local.items[item.ID]
	require.NotNil(t, got)
	assert.Equal(t, item.Name, got.Name)
	assert.Nil(t, got.Photo)
}

func TestProgressPhaseSequence(t *testing.T) {
	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())

	var phases []Phase
	var fractions []float64
	o.SetObserver(func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		fractions = append(fractions, p.Fraction)
	})

	_, err := o.Backup(context.Background(), makeItems(5), nil)
	require.NoError(t, err)

	assert.Equal(t, []Phase{
		PhaseClearingPrevious,
		PhaseWritingCategories,
		PhaseWritingItems,
		PhaseWritingMetadata,
		PhaseCompleted,
	}, phases)

	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestBackupHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())
	_, err := o.Backup(ctx, makeItems(5), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

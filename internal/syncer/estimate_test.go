package syncer

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/alexkarev/homekeeper/internal/models"
	"github.com/alexkarev/homekeeper/internal/remotestore"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.n))
	}
}

func TestEstimateTransferSize(t *testing.T) {
	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())

	assert.Equal(t, "0 B", o.EstimateTransferSize(nil))

	item := models.Item{
		ID:         uuid.NewString(),
		Name:       "Camera",
		Photo:      bytes.Repeat([]byte{0xab}, 2*1024*1024),
		ModifiedAt: time.Now().UTC(),
	}
	got := o.EstimateTransferSize([]models.Item{item})

	// The photo dominates; the encoded record adds a few hundred bytes.
	assert.Equal(t, "2.0 MB", got)
}

func TestEstimateDoesNotTouchBlobStore(t *testing.T) {
	o := newTestOrchestrator(t, remotestore.NewMemoryStore(), newMemLocal())

	item := models.Item{
		ID:         uuid.NewString(),
		Name:       "Sofa",
		Photo:      []byte{1, 2, 3},
		ModifiedAt: time.Now().UTC(),
	}
	_ = o.EstimateTransferSize([]models.Item{item})
	assert.Zero(t, o.blobs.(interface{ Len() int }).Len())
}

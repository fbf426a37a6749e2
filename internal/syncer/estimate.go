package syncer

import (
	"context"
	"fmt"

	"github.com/alexkarev/homekeeper/internal/models"
)

// EstimateTransferSize returns a human-readable estimate of the upload
// volume for the given items: the encoded record for each plus its photo
// payload. Nothing touches the network or the blob store.
func (o *Orchestrator) EstimateTransferSize(items []models.Item) string {
	var total int64
	for i := range items {
		// Photos travel as separate blobs; strip them so the transform
		// does not stage an upload, and count the raw bytes instead.
		plain := items[i]
		plain.Photo = nil
		total += int64(len(items[i].Photo))

		rec, err := o.tr.ItemToRecord(context.Background(), &plain)
		if err != nil {
			continue
		}
		if b, err := rec.MarshalBinary(); err == nil {
			total += int64(len(b))
		}
	}
	return formatBytes(total)
}

// formatBytes renders n with 1024-based units, one decimal above bytes.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexkarev/homekeeper/internal/blobstore"
	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/models"
)

// Transformer maps local entities to remote records and back. It is pure
// field mapping except for binary payloads, which are pushed through the
// blob store so the record carries only a handle.
type Transformer struct {
	blobs blobstore.Store
}

func NewTransformer(blobs blobstore.Store) *Transformer {
	return &Transformer{blobs: blobs}
}

// ItemToRecord converts an item to its remote record. The mapping is total:
// an item with all optional fields unset still yields a valid record, with
// absent fields simply omitted.
func (t *Transformer) ItemToRecord(ctx context.Context, item *models.Item) (*Record, error) {
	if item.ID == "" {
		return nil, errors.New("item has no identifier")
	}

	r := New(TypeItem, item.ID)

	if item.Name != "" {
		r.Set(FieldName, String(item.Name))
	}
	if item.Notes != "" {
		r.Set(FieldNotes, String(item.Notes))
	}
	if item.SerialNumber != "" {
		r.Set(FieldSerial, String(item.SerialNumber))
	}
	if item.CategoryID != "" {
		r.Set(FieldCategoryID, String(item.CategoryID))
	}
	if item.PurchasePrice != 0 {
		r.Set(FieldPurchasePrice, Number(item.PurchasePrice))
	}
	if item.EstimatedValue != 0 {
		r.Set(FieldEstimatedValue, Number(item.EstimatedValue))
	}
	if item.Quantity != 0 {
		r.Set(FieldQuantity, Number(float64(item.Quantity)))
	}
	if !item.PurchaseDate.IsZero() {
		r.Set(FieldPurchaseDate, Date(item.PurchaseDate))
	}
	if !item.ModifiedAt.IsZero() {
		r.Set(FieldModifiedAt, Date(item.ModifiedAt))
	}
	if len(item.PhotoRefs) > 0 {
		r.Set(FieldPhotoRefs, StringList(item.PhotoRefs))
	}
	if len(item.DocumentRefs) > 0 {
		r.Set(FieldDocuments, StringList(item.DocumentRefs))
	}
	if len(item.Tags) > 0 {
		r.Set(FieldTags, StringList(item.Tags))
	}

	if len(item.Photo) > 0 {
		handle, err := t.blobs.Store(ctx, item.Photo, item.ID+".jpg")
		if err != nil {
			return nil, fmt.Errorf("storing photo for item %s: %w", item.ID, err)
		}
		r.Set(FieldPhotoRef, BlobRef(handle))
	}

	return r, nil
}

// ItemFromRecord converts a fetched record back to an item. Unknown fields
// in the record are ignored for forward compatibility. A missing identifier
// or wrong type discriminator yields ErrMalformedRecord; a photo handle
// that cannot be resolved yields ErrBlobUnavailable.
func (t *Transformer) ItemFromRecord(ctx context.Context, r *Record) (*models.Item, error) {
	if r == nil || r.Type != TypeItem || r.ID == "" {
		return nil, fmt.Errorf("%w: item record missing identifier or type", common.ErrMalformedRecord)
	}

	item := &models.Item{ID: r.ID}

	if v, ok := r.Get(FieldName); ok {
		item.Name = v.Str
	}
	if v, ok := r.Get(FieldNotes); ok {
		item.Notes = v.Str
	}
	if v, ok := r.Get(FieldSerial); ok {
		item.SerialNumber = v.Str
	}
	if v, ok := r.Get(FieldCategoryID); ok {
		item.CategoryID = v.Str
	}
	if v, ok := r.Get(FieldPurchasePrice); ok {
		item.PurchasePrice = v.Num
	}
	if v, ok := r.Get(FieldEstimatedValue); ok {
		item.EstimatedValue = v.Num
	}
	if v, ok := r.Get(FieldQuantity); ok {
		item.Quantity = int64(v.Num)
	}
	if v, ok := r.Get(FieldPurchaseDate); ok {
		item.PurchaseDate = v.Date
	}
	if v, ok := r.Get(FieldModifiedAt); ok {
		item.ModifiedAt = v.Date
	}
	if v, ok := r.Get(FieldPhotoRefs); ok {
		item.PhotoRefs = append([]string(nil), v.List...)
	}
	if v, ok := r.Get(FieldDocuments); ok {
		item.DocumentRefs = append([]string(nil), v.List...)
	}
	if v, ok := r.Get(FieldTags); ok {
		item.Tags = append([]string(nil), v.List...)
	}

	if v, ok := r.Get(FieldPhotoRef); ok && v.Str != "" {
		data, err := t.blobs.Load(ctx, v.Str)
		if err != nil {
			if errors.Is(err, common.ErrBlobUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", common.ErrBlobUnavailable, v.Str, err)
		}
		item.Photo = data
	}

	return item, nil
}

// CategoryToRecord converts a category to its remote record.
func (t *Transformer) CategoryToRecord(cat *models.Category) (*Record, error) {
	if cat.ID == "" {
		return nil, errors.New("category has no identifier")
	}

	r := New(TypeCategory, cat.ID)
	if cat.Name != "" {
		r.Set(FieldName, String(cat.Name))
	}
	if cat.Icon != "" {
		r.Set(FieldIcon, String(cat.Icon))
	}
	if !cat.ModifiedAt.IsZero() {
		r.Set(FieldModifiedAt, Date(cat.ModifiedAt))
	}
	return r, nil
}

// CategoryFromRecord converts a fetched record back to a category.
func (t *Transformer) CategoryFromRecord(r *Record) (*models.Category, error) {
	if r == nil || r.Type != TypeCategory || r.ID == "" {
		return nil, fmt.Errorf("%w: category record missing identifier or type", common.ErrMalformedRecord)
	}

	cat := &models.Category{ID: r.ID}
	if v, ok := r.Get(FieldName); ok {
		cat.Name = v.Str
	}
	if v, ok := r.Get(FieldIcon); ok {
		cat.Icon = v.Str
	}
	if v, ok := r.Get(FieldModifiedAt); ok {
		cat.ModifiedAt = v.Date
	}
	return cat, nil
}

// MetadataToRecord builds the singleton metadata record for a backup run.
func MetadataToRecord(md models.BackupMetadata) *Record {
	r := New(TypeMetadata, MetadataRecordID)
	r.Set(FieldTimestamp, Date(md.Timestamp))
	r.Set(FieldItemCount, Number(float64(md.ItemCount)))
	r.Set(FieldCategoryCount, Number(float64(md.CategoryCount)))
	r.Set(FieldDeviceName, String(md.DeviceName))
	r.Set(FieldAppVersion, String(md.AppVersion))
	r.Set(FieldStatus, String(string(md.Status)))
	return r
}

// MetadataFromRecord parses a metadata record.
func MetadataFromRecord(r *Record) (*models.BackupMetadata, error) {
	if r == nil || r.Type != TypeMetadata || r.ID == "" {
		return nil, fmt.Errorf("%w: metadata record missing identifier or type", common.ErrMalformedRecord)
	}

	md := &models.BackupMetadata{}
	if v, ok := r.Get(FieldTimestamp); ok {
		md.Timestamp = v.Date
	}
	if v, ok := r.Get(FieldItemCount); ok {
		md.ItemCount = int(v.Num)
	}
	if v, ok := r.Get(FieldCategoryCount); ok {
		md.CategoryCount = int(v.Num)
	}
	if v, ok := r.Get(FieldDeviceName); ok {
		md.DeviceName = v.Str
	}
	if v, ok := r.Get(FieldAppVersion); ok {
		md.AppVersion = v.Str
	}
	if v, ok := r.Get(FieldStatus); ok {
		md.Status = models.BackupStatus(v.Str)
	}
	return md, nil
}

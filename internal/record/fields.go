package record

// Field names shared by item and category records.
const (
	FieldName       = "name"
	FieldIcon       = "icon"
	FieldNotes      = "notes"
	FieldSerial     = "serial_number"
	FieldCategoryID = "category_id"
	FieldModifiedAt = "modified_at"

	FieldPurchasePrice  = "purchase_price"
	FieldEstimatedValue = "estimated_value"
	FieldQuantity       = "quantity"
	FieldPurchaseDate   = "purchase_date"

	FieldPhotoRef  = "photo_ref"
	FieldPhotoRefs = "photo_refs"
	FieldDocuments = "document_refs"
	FieldTags      = "tags"
)

// Field names of the metadata record.
const (
	FieldTimestamp     = "timestamp"
	FieldItemCount     = "item_count"
	FieldCategoryCount = "category_count"
	FieldDeviceName    = "device_name"
	FieldAppVersion    = "app_version"
	FieldStatus        = "status"
)

// MetadataRecordID is the fixed identifier of the singleton metadata record
// within a zone.
const MetadataRecordID = "backup-metadata"

// Package record defines the remote, schemaless representation of local
// entities and the bidirectional mapping between the two. A record is a bag
// of typed field values addressed by record type and a zone-scoped
// identifier; the identifier is stable across backup cycles so re-running a
// backup overwrites rather than duplicates.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record types understood by the sync engine.
const (
	TypeItem     = "item"
	TypeCategory = "category"
	TypeMetadata = "metadata"
)

// Kind discriminates the typed values a field can hold.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindDate       Kind = "date"
	KindBlobRef    Kind = "blobref"
	KindStringList Kind = "list"
)

// Value is a tagged union of the field types the remote store can express.
type Value struct {
	Kind Kind      `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Date time.Time `json:"date,omitzero"`
	List []string  `json:"list,omitempty"`
}

func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value    { return Value{Kind: KindNumber, Num: n} }
func Date(t time.Time) Value    { return Value{Kind: KindDate, Date: t.UTC()} }
func BlobRef(h string) Value    { return Value{Kind: KindBlobRef, Str: h} }
func StringList(l []string) Value {
	cp := make([]string, len(l))
	copy(cp, l)
	return Value{Kind: KindStringList, List: cp}
}

// Equal reports structural equality of two values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString, KindBlobRef:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindDate:
		return v.Date.Equal(o.Date)
	case KindStringList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Record is the remote representation of one local entity.
type Record struct {
	// Type discriminates the record kind ("item", "category", "metadata").
	Type string `json:"type"`

	// ID is the zone-scoped identifier, equal to the entity's local ID.
	ID string `json:"id"`

	Fields map[string]Value `json:"fields"`

	// ModificationDate is assigned by the store when the record is saved.
	ModificationDate time.Time `json:"modification_date"`
}

// New returns an empty record of the given type and identifier.
func New(recordType, id string) *Record {
	return &Record{Type: recordType, ID: id, Fields: make(map[string]Value)}
}

func (r *Record) Set(key string, v Value) { r.Fields[key] = v }

func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := New(r.Type, r.ID)
	cp.ModificationDate = r.ModificationDate
	for k, v := range r.Fields {
		if v.Kind == KindStringList {
			v = StringList(v.List)
		}
		cp.Fields[k] = v
	}
	return cp
}

// MarshalBinary / UnmarshalBinary allow records to be stored as opaque
// payloads (redis hash values, jsonb columns).
func (r *Record) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

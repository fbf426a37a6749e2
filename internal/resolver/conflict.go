package resolver

import (
	"sort"

	"github.com/alexkarev/homekeeper/internal/record"
)

// Conflict pairs a locally-held and a remotely-fetched version of the same
// record identity, plus the field names whose values differ. It exists only
// for the duration of resolution and is never persisted.
type Conflict struct {
	ClientRecord *record.Record
	ServerRecord *record.Record

	// ChangedFields lists differing field names, sorted, excluding the
	// modification timestamp (which differs whenever anything else does).
	ChangedFields []string
}

// Detect compares two versions of the same record structurally and returns
// nil when they do not diverge.
func Detect(clientRec, serverRec *record.Record) *Conflict {
	if clientRec == nil || serverRec == nil || clientRec.ID != serverRec.ID {
		return nil
	}

	changed := make(map[string]struct{})
	for key, cv := range clientRec.Fields {
		if key == record.FieldModifiedAt {
			continue
		}
		sv, ok := serverRec.Fields[key]
		if !ok || !cv.Equal(sv) {
			changed[key] = struct{}{}
		}
	}
	for key := range serverRec.Fields {
		if key == record.FieldModifiedAt {
			continue
		}
		if _, ok := clientRec.Fields[key]; !ok {
			changed[key] = struct{}{}
		}
	}

	if len(changed) == 0 {
		return nil
	}

	fields := make([]string, 0, len(changed))
	for key := range changed {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	return &Conflict{
		ClientRecord:  clientRec,
		ServerRecord:  serverRec,
		ChangedFields: fields,
	}
}

// Resolve merges the conflict per the field-rule table.
func (c *Conflict) Resolve() *record.Record {
	return Resolve(c.ClientRecord, c.ServerRecord)
}

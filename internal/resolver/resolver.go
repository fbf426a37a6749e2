// Package resolver merges two divergent versions of the same logical record
// without data loss beyond what the policy intentionally discards. It is
// pure: no I/O, no hidden state, deterministic for the same two inputs.
package resolver

import (
	"fmt"
	"math"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/record"
)

// Strategy selects the field-level merge rule applied when a field is
// present in both records.
type Strategy int

const (
	// StrategyDefault keeps the value from the record with the later
	// modification timestamp.
	StrategyDefault Strategy = iota

	// StrategyPreferNonEmpty keeps a non-empty value over an empty one;
	// when both are non-empty the newer record wins. Used for identity and
	// display fields.
	StrategyPreferNonEmpty

	// StrategyPreferLarger keeps the larger magnitude. Monetary amounts
	// trend upward (replacement-cost re-estimation, appreciation), so the
	// larger number is less likely to be stale. Zero is treated as unset
	// and loses to any non-zero value.
	StrategyPreferLarger

	// StrategyUnion merges collections with de-duplication by value,
	// base entries first, then novel entries from the other record.
	StrategyUnion

	// StrategyPreferLonger keeps the longer non-empty string. A proxy for
	// "more complete" on free-text fields.
	StrategyPreferLonger

	// StrategyPreferEarlierDate keeps the earlier date. Later edits to a
	// purchase date are assumed corrections toward ground truth.
	StrategyPreferEarlierDate

	// StrategyPreferLaterDate keeps the later date.
	StrategyPreferLaterDate
)

// fieldStrategies is the merge-policy table keyed by field name. Extending
// the policy is one entry here plus a unit test per rule.
var fieldStrategies = map[string]Strategy{
	record.FieldName: StrategyPreferNonEmpty,

	record.FieldPurchasePrice:  StrategyPreferLarger,
	record.FieldEstimatedValue: StrategyPreferLarger,
	record.FieldQuantity:       StrategyPreferLarger,

	record.FieldPhotoRefs: StrategyUnion,
	record.FieldDocuments: StrategyUnion,
	record.FieldTags:      StrategyUnion,

	record.FieldNotes: StrategyPreferLonger,

	record.FieldPurchaseDate: StrategyPreferEarlierDate,
	record.FieldModifiedAt:   StrategyPreferLaterDate,
}

// strategyFor returns the merge rule for a field name.
func strategyFor(field string) Strategy {
	if s, ok := fieldStrategies[field]; ok {
		return s
	}
	return StrategyDefault
}

// Resolve merges two versions of the same logical record. The record with
// the later modification date becomes the base; ties or missing dates
// prefer the server copy. The other record supplies candidate overrides
// per the field-rule table.
//
// Resolve(a, b) is deterministic but not symmetric: base selection is
// timestamp-driven. Field-level outcomes for the larger/union/longer rules
// do not depend on argument order.
func Resolve(clientRec, serverRec *record.Record) *record.Record {
	base, other := serverRec, clientRec
	if clientRec.ModificationDate.After(serverRec.ModificationDate) {
		base, other = clientRec, serverRec
	}

	merged := base.Clone()
	if other.ModificationDate.After(merged.ModificationDate) {
		merged.ModificationDate = other.ModificationDate
	}

	for key, otherVal := range other.Fields {
		baseVal, inBase := base.Fields[key]
		if !inBase {
			merged.Fields[key] = otherVal
			continue
		}
		merged.Fields[key] = mergeField(key, baseVal, otherVal)
	}

	return merged
}

// mergeField applies the field's rule. The base value wins all ties.
func mergeField(key string, base, other record.Value) record.Value {
	switch strategyFor(key) {
	case StrategyPreferNonEmpty:
		if base.Str == "" && other.Str != "" {
			return other
		}
		return base

	case StrategyPreferLarger:
		if math.Abs(other.Num) > math.Abs(base.Num) {
			return other
		}
		return base

	case StrategyUnion:
		v, err := unionLists(base, other)
		if err != nil {
			// Schema drift: fall back to the default rule instead of
			// aborting the merge.
			return base
		}
		return v

	case StrategyPreferLonger:
		if len(other.Str) > len(base.Str) {
			return other
		}
		return base

	case StrategyPreferEarlierDate:
		if base.Date.IsZero() {
			return other
		}
		if !other.Date.IsZero() && other.Date.Before(base.Date) {
			return other
		}
		return base

	case StrategyPreferLaterDate:
		if other.Date.After(base.Date) {
			return other
		}
		return base

	default:
		return base
	}
}

// unionLists produces base-first union with de-duplication by value.
func unionLists(base, other record.Value) (record.Value, error) {
	if base.Kind != record.KindStringList || other.Kind != record.KindStringList {
		return record.Value{}, fmt.Errorf("%w: union over %s and %s",
			common.ErrIncompatibleTypes, base.Kind, other.Kind)
	}

	seen := make(map[string]struct{}, len(base.List)+len(other.List))
	out := make([]string, 0, len(base.List)+len(other.List))
	for _, lst := range [][]string{base.List, other.List} {
		for _, v := range lst {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return record.StringList(out), nil
}

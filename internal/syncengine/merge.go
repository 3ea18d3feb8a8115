package syncengine

import (
	"reflect"
	"strings"

	"github.com/adrata/record-sync/internal/model"
)

// MergeOptions controls which incoming values may overwrite local state.
type MergeOptions struct {
	// Pending reports fields with writes in flight; their local values are
	// never overwritten.
	Pending func(field string) bool
	// Recent reports fields inside the recency window; their local values
	// win over incoming ones, even non-nil ones.
	Recent func(field string) bool
	// ClearedField names the field the active edit deliberately set to
	// nil. Only for this field may an incoming nil erase a local value.
	ClearedField string
}

func (o MergeOptions) pending(f string) bool { return o.Pending != nil && o.Pending(f) }
func (o MergeOptions) recent(f string) bool  { return o.Recent != nil && o.Recent(f) }

// guarded reports whether a field's local value must be kept. Aliased
// fields are one logical field: a guard on either name covers both,
// otherwise a stale payload could slip in under the alias and the compound
// write-back would overwrite the guarded counterpart.
func (o MergeOptions) guarded(f string) bool {
	if o.pending(f) || o.recent(f) {
		return true
	}
	if alias := fieldAlias(f); alias != "" {
		return o.pending(alias) || o.recent(alias)
	}
	return false
}

// fieldAlias returns the counterpart name of an aliased field pair.
func fieldAlias(key string) string {
	switch key {
	case "status":
		return "stage"
	case "stage":
		return "status"
	default:
		return ""
	}
}

// Merge folds an incoming sparse record payload into the previous local
// state, field by field. It never mutates its inputs and returns a new
// record. Merging a record with itself under empty options yields an equal
// record.
//
// Rules, per key present in incoming:
//   - the cleared field adopts the incoming value unconditionally,
//     including nil (deliberate field clear);
//   - nil incoming values never erase populated local values;
//   - pending and recency-guarded fields keep their local values, and a
//     guard on either name of an aliased pair covers both names;
//   - otherwise a differing non-nil incoming value is adopted.
//
// Compound fields are kept coherent in the same pass: a status change
// updates the stage alias, and a fullName/name change refreshes the derived
// firstName/lastName decomposition.
func Merge(prev, incoming model.Record, opts MergeOptions) model.Record {
	merged := prev.Clone()
	if merged == nil {
		merged = model.Record{}
	}

	var changed []string
	for key, value := range incoming {
		if key == opts.ClearedField {
			if !reflect.DeepEqual(merged[key], value) {
				merged[key] = value
				changed = append(changed, key)
			}
			continue
		}
		if value == nil {
			continue
		}
		if opts.guarded(key) {
			continue
		}
		if reflect.DeepEqual(merged[key], value) {
			continue
		}
		merged[key] = value
		changed = append(changed, key)
	}

	for _, key := range changed {
		applyCompound(merged, key, opts)
	}
	return merged
}

// applyCompound propagates a changed field into its aliased and derived
// attributes. Derived targets that are themselves guarded keep their local
// values; a guard on firstName must hold even when the change arrives
// through fullName.
func applyCompound(rec model.Record, key string, opts MergeOptions) {
	switch key {
	case "status":
		rec["stage"] = rec["status"]
	case "stage":
		rec["status"] = rec["stage"]
	case "fullName", "name":
		if rec.Type() == model.TypeCompany {
			return
		}
		name, _ := rec[key].(string)
		if name == "" {
			return
		}
		first, last := splitName(name)
		if !opts.guarded("firstName") {
			rec["firstName"] = first
		}
		if !opts.guarded("lastName") {
			rec["lastName"] = last
		}
		if key == "name" && !opts.guarded("fullName") {
			rec["fullName"] = name
		}
	}
}

// splitName decomposes a display name into first and last components. The
// last whitespace-separated token is the last name; everything before it is
// the first name.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

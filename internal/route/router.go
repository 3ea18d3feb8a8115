// Package route decides which backing entity owns an edited field and
// produces the wire-level target for the write.
package route

import (
	"github.com/rotisserie/eris"

	"github.com/adrata/record-sync/internal/model"
)

// ErrUnroutableField is returned when neither the record shape nor the
// field partition can resolve an owning entity. Callers must surface this
// rather than defaulting: it indicates a field/entity mapping gap, not a
// transient fault.
var ErrUnroutableField = eris.New("route: unroutable field")

// Target addresses one field write against the remote entity store.
type Target struct {
	Kind     model.EntityKind
	EntityID string
	// APIField is the wire field name after entity-kind-dependent
	// normalization (e.g. "name" becomes "fullName" for persons).
	APIField string
}

// Router resolves fields against a static schema and the active record.
type Router struct {
	schema *model.Schema
}

// New creates a Router over the given field schema.
func New(schema *model.Schema) *Router {
	return &Router{schema: schema}
}

// Route resolves the entity kind, target entity id and wire field name for
// a field edit on the given record.
//
// Resolution order:
//  1. a universal record type is narrowed by which discriminator
//     attributes are populated;
//  2. fields in the ambiguous set (independent values on both person and
//     company) follow the active record type, not the partition;
//  3. otherwise the static partition decides, with personal fields
//     redirected to an attached person id when the record is a composite
//     view over a distinct person entity.
func (r *Router) Route(field string, rec model.Record) (Target, error) {
	recType := rec.Type()

	activeKind, tagged := model.KindForType(recType)
	if !tagged {
		inferred, ok := rec.InferKind()
		if !ok {
			// Without discriminators the partition is the last resort.
			if _, known := r.schema.ClassOf(field); !known {
				return Target{}, eris.Wrapf(ErrUnroutableField, "field %q on record %s", field, rec.ID())
			}
		}
		activeKind = inferred
	}

	if r.schema.IsAmbiguous(field) {
		if activeKind == "" {
			return Target{}, eris.Wrapf(ErrUnroutableField, "ambiguous field %q on unresolved record %s", field, rec.ID())
		}
		return r.target(activeKind, rec, field, false)
	}

	class, known := r.schema.ClassOf(field)
	if !known {
		// Unknown fields ride on the active entity when one is resolved.
		if activeKind == "" {
			return Target{}, eris.Wrapf(ErrUnroutableField, "field %q on record %s", field, rec.ID())
		}
		return r.target(activeKind, rec, field, false)
	}

	switch class {
	case model.ClassPersonal:
		return r.target(model.EntityPerson, rec, field, true)
	case model.ClassCompany:
		if id := rec.CompanyID(); id != "" {
			return Target{Kind: model.EntityCompany, EntityID: id, APIField: r.schema.APIName(model.EntityCompany, field)}, nil
		}
		if activeKind == model.EntityCompany {
			return r.target(model.EntityCompany, rec, field, false)
		}
		return Target{}, eris.Wrapf(ErrUnroutableField, "company field %q without companyId on record %s", field, rec.ID())
	default:
		if activeKind == "" {
			return Target{}, eris.Wrapf(ErrUnroutableField, "record field %q on unresolved record %s", field, rec.ID())
		}
		return r.target(activeKind, rec, field, false)
	}
}

// target builds the final Target. When redirect is set and the record
// carries a distinct person id, personal fields are written against that
// person entity instead of the record's own id (composite lead views).
func (r *Router) target(kind model.EntityKind, rec model.Record, field string, redirect bool) (Target, error) {
	id := rec.ID()
	if redirect && kind == model.EntityPerson {
		if pid := rec.PersonID(); pid != "" {
			id = pid
		}
	}
	if id == "" {
		return Target{}, eris.Wrapf(ErrUnroutableField, "field %q on record without id", field)
	}
	return Target{Kind: kind, EntityID: id, APIField: r.schema.APIName(kind, field)}, nil
}

// Package model defines the composite record view-model and the field
// schema that binds display fields to their backing entities.
package model

import "strings"

// EntityKind identifies the backing entity that owns a field.
type EntityKind string

const (
	EntityPerson  EntityKind = "person"
	EntityCompany EntityKind = "company"
	EntityAction  EntityKind = "action"
)

// RecordType tags the currently-active shape of a record view. A lead,
// prospect or opportunity view is a thin wrapper over a person entity;
// "universal" means the shape must be inferred from populated attributes.
type RecordType string

const (
	TypePerson      RecordType = "person"
	TypeCompany     RecordType = "company"
	TypeLead        RecordType = "lead"
	TypeProspect    RecordType = "prospect"
	TypeOpportunity RecordType = "opportunity"
	TypeClient      RecordType = "client"
	TypeAction      RecordType = "action"
	TypeUniversal   RecordType = "universal"
)

// Record is the composite view-model displayed in one UI panel. It is the
// union of fields sourced from a person entity, a company entity and any
// record-specific attributes. Payloads arriving from the server may be
// sparse; absent keys carry no meaning.
type Record map[string]any

// ID returns the record's own id.
func (r Record) ID() string { return r.String("id") }

// Type returns the record's active type tag, or TypeUniversal when untagged.
func (r Record) Type() RecordType {
	if t := r.String("recordType"); t != "" {
		return RecordType(strings.ToLower(t))
	}
	return TypeUniversal
}

// WorkspaceID returns the owning workspace id.
func (r Record) WorkspaceID() string { return r.String("workspaceId") }

// CompanyID returns the linked company entity id, if any.
func (r Record) CompanyID() string { return r.String("companyId") }

// PersonID returns the distinct person entity id attached to a composite
// view, if any. Empty when the record's own id addresses the person.
func (r Record) PersonID() string { return r.String("personId") }

// String returns the value for key as a string, or "" when the key is
// absent, nil, or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DisplayName returns the best human-readable name for the record:
// fullName, then name, then firstName+lastName.
func (r Record) DisplayName() string {
	if s := r.String("fullName"); s != "" {
		return s
	}
	if s := r.String("name"); s != "" {
		return s
	}
	first, last := r.String("firstName"), r.String("lastName")
	return strings.TrimSpace(first + " " + last)
}

// personDiscriminators and companyDiscriminators are attributes that exist
// on exactly one entity kind, used to infer the true kind of a universal
// record shape.
var personDiscriminators = []string{"firstName", "lastName", "jobTitle", "seniority", "department"}

var companyDiscriminators = []string{"industry", "employeeCount", "legalName", "tradingName", "website"}

// InferKind infers the backing entity kind from a universal record's
// populated attributes. Returns false when neither person nor company
// discriminators are present.
func (r Record) InferKind() (EntityKind, bool) {
	for _, f := range personDiscriminators {
		if r.Has(f) {
			return EntityPerson, true
		}
	}
	for _, f := range companyDiscriminators {
		if r.Has(f) {
			return EntityCompany, true
		}
	}
	return "", false
}

// KindForType maps a record type tag to the entity kind it addresses.
// Lead/prospect/opportunity/client views address a person entity.
func KindForType(t RecordType) (EntityKind, bool) {
	switch t {
	case TypePerson, TypeLead, TypeProspect, TypeOpportunity, TypeClient:
		return EntityPerson, true
	case TypeCompany:
		return EntityCompany, true
	case TypeAction:
		return EntityAction, true
	default:
		return "", false
	}
}

package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldClass partitions known field names by owning entity.
type FieldClass string

const (
	// ClassPersonal fields are bound to the person entity.
	ClassPersonal FieldClass = "personal"
	// ClassCompany fields are bound to the company entity when the record
	// carries a companyId link.
	ClassCompany FieldClass = "company"
	// ClassRecord fields are bound to whatever entity is currently active.
	ClassRecord FieldClass = "record"
)

// Schema is the static field-to-entity partition plus the per-kind API
// field-name normalization map. Every known field belongs to exactly one
// partition; fields that exist on both person and company with independent
// values (the ambiguous set) are resolved by the active record type at
// routing time, not by the partition.
type Schema struct {
	personal  map[string]struct{}
	company   map[string]struct{}
	record    map[string]struct{}
	ambiguous map[string]struct{}
	apiNames  map[EntityKind]map[string]string
}

// schemaFile is the YAML representation of a field schema override.
type schemaFile struct {
	Personal  []string                     `yaml:"personal"`
	Company   []string                     `yaml:"company"`
	Record    []string                     `yaml:"record"`
	Ambiguous []string                     `yaml:"ambiguous"`
	APINames  map[string]map[string]string `yaml:"api_names"`
}

func newSchema(f schemaFile) *Schema {
	s := &Schema{
		personal:  toSet(f.Personal),
		company:   toSet(f.Company),
		record:    toSet(f.Record),
		ambiguous: toSet(f.Ambiguous),
		apiNames:  make(map[EntityKind]map[string]string, len(f.APINames)),
	}
	for kind, names := range f.APINames {
		m := make(map[string]string, len(names))
		for k, v := range names {
			m[k] = v
		}
		s.apiNames[EntityKind(kind)] = m
	}
	return s
}

func toSet(keys []string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// DefaultSchema returns the compiled-in field partition for the CRM domain.
func DefaultSchema() *Schema {
	return newSchema(schemaFile{
		Personal: []string{
			"firstName", "lastName", "fullName", "email", "phone",
			"jobTitle", "title", "department", "seniority", "linkedinUrl",
			"linkedinNavigatorUrl", "timezone",
		},
		Company: []string{
			"industry", "website", "legalName", "tradingName", "size",
			"revenue", "employeeCount", "address", "city", "state",
			"country", "postalCode",
		},
		Record: []string{
			"name", "status", "stage", "priority", "notes", "description",
			"statusReason", "tags",
		},
		Ambiguous: []string{
			"linkedinNavigatorUrl",
		},
		APINames: map[string]map[string]string{
			string(EntityPerson): {
				"name":  "fullName",
				"title": "jobTitle",
			},
			string(EntityCompany): {
				"fullName": "name",
			},
		},
	})
}

// LoadSchema reads a field schema from a YAML file. The file fully replaces
// the default partition; field lists are domain configuration.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read schema %s", path)
	}
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "model: parse schema")
	}
	if len(f.Personal) == 0 && len(f.Company) == 0 && len(f.Record) == 0 {
		return nil, eris.Errorf("model: schema %s defines no fields", path)
	}
	return newSchema(f), nil
}

// ClassOf returns the partition a field belongs to. The second return is
// false for unknown fields.
func (s *Schema) ClassOf(field string) (FieldClass, bool) {
	if _, ok := s.personal[field]; ok {
		return ClassPersonal, true
	}
	if _, ok := s.company[field]; ok {
		return ClassCompany, true
	}
	if _, ok := s.record[field]; ok {
		return ClassRecord, true
	}
	return "", false
}

// IsAmbiguous reports whether the field exists on both person and company
// entities with independent values.
func (s *Schema) IsAmbiguous(field string) bool {
	_, ok := s.ambiguous[field]
	return ok
}

// APIName maps a display field name to the wire field name for the given
// entity kind. Fields without an entry pass through unchanged.
func (s *Schema) APIName(kind EntityKind, field string) string {
	if names, ok := s.apiNames[kind]; ok {
		if mapped, ok := names[field]; ok {
			return mapped
		}
	}
	return field
}

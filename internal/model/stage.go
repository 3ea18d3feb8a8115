package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Stage is a record's lifecycle stage. Transitions are user-driven and not
// monotonic; each stage maps to exactly one owning collection.
type Stage string

const (
	StageLead        Stage = "LEAD"
	StageProspect    Stage = "PROSPECT"
	StageOpportunity Stage = "OPPORTUNITY"
	StageClient      Stage = "CLIENT"
)

// Collection is a logical grouping of records by lifecycle stage, used for
// list views, count badges and navigation targets.
type Collection string

const (
	CollectionLeads         Collection = "leads"
	CollectionProspects     Collection = "prospects"
	CollectionOpportunities Collection = "opportunities"
	CollectionClients       Collection = "clients"
	CollectionPeople        Collection = "people"
	CollectionCompanies     Collection = "companies"
)

// ParseStage normalizes a raw stage value. Empty input defaults to LEAD,
// matching the default applied on person creation.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case "":
		return StageLead, nil
	case StageLead, StageProspect, StageOpportunity, StageClient:
		return s, nil
	default:
		return "", eris.Errorf("model: unknown stage %q", raw)
	}
}

// Collection returns the single collection that owns records in this stage.
func (s Stage) Collection() Collection {
	switch s {
	case StageProspect:
		return CollectionProspects
	case StageOpportunity:
		return CollectionOpportunities
	case StageClient:
		return CollectionClients
	default:
		return CollectionLeads
	}
}

// CollectionAliases returns every collection a person record may be cached
// under, regardless of its current stage. Invalidation must cover all of
// them because stage changes move records between collections without
// rewriting old cache entries.
func CollectionAliases(kind EntityKind) []Collection {
	if kind == EntityCompany {
		return []Collection{CollectionCompanies}
	}
	return []Collection{
		CollectionPeople,
		CollectionLeads,
		CollectionProspects,
		CollectionOpportunities,
		CollectionClients,
	}
}

// IsStageField reports whether a field edit targets the lifecycle stage.
// The UI exposes the stage under both "status" and its "stage" alias.
func IsStageField(field string) bool {
	return field == "status" || field == "stage"
}

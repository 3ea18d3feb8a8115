package entityapi

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// sObjectForKind maps entity kinds onto their Salesforce SObjects.
var sObjectForKind = map[string]string{
	"person":  "Contact",
	"company": "Account",
	"action":  "Task",
}

// SalesforceUpdater is an Updater backed by the Salesforce REST API, for
// deployments where the CRM's source of truth is Salesforce rather than
// the in-house entity service.
//
// NOTE: go-salesforce/v3 does not accept context.Context; ctx is only used
// for the rate limiter wait.
type SalesforceUpdater struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
	// fieldNames optionally maps wire field names to Salesforce field
	// names per SObject.
	fieldNames map[string]map[string]string
}

// SalesforceOption configures the SalesforceUpdater.
type SalesforceOption func(*SalesforceUpdater)

// WithSalesforceRateLimit sets a per-second rate limit for SF calls.
func WithSalesforceRateLimit(rps float64) SalesforceOption {
	return func(u *SalesforceUpdater) {
		if rps > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithSalesforceFieldNames installs a per-SObject wire-to-SF field name
// map (e.g. fullName -> Name on Contact).
func WithSalesforceFieldNames(names map[string]map[string]string) SalesforceOption {
	return func(u *SalesforceUpdater) { u.fieldNames = names }
}

// NewSalesforceUpdater wraps an authenticated go-salesforce instance.
func NewSalesforceUpdater(sf *salesforce.Salesforce, opts ...SalesforceOption) *SalesforceUpdater {
	u := &SalesforceUpdater{sf: sf}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *SalesforceUpdater) wait(ctx context.Context) error {
	if u.limiter == nil {
		return nil
	}
	return eris.Wrap(u.limiter.Wait(ctx), "sf: rate limit wait")
}

// UpdateFields updates one Salesforce record. Salesforce returns no body
// on success, so the echo is the sent fields plus the id; merge semantics
// treat that identically to a confirming server echo.
func (u *SalesforceUpdater) UpdateFields(ctx context.Context, kind, id string, fields map[string]any) (map[string]any, error) {
	sObject, ok := sObjectForKind[kind]
	if !ok {
		return nil, eris.Errorf("sf: no sobject for entity kind %q", kind)
	}
	if err := u.wait(ctx); err != nil {
		return nil, err
	}

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[u.sfFieldName(sObject, k)] = v
	}
	payload["Id"] = id

	if err := u.sf.UpdateOne(sObject, payload); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: update %s %s", sObject, id))
	}

	echo := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		echo[k] = v
	}
	echo["id"] = id
	return echo, nil
}

func (u *SalesforceUpdater) sfFieldName(sObject, field string) string {
	if names, ok := u.fieldNames[sObject]; ok {
		if mapped, ok := names[field]; ok {
			return mapped
		}
	}
	return field
}

package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// Record is a stored org policy document.
type Record struct {
	ID            string
	OrgID         generic.OrgID
	EffectiveFrom generic.TimePoint
	ConfigJSON    string
	CreatedAt     time.Time
}

// Store persists org policy documents.
type Store interface {
	SavePolicy(ctx context.Context, rec Record) error

	// ListPolicies returns an org's documents, most recent effective date first.
	ListPolicies(ctx context.Context, orgID generic.OrgID) ([]Record, error)

	// EffectivePolicy returns the document in force on asOf, or ErrPolicyNotFound.
	EffectivePolicy(ctx context.Context, orgID generic.OrgID, asOf generic.TimePoint) (Record, error)
}

// Resolver loads the effective OrgPolicy for an org from a Store.
type Resolver struct {
	store     Store
	factory   *PolicyFactory
	locations attendance.LocationDirectory
}

// NewResolver creates a resolver. locations is only needed by SettingsFor.
func NewResolver(store Store, factory *PolicyFactory, locations attendance.LocationDirectory) *Resolver {
	return &Resolver{store: store, factory: factory, locations: locations}
}

// Factory returns the factory used to parse documents.
func (r *Resolver) Factory() *PolicyFactory {
	return r.factory
}

// Save validates jsonStr and stores it.
func (r *Resolver) Save(ctx context.Context, jsonStr string) (*OrgPolicy, error) {
	policy, err := r.factory.ParsePolicy(jsonStr)
	if err != nil {
		return nil, err
	}
	canonical, err := json.Marshal(policy.JSON())
	if err != nil {
		return nil, err
	}
	rec := Record{
		ID:            policy.ID,
		OrgID:         policy.OrgID,
		EffectiveFrom: policy.EffectiveFrom,
		ConfigJSON:    string(canonical),
	}
	if err := r.store.SavePolicy(ctx, rec); err != nil {
		return nil, fmt.Errorf("save policy %s: %w", policy.ID, err)
	}
	return policy, nil
}

// List returns an org's parsed documents, most recent effective date first.
func (r *Resolver) List(ctx context.Context, orgID generic.OrgID) ([]*OrgPolicy, error) {
	recs, err := r.store.ListPolicies(ctx, orgID)
	if err != nil {
		return nil, err
	}
	policies := make([]*OrgPolicy, 0, len(recs))
	for _, rec := range recs {
		p, err := r.factory.ParsePolicy(rec.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("stored policy %s: %w", rec.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// ForOrg returns the policy in force for orgID on asOf. An org without any
// document gets the factory default.
func (r *Resolver) ForOrg(ctx context.Context, orgID generic.OrgID, asOf generic.TimePoint) (*OrgPolicy, error) {
	rec, err := r.store.EffectivePolicy(ctx, orgID, asOf)
	if errors.Is(err, generic.ErrPolicyNotFound) {
		return r.factory.Default(orgID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load policy for %s: %w", orgID, err)
	}
	policy, err := r.factory.ParsePolicy(rec.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("stored policy %s: %w", rec.ID, err)
	}
	return policy, nil
}

// ForLocation resolves the org that owns locationID and returns its policy.
func (r *Resolver) ForLocation(ctx context.Context, locationID generic.LocationID, asOf generic.TimePoint) (*OrgPolicy, error) {
	loc, err := r.locations.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return r.ForOrg(ctx, loc.OrgID, asOf)
}

// SettingsFor implements attendance.SettingsResolver.
func (r *Resolver) SettingsFor(ctx context.Context, key attendance.DayKey) (attendance.Settings, error) {
	policy, err := r.ForLocation(ctx, key.LocationID, key.Date)
	if err != nil {
		return attendance.Settings{}, err
	}
	return policy.Settings(), nil
}

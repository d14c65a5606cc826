// Package userprofile persists sticky bucketing decisions.
//
// The decision engine exchanges profiles with a Service as plain maps of the
// shape
//
//	{"user_id": "...", "experiment_bucket_map": {"<experiment id>": {"variation_id": "..."}}}
//
// so host applications can plug in any storage. Maps coming back from a
// Service are validated before use; a malformed map is treated as absent.
package userprofile

import (
	"context"
	"errors"
	"fmt"
)

// Map keys of the profile shape.
const (
	KeyUserID              = "user_id"
	KeyExperimentBucketMap = "experiment_bucket_map"
	KeyVariationID         = "variation_id"
)

var ErrMalformedProfile = errors.New("malformed user profile")

// Service loads and stores profiles. Implementations must be safe for
// concurrent use. Lookup returns a nil map and nil error when the user has no
// profile.
type Service interface {
	Lookup(ctx context.Context, userID string) (map[string]any, error)
	Save(ctx context.Context, profile map[string]any) error
}

// Decision is a stored assignment.
type Decision struct {
	VariationID string
}

// Profile is the validated form of a profile map.
type Profile struct {
	UserID              string
	ExperimentBucketMap map[string]Decision
}

// New returns an empty profile for userID.
func New(userID string) *Profile {
	return &Profile{UserID: userID, ExperimentBucketMap: make(map[string]Decision)}
}

// VariationFor returns the stored variation id for the experiment.
func (p *Profile) VariationFor(experimentID string) (string, bool) {
	d, ok := p.ExperimentBucketMap[experimentID]
	if !ok || d.VariationID == "" {
		return "", false
	}
	return d.VariationID, true
}

// SaveDecision records variationID for the experiment, replacing any previous
// decision.
func (p *Profile) SaveDecision(experimentID, variationID string) {
	if p.ExperimentBucketMap == nil {
		p.ExperimentBucketMap = make(map[string]Decision)
	}
	p.ExperimentBucketMap[experimentID] = Decision{VariationID: variationID}
}

// ToMap renders the profile in the shape a Service stores.
func (p *Profile) ToMap() map[string]any {
	buckets := make(map[string]any, len(p.ExperimentBucketMap))
	for expID, d := range p.ExperimentBucketMap {
		buckets[expID] = map[string]any{KeyVariationID: d.VariationID}
	}
	return map[string]any{
		KeyUserID:              p.UserID,
		KeyExperimentBucketMap: buckets,
	}
}

// FromMap validates m and converts it into a Profile.
func FromMap(m map[string]any) (*Profile, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil map", ErrMalformedProfile)
	}
	userID, ok := m[KeyUserID].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a string", ErrMalformedProfile, KeyUserID)
	}

	p := New(userID)
	switch buckets := m[KeyExperimentBucketMap].(type) {
	case map[string]any:
		for expID, raw := range buckets {
			entry, ok := raw.(map[string]any)
			if !ok {
				if typed, isTyped := raw.(map[string]string); isTyped {
					entry = map[string]any{KeyVariationID: typed[KeyVariationID]}
				} else {
					return nil, fmt.Errorf("%w: decision for experiment %q is not an object", ErrMalformedProfile, expID)
				}
			}
			variationID, ok := entry[KeyVariationID].(string)
			if !ok {
				return nil, fmt.Errorf("%w: decision for experiment %q has no %q", ErrMalformedProfile, expID, KeyVariationID)
			}
			p.ExperimentBucketMap[expID] = Decision{VariationID: variationID}
		}
	case map[string]map[string]string:
		for expID, entry := range buckets {
			variationID, ok := entry[KeyVariationID]
			if !ok {
				return nil, fmt.Errorf("%w: decision for experiment %q has no %q", ErrMalformedProfile, expID, KeyVariationID)
			}
			p.ExperimentBucketMap[expID] = Decision{VariationID: variationID}
		}
	default:
		return nil, fmt.Errorf("%w: %q must be an object", ErrMalformedProfile, KeyExperimentBucketMap)
	}
	return p, nil
}

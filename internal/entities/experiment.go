// Package entities holds the read-only project model the decision engine
// works over. Values are built once when a datafile is parsed and are never
// mutated per request.
package entities

import "github.com/TimurManjosov/goexperiment/internal/condition"

// ExperimentStatus is the lifecycle state declared in the datafile.
type ExperimentStatus string

const (
	StatusRunning    ExperimentStatus = "Running"
	StatusLaunched   ExperimentStatus = "Launched"
	StatusPaused     ExperimentStatus = "Paused"
	StatusNotStarted ExperimentStatus = "Not started"
	StatusArchived   ExperimentStatus = "Archived"
)

// ExperimentCore is the shape shared by experiments, rollout rules and
// holdouts: everything the bucketer and the audience evaluator need.
type ExperimentCore struct {
	ID                string
	Key               string
	Status            ExperimentStatus
	LayerID           string
	Variations        []Variation
	TrafficAllocation []TrafficAllocation
	// AudienceIDs is the flat targeting list, combined with OR. It is only
	// consulted when AudienceConditions is nil.
	AudienceIDs        []string
	AudienceConditions *condition.Node
	// GroupID is empty when the experiment is not part of a group.
	GroupID string

	variationsByID  map[string]*Variation
	variationsByKey map[string]*Variation
}

// Experiment is an A/B test or a feature test.
type Experiment struct {
	ExperimentCore
	// Whitelist maps user id to a variation key forced by the datafile.
	Whitelist map[string]string
}

// Holdout withholds a slice of traffic from the flags it covers. A holdout
// with no IncludedFlags is global and covers every flag not excluded.
type Holdout struct {
	ExperimentCore
	IncludedFlags []string
	ExcludedFlags []string
}

// NewExperiment returns an experiment with its variation indexes built.
func NewExperiment(core ExperimentCore, whitelist map[string]string) *Experiment {
	core.index()
	return &Experiment{ExperimentCore: core, Whitelist: whitelist}
}

// NewHoldout returns a holdout with its variation indexes built.
func NewHoldout(core ExperimentCore, included, excluded []string) *Holdout {
	core.index()
	return &Holdout{ExperimentCore: core, IncludedFlags: included, ExcludedFlags: excluded}
}

func (c *ExperimentCore) index() {
	c.variationsByID = make(map[string]*Variation, len(c.Variations))
	c.variationsByKey = make(map[string]*Variation, len(c.Variations))
	for i := range c.Variations {
		v := &c.Variations[i]
		c.variationsByID[v.ID] = v
		c.variationsByKey[v.Key] = v
	}
}

// IsRunning reports whether the experiment accepts traffic.
func (c *ExperimentCore) IsRunning() bool { return c.Status == StatusRunning }

// IsGrouped reports whether the experiment belongs to a group.
func (c *ExperimentCore) IsGrouped() bool { return c.GroupID != "" }

// VariationByID looks up a variation by id. Only cores built by
// NewExperiment or NewHoldout have their indexes.
func (c *ExperimentCore) VariationByID(id string) (*Variation, bool) {
	v, ok := c.variationsByID[id]
	return v, ok
}

// VariationByKey looks up a variation by key.
func (c *ExperimentCore) VariationByKey(key string) (*Variation, bool) {
	v, ok := c.variationsByKey[key]
	return v, ok
}

// Covers reports whether the holdout applies to the flag with flagID.
func (h *Holdout) Covers(flagID string) bool {
	for _, id := range h.ExcludedFlags {
		if id == flagID {
			return false
		}
	}
	if len(h.IncludedFlags) == 0 {
		return true
	}
	for _, id := range h.IncludedFlags {
		if id == flagID {
			return true
		}
	}
	return false
}

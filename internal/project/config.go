// Package project holds the immutable in-memory form of a datafile and the
// lookups the decision engine performs against it.
//
// A Config is built once by NewConfig and never mutated. All derived
// indexes, variation maps and parsed condition trees are computed eagerly so
// concurrent readers never observe a partially built value.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/TimurManjosov/goexperiment/internal/condition"
	"github.com/TimurManjosov/goexperiment/internal/entities"
)

var (
	ErrInvalidDatafile    = errors.New("invalid datafile")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrVariationNotFound  = errors.New("variation not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrAudienceNotFound   = errors.New("audience not found")
	ErrRolloutNotFound    = errors.New("rollout not found")
	ErrFeatureNotFound    = errors.New("feature flag not found")
	ErrAttributeNotFound  = errors.New("attribute not found")
)

// Config is a parsed datafile.
type Config struct {
	Version           string
	ProjectID         string
	AccountID         string
	Revision          string
	SDKKey            string
	EnvironmentKey    string
	BotFiltering      bool
	SendFlagDecisions bool

	experimentsByKey map[string]*entities.Experiment
	experimentsByID  map[string]*entities.Experiment
	groups           map[string]*entities.Group
	audiences        map[string]*entities.Audience
	attributes       map[string]*entities.Attribute
	features         map[string]*entities.FeatureFlag
	rollouts         map[string]*entities.Rollout
	holdouts         []*entities.Holdout

	// flagsByExperimentID lists the feature flags an experiment belongs to.
	flagsByExperimentID map[string][]string
}

// NewConfig parses a datafile.
func NewConfig(data []byte) (*Config, error) {
	var df datafile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&df); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatafile, err)
	}

	cfg := &Config{
		Version:             df.Version,
		ProjectID:           df.ProjectID,
		AccountID:           df.AccountID,
		Revision:            df.Revision,
		SDKKey:              df.SDKKey,
		EnvironmentKey:      df.EnvironmentKey,
		BotFiltering:        df.BotFiltering,
		SendFlagDecisions:   df.SendFlagDecisions,
		experimentsByKey:    make(map[string]*entities.Experiment),
		experimentsByID:     make(map[string]*entities.Experiment),
		groups:              make(map[string]*entities.Group, len(df.Groups)),
		audiences:           make(map[string]*entities.Audience),
		attributes:          make(map[string]*entities.Attribute, len(df.Attributes)),
		features:            make(map[string]*entities.FeatureFlag, len(df.FeatureFlags)),
		rollouts:            make(map[string]*entities.Rollout, len(df.Rollouts)),
		flagsByExperimentID: make(map[string][]string),
	}

	for _, raw := range df.Experiments {
		if err := cfg.addExperiment(raw, ""); err != nil {
			return nil, err
		}
	}
	for _, g := range df.Groups {
		group := &entities.Group{
			ID:                g.ID,
			Policy:            entities.GroupPolicy(g.Policy),
			TrafficAllocation: trafficAllocation(g.TrafficAllocation),
		}
		for _, raw := range g.Experiments {
			group.ExperimentIDs = append(group.ExperimentIDs, raw.ID)
			if err := cfg.addExperiment(raw, g.ID); err != nil {
				return nil, err
			}
		}
		cfg.groups[g.ID] = group
	}

	for _, a := range df.Audiences {
		cfg.audiences[a.ID] = &entities.Audience{ID: a.ID, Name: a.Name, Conditions: parseAudience([]byte(a.Conditions))}
	}
	// Typed audiences replace legacy audiences with the same id.
	for _, a := range df.TypedAudiences {
		cfg.audiences[a.ID] = &entities.Audience{ID: a.ID, Name: a.Name, Conditions: parseAudience(a.Conditions)}
	}

	for _, a := range df.Attributes {
		cfg.attributes[a.Key] = &entities.Attribute{ID: a.ID, Key: a.Key}
	}

	for _, r := range df.Rollouts {
		rollout := &entities.Rollout{ID: r.ID}
		for _, raw := range r.Experiments {
			core, err := experimentCore(raw, "")
			if err != nil {
				return nil, err
			}
			rollout.Rules = append(rollout.Rules, entities.NewExperiment(core, raw.ForcedVariations))
		}
		cfg.rollouts[r.ID] = rollout
	}

	for _, f := range df.FeatureFlags {
		flag := &entities.FeatureFlag{ID: f.ID, Key: f.Key, RolloutID: f.RolloutID, ExperimentIDs: f.ExperimentIDs}
		for _, v := range f.Variables {
			typ := entities.VariableType(v.Type)
			if typ == entities.VariableString && v.SubType == string(entities.VariableJSON) {
				typ = entities.VariableJSON
			}
			flag.Variables = append(flag.Variables, entities.Variable{ID: v.ID, Key: v.Key, Type: typ, DefaultValue: v.DefaultValue})
		}
		cfg.features[f.Key] = flag
		for _, id := range f.ExperimentIDs {
			cfg.flagsByExperimentID[id] = append(cfg.flagsByExperimentID[id], f.Key)
		}
	}

	for _, h := range df.Holdouts {
		core, err := experimentCore(h.experimentJSON, "")
		if err != nil {
			return nil, err
		}
		cfg.holdouts = append(cfg.holdouts, entities.NewHoldout(core, h.IncludedFlags, h.ExcludedFlags))
	}

	return cfg, nil
}

func (c *Config) addExperiment(raw experimentJSON, groupID string) error {
	core, err := experimentCore(raw, groupID)
	if err != nil {
		return err
	}
	exp := entities.NewExperiment(core, raw.ForcedVariations)
	c.experimentsByKey[exp.Key] = exp
	c.experimentsByID[exp.ID] = exp
	return nil
}

func experimentCore(raw experimentJSON, groupID string) (entities.ExperimentCore, error) {
	core := entities.ExperimentCore{
		ID:                raw.ID,
		Key:               raw.Key,
		Status:            entities.ExperimentStatus(raw.Status),
		LayerID:           raw.LayerID,
		TrafficAllocation: trafficAllocation(raw.TrafficAllocation),
		AudienceIDs:       raw.AudienceIDs,
		GroupID:           groupID,
	}
	for _, v := range raw.Variations {
		variation := entities.Variation{ID: v.ID, Key: v.Key, FeatureEnabled: v.FeatureEnabled}
		if len(v.Variables) > 0 {
			variation.Variables = make(map[string]entities.VariableUsage, len(v.Variables))
			for _, u := range v.Variables {
				variation.Variables[u.ID] = entities.VariableUsage{ID: u.ID, Value: u.Value}
			}
		}
		core.Variations = append(core.Variations, variation)
	}

	if len(raw.AudienceConditions) > 0 && !bytes.Equal(bytes.TrimSpace(raw.AudienceConditions), []byte("null")) {
		tree, err := condition.ParseJSON(raw.AudienceConditions)
		if err != nil {
			return core, fmt.Errorf("%w: experiment %q: %v", ErrInvalidDatafile, raw.Key, err)
		}
		// An empty list means "no targeting", same as a missing tree.
		if tree.Kind != condition.KindOr || len(tree.Children) > 0 {
			core.AudienceConditions = tree
		}
	}
	return core, nil
}

// parseAudience returns nil for conditions that cannot be parsed. Such an
// audience evaluates to Unknown.
func parseAudience(data []byte) *condition.Node {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	tree, err := condition.ParseJSON(data)
	if err != nil {
		return nil
	}
	return tree
}

func trafficAllocation(raw []trafficJSON) []entities.TrafficAllocation {
	out := make([]entities.TrafficAllocation, 0, len(raw))
	for _, t := range raw {
		out = append(out, entities.TrafficAllocation{EntityID: t.EntityID, EndOfRange: t.EndOfRange})
	}
	return out
}

func (c *Config) GetExperimentByKey(key string) (*entities.Experiment, error) {
	if exp, ok := c.experimentsByKey[key]; ok {
		return exp, nil
	}
	return nil, fmt.Errorf("%w: key %q", ErrExperimentNotFound, key)
}

func (c *Config) GetExperimentByID(id string) (*entities.Experiment, error) {
	if exp, ok := c.experimentsByID[id]; ok {
		return exp, nil
	}
	return nil, fmt.Errorf("%w: id %q", ErrExperimentNotFound, id)
}

// GetVariationByKey resolves a variation of the experiment with experimentKey.
func (c *Config) GetVariationByKey(experimentKey, variationKey string) (*entities.Variation, error) {
	exp, err := c.GetExperimentByKey(experimentKey)
	if err != nil {
		return nil, err
	}
	if v, ok := exp.VariationByKey(variationKey); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: key %q in experiment %q", ErrVariationNotFound, variationKey, experimentKey)
}

// GetVariationByID resolves a variation of the experiment with experimentKey.
func (c *Config) GetVariationByID(experimentKey, variationID string) (*entities.Variation, error) {
	exp, err := c.GetExperimentByKey(experimentKey)
	if err != nil {
		return nil, err
	}
	if v, ok := exp.VariationByID(variationID); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: id %q in experiment %q", ErrVariationNotFound, variationID, experimentKey)
}

func (c *Config) GetGroupByID(id string) (*entities.Group, error) {
	if g, ok := c.groups[id]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: id %q", ErrGroupNotFound, id)
}

func (c *Config) GetAudienceByID(id string) (*entities.Audience, error) {
	if a, ok := c.audiences[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: id %q", ErrAudienceNotFound, id)
}

func (c *Config) GetRolloutByID(id string) (*entities.Rollout, error) {
	if r, ok := c.rollouts[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: id %q", ErrRolloutNotFound, id)
}

func (c *Config) GetFeatureByKey(key string) (*entities.FeatureFlag, error) {
	if f, ok := c.features[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: key %q", ErrFeatureNotFound, key)
}

func (c *Config) GetAttributeByKey(key string) (*entities.Attribute, error) {
	if a, ok := c.attributes[key]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: key %q", ErrAttributeNotFound, key)
}

// GetHoldoutsForFlag returns the holdouts covering the flag, in datafile
// order.
func (c *Config) GetHoldoutsForFlag(flagID string) []*entities.Holdout {
	var out []*entities.Holdout
	for _, h := range c.holdouts {
		if h.Covers(flagID) {
			out = append(out, h)
		}
	}
	return out
}

// IsFeatureExperiment reports whether any feature flag references the
// experiment.
func (c *Config) IsFeatureExperiment(experimentID string) bool {
	return len(c.flagsByExperimentID[experimentID]) > 0
}

// Experiments returns every experiment, grouped or not, sorted by key.
func (c *Config) Experiments() []*entities.Experiment {
	out := slices.Collect(maps.Values(c.experimentsByKey))
	slices.SortFunc(out, func(a, b *entities.Experiment) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// FeatureKeys returns every feature flag key, sorted.
func (c *Config) FeatureKeys() []string {
	return slices.Sorted(maps.Keys(c.features))
}

// Audiences returns every audience, sorted by id.
func (c *Config) Audiences() []*entities.Audience {
	out := slices.Collect(maps.Values(c.audiences))
	slices.SortFunc(out, func(a, b *entities.Audience) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Holdouts returns every holdout in datafile order.
func (c *Config) Holdouts() []*entities.Holdout { return c.holdouts }

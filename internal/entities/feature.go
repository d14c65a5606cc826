package entities

import "github.com/TimurManjosov/goexperiment/internal/condition"

// VariableType is the declared type of a feature variable.
type VariableType string

const (
	VariableBoolean VariableType = "boolean"
	VariableInteger VariableType = "integer"
	VariableDouble  VariableType = "double"
	VariableString  VariableType = "string"
	VariableJSON    VariableType = "json"
)

// Variable is a typed value attached to a feature flag.
type Variable struct {
	ID           string
	Key          string
	Type         VariableType
	DefaultValue string
}

// FeatureFlag ties experiments and a rollout to a flag key.
type FeatureFlag struct {
	ID            string
	Key           string
	RolloutID     string
	ExperimentIDs []string
	Variables     []Variable
}

// VariableByKey returns the variable declared with key.
func (f *FeatureFlag) VariableByKey(key string) (Variable, bool) {
	for _, v := range f.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return Variable{}, false
}

// Rollout is an ordered list of targeting rules. The last rule is the
// "everyone else" rule.
type Rollout struct {
	ID    string
	Rules []*Experiment
}

// GroupPolicy describes how experiments inside a group share traffic.
type GroupPolicy string

const (
	PolicyRandom      GroupPolicy = "random"
	PolicyOverlapping GroupPolicy = "overlapping"
)

// Group is a set of experiments. Under the random policy the group's own
// traffic allocation, keyed by experiment id, picks at most one experiment
// per user.
type Group struct {
	ID                string
	Policy            GroupPolicy
	ExperimentIDs     []string
	TrafficAllocation []TrafficAllocation
}

// IsMutex reports whether member experiments are mutually exclusive.
func (g *Group) IsMutex() bool { return g.Policy == PolicyRandom }

// Audience is a named, reusable targeting expression.
type Audience struct {
	ID         string
	Name       string
	Conditions *condition.Node
}

// Attribute is a user attribute declared in the datafile.
type Attribute struct {
	ID  string
	Key string
}

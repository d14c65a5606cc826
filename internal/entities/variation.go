package entities

// MaxTrafficValue is the size of the bucket space. Traffic allocation end
// values are exclusive upper bounds within [0, MaxTrafficValue].
const MaxTrafficValue = 10000

// Variation is one arm of an experiment.
type Variation struct {
	ID             string
	Key            string
	FeatureEnabled bool
	// Variables maps variable id to the value this variation assigns.
	Variables map[string]VariableUsage
}

// VariableUsage is a variation's value for one feature variable.
type VariableUsage struct {
	ID    string
	Value string
}

// TrafficAllocation assigns bucket numbers below EndOfRange (and at or above
// the previous range's end) to EntityID, a variation id or, for groups, an
// experiment id.
type TrafficAllocation struct {
	EntityID   string
	EndOfRange int
}

package project

import "encoding/json"

// datafile mirrors the v4 datafile document. Only the parts the decision
// engine reads are declared.
type datafile struct {
	Version           string            `json:"version"`
	ProjectID         string            `json:"projectId"`
	AccountID         string            `json:"accountId"`
	Revision          string            `json:"revision"`
	SDKKey            string            `json:"sdkKey"`
	EnvironmentKey    string            `json:"environmentKey"`
	BotFiltering      bool              `json:"botFiltering"`
	SendFlagDecisions bool              `json:"sendFlagDecisions"`
	Experiments       []experimentJSON  `json:"experiments"`
	Groups            []groupJSON       `json:"groups"`
	Audiences         []audienceJSON    `json:"audiences"`
	TypedAudiences    []typedAudience   `json:"typedAudiences"`
	Attributes        []attributeJSON   `json:"attributes"`
	FeatureFlags      []featureFlagJSON `json:"featureFlags"`
	Rollouts          []rolloutJSON     `json:"rollouts"`
	Holdouts          []holdoutJSON     `json:"holdouts"`
}

type experimentJSON struct {
	ID                 string            `json:"id"`
	Key                string            `json:"key"`
	Status             string            `json:"status"`
	LayerID            string            `json:"layerId"`
	Variations         []variationJSON   `json:"variations"`
	TrafficAllocation  []trafficJSON     `json:"trafficAllocation"`
	AudienceIDs        []string          `json:"audienceIds"`
	AudienceConditions json.RawMessage   `json:"audienceConditions"`
	ForcedVariations   map[string]string `json:"forcedVariations"`
}

type variationJSON struct {
	ID             string              `json:"id"`
	Key            string              `json:"key"`
	FeatureEnabled bool                `json:"featureEnabled"`
	Variables      []variableUsageJSON `json:"variables"`
}

type variableUsageJSON struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type trafficJSON struct {
	EntityID   string `json:"entityId"`
	EndOfRange int    `json:"endOfRange"`
}

type groupJSON struct {
	ID                string           `json:"id"`
	Policy            string           `json:"policy"`
	Experiments       []experimentJSON `json:"experiments"`
	TrafficAllocation []trafficJSON    `json:"trafficAllocation"`
}

// audienceJSON carries its conditions as a JSON document encoded in a string.
type audienceJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Conditions string `json:"conditions"`
}

type typedAudience struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"`
}

type attributeJSON struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type featureFlagJSON struct {
	ID            string         `json:"id"`
	Key           string         `json:"key"`
	RolloutID     string         `json:"rolloutId"`
	ExperimentIDs []string       `json:"experimentIds"`
	Variables     []variableJSON `json:"variables"`
}

type variableJSON struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Type         string `json:"type"`
	SubType      string `json:"subType"`
	DefaultValue string `json:"defaultValue"`
}

type rolloutJSON struct {
	ID          string           `json:"id"`
	Experiments []experimentJSON `json:"experiments"`
}

type holdoutJSON struct {
	experimentJSON
	IncludedFlags []string `json:"includedFlags"`
	ExcludedFlags []string `json:"excludedFlags"`
}

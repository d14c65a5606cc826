package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TimurManjosov/goexperiment/internal/decision"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/notification"
	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/telemetry"
)

// DecideOptions tune Decide.
type DecideOptions struct {
	IgnoreUserProfileService bool
	IncludeReasons           bool
}

// Decision is the full outcome of deciding a flag.
type Decision struct {
	FlagKey      string         `json:"flagKey" yaml:"flagKey"`
	VariationKey string         `json:"variationKey,omitempty" yaml:"variationKey,omitempty"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	RuleKey      string         `json:"ruleKey,omitempty" yaml:"ruleKey,omitempty"`
	Source       string         `json:"source" yaml:"source"`
	Variables    map[string]any `json:"variables" yaml:"variables"`
	Reasons      []string       `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Decide decides flagKey for user and resolves all of its variables.
func (c *Client) Decide(ctx context.Context, flagKey string, user User, opts DecideOptions) (d Decision, err error) {
	ctx, span := startSpan(ctx, "sdk.Decide", attribute.String("flag_key", flagKey), attribute.String("user_id", user.UserID))
	defer func() { endSpan(span, d.VariationKey, err) }()

	cfg, flag, err := c.feature(flagKey)
	if err != nil {
		return Decision{FlagKey: flagKey}, err
	}
	return c.decide(ctx, cfg, flag, user, opts), nil
}

// DecideAll decides every flag in the datafile, keyed by flag key. Flags are
// decided concurrently; a malformed flag only degrades its own variables.
func (c *Client) DecideAll(ctx context.Context, user User, opts DecideOptions) (_ map[string]Decision, err error) {
	ctx, span := startSpan(ctx, "sdk.DecideAll", attribute.String("user_id", user.UserID))
	defer func() { endSpan(span, "", err) }()

	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	keys := cfg.FeatureKeys()
	flags := make([]*entities.FeatureFlag, 0, len(keys))
	for _, key := range keys {
		flag, err := cfg.GetFeatureByKey(key)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}

	decided := iter.Map(flags, func(flag **entities.FeatureFlag) Decision {
		return c.decide(ctx, cfg, *flag, user, opts)
	})
	out := make(map[string]Decision, len(decided))
	for _, d := range decided {
		out[d.FlagKey] = d
	}
	span.SetAttributes(attribute.Int("flags", len(out)))
	return out, nil
}

// decide never fails: a variable whose value does not parse as its declared
// type is returned as the raw string, with a reason.
func (c *Client) decide(ctx context.Context, cfg *project.Config, flag *entities.FeatureFlag, user User, opts DecideOptions) Decision {
	res := c.decisions.GetVariationForFeature(ctx, cfg, flag, user, decision.Options{IgnoreUserProfileService: opts.IgnoreUserProfileService})
	fd := res.Value

	trail := res.Reasons
	variables := make(map[string]any, len(flag.Variables))
	for _, v := range flag.Variables {
		raw := variableValue(v, fd)
		typed, err := parseVariable(v, raw)
		if err != nil {
			c.logger.Warn().Err(err).Str("flag_key", flag.Key).Str("variable_key", v.Key).Msg("feature variable kept as string")
			trail.Addf("Variable %q of feature %q is not a valid %s; returning the raw value %q.", v.Key, flag.Key, v.Type, raw)
			typed = raw
		}
		variables[v.Key] = typed
	}

	d := Decision{
		FlagKey:   flag.Key,
		Enabled:   fd.Enabled(),
		Source:    string(fd.Source),
		Variables: variables,
	}
	if fd.Variation != nil {
		d.VariationKey = fd.Variation.Key
	}
	if fd.Experiment != nil {
		d.RuleKey = fd.Experiment.Key
	}
	if opts.IncludeReasons {
		d.Reasons = trail
	}

	c.publishFeature(cfg, notification.DecisionFlag, flag.Key, "", user, fd, trail)
	return d
}

// IsFeatureEnabled reports whether flagKey is on for user.
func (c *Client) IsFeatureEnabled(ctx context.Context, flagKey string, user User) (enabled bool, err error) {
	ctx, span := startSpan(ctx, "sdk.IsFeatureEnabled", attribute.String("flag_key", flagKey), attribute.String("user_id", user.UserID))
	defer func() {
		span.SetAttributes(attribute.Bool("enabled", enabled))
		endSpan(span, "", err)
	}()

	cfg, flag, err := c.feature(flagKey)
	if err != nil {
		return false, err
	}
	res := c.decisions.GetVariationForFeature(ctx, cfg, flag, user, decision.Options{})
	c.publishFeature(cfg, notification.DecisionFeature, flag.Key, "", user, res.Value, res.Reasons)

	enabled = res.Value.Enabled()
	c.logger.Debug().Str("flag_key", flag.Key).Str("user_id", user.UserID).Bool("enabled", enabled).Msg("feature decided")
	return enabled, nil
}

// GetEnabledFeatures returns the keys of every flag enabled for user, sorted.
func (c *Client) GetEnabledFeatures(ctx context.Context, user User) ([]string, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	keys := cfg.FeatureKeys()
	on, err := iter.MapErr(keys, func(key *string) (bool, error) {
		return c.IsFeatureEnabled(ctx, *key, user)
	})
	if err != nil {
		return nil, err
	}
	var enabled []string
	for i, key := range keys {
		if on[i] {
			enabled = append(enabled, key)
		}
	}
	return enabled, nil
}

func (c *Client) GetFeatureVariableBoolean(ctx context.Context, flagKey, variableKey string, user User) (bool, error) {
	raw, err := c.featureVariable(ctx, flagKey, variableKey, user, entities.VariableBoolean)
	if err != nil {
		return false, err
	}
	v, err := parseVariable(entities.Variable{Key: variableKey, Type: entities.VariableBoolean}, raw)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Client) GetFeatureVariableInteger(ctx context.Context, flagKey, variableKey string, user User) (int, error) {
	raw, err := c.featureVariable(ctx, flagKey, variableKey, user, entities.VariableInteger)
	if err != nil {
		return 0, err
	}
	v, err := parseVariable(entities.Variable{Key: variableKey, Type: entities.VariableInteger}, raw)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *Client) GetFeatureVariableDouble(ctx context.Context, flagKey, variableKey string, user User) (float64, error) {
	raw, err := c.featureVariable(ctx, flagKey, variableKey, user, entities.VariableDouble)
	if err != nil {
		return 0, err
	}
	v, err := parseVariable(entities.Variable{Key: variableKey, Type: entities.VariableDouble}, raw)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *Client) GetFeatureVariableString(ctx context.Context, flagKey, variableKey string, user User) (string, error) {
	return c.featureVariable(ctx, flagKey, variableKey, user, entities.VariableString)
}

func (c *Client) GetFeatureVariableJSON(ctx context.Context, flagKey, variableKey string, user User) (map[string]any, error) {
	raw, err := c.featureVariable(ctx, flagKey, variableKey, user, entities.VariableJSON)
	if err != nil {
		return nil, err
	}
	v, err := parseVariable(entities.Variable{Key: variableKey, Type: entities.VariableJSON}, raw)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetAllFeatureVariables resolves every variable of flagKey for user.
func (c *Client) GetAllFeatureVariables(ctx context.Context, flagKey string, user User) (map[string]any, error) {
	d, err := c.Decide(ctx, flagKey, user, DecideOptions{})
	if err != nil {
		return nil, err
	}
	return d.Variables, nil
}

// featureVariable returns the raw value of a variable: the decided
// variation's value when the feature is enabled and the variation sets the
// variable, else the default.
func (c *Client) featureVariable(ctx context.Context, flagKey, variableKey string, user User, want entities.VariableType) (string, error) {
	cfg, flag, err := c.feature(flagKey)
	if err != nil {
		return "", err
	}
	if variableKey == "" {
		return "", fmt.Errorf("%w: variable key is empty", ErrInvalidInput)
	}
	variable, ok := flag.VariableByKey(variableKey)
	if !ok {
		return "", fmt.Errorf("%w: %q in feature %q", ErrVariableNotFound, variableKey, flagKey)
	}
	if variable.Type != want {
		return "", fmt.Errorf("%w: %q is %s, requested %s", ErrVariableType, variableKey, variable.Type, want)
	}

	res := c.decisions.GetVariationForFeature(ctx, cfg, flag, user, decision.Options{})
	c.publishFeature(cfg, notification.DecisionFeatureVariable, flag.Key, variableKey, user, res.Value, res.Reasons)
	return variableValue(variable, res.Value), nil
}

func (c *Client) feature(flagKey string) (*project.Config, *entities.FeatureFlag, error) {
	if flagKey == "" {
		return nil, nil, fmt.Errorf("%w: feature key is empty", ErrInvalidInput)
	}
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	flag, err := cfg.GetFeatureByKey(flagKey)
	if err != nil {
		c.logger.Info().Str("flag_key", flagKey).Msg("feature flag not in datafile")
		return nil, nil, err
	}
	return cfg, flag, nil
}

func (c *Client) publishFeature(cfg *project.Config, decisionType, flagKey, variableKey string, user User, fd decision.FeatureDecision, reasons []string) {
	telemetry.RecordDecision(decisionType, string(fd.Source), fd.Enabled())
	e := notification.Event{
		Type:         notification.TypeDecision,
		DecisionType: decisionType,
		UserID:       user.UserID,
		Attributes:   user.Attributes,
		FlagKey:      flagKey,
		VariableKey:  variableKey,
		Enabled:      fd.Enabled(),
		Source:       string(fd.Source),
		Revision:     cfg.Revision,
		Reasons:      reasons,
	}
	if fd.Experiment != nil {
		e.ExperimentKey = fd.Experiment.Key
	}
	if fd.Variation != nil {
		e.VariationKey = fd.Variation.Key
	}
	c.notifications.Send(e)
}

func variableValue(v entities.Variable, fd decision.FeatureDecision) string {
	if fd.Variation == nil || !fd.Variation.FeatureEnabled {
		return v.DefaultValue
	}
	if usage, ok := fd.Variation.Variables[v.ID]; ok {
		return usage.Value
	}
	return v.DefaultValue
}

func parseVariable(v entities.Variable, raw string) (any, error) {
	switch v.Type {
	case entities.VariableBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean: %v", ErrVariableType, v.Key, err)
		}
		return b, nil
	case entities.VariableInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer: %v", ErrVariableType, v.Key, err)
		}
		return n, nil
	case entities.VariableDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a double: %v", ErrVariableType, v.Key, err)
		}
		return f, nil
	case entities.VariableJSON:
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON object: %v", ErrVariableType, v.Key, err)
		}
		return m, nil
	default:
		return raw, nil
	}
}

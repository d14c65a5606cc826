package sdk

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/TimurManjosov/goexperiment/internal/decision"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/notification"
	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/telemetry"
)

// Activate buckets user into the experiment and publishes an activate
// event when a variation is assigned. The returned key is empty when the
// user is not in the experiment.
func (c *Client) Activate(ctx context.Context, experimentKey string, user User) (key string, err error) {
	ctx, span := startSpan(ctx, "sdk.Activate", attribute.String("experiment_key", experimentKey), attribute.String("user_id", user.UserID))
	defer func() { endSpan(span, key, err) }()

	cfg, exp, v, err := c.variation(ctx, experimentKey, user)
	if err != nil || v == nil {
		return "", err
	}
	c.notifications.Send(notification.Event{
		Type:          notification.TypeActivate,
		UserID:        user.UserID,
		Attributes:    user.Attributes,
		ExperimentKey: exp.Key,
		VariationKey:  v.Key,
		Revision:      cfg.Revision,
	})
	c.logger.Info().Str("experiment_key", exp.Key).Str("user_id", user.UserID).Str("variation_key", v.Key).Msg("activated user")
	return v.Key, nil
}

// GetVariation returns the variation key user is assigned in the
// experiment, or "" when none.
func (c *Client) GetVariation(ctx context.Context, experimentKey string, user User) (key string, err error) {
	ctx, span := startSpan(ctx, "sdk.GetVariation", attribute.String("experiment_key", experimentKey), attribute.String("user_id", user.UserID))
	defer func() { endSpan(span, key, err) }()

	_, _, v, err := c.variation(ctx, experimentKey, user)
	if err != nil || v == nil {
		return "", err
	}
	return v.Key, nil
}

func (c *Client) variation(ctx context.Context, experimentKey string, user User) (*project.Config, *entities.Experiment, *entities.Variation, error) {
	if experimentKey == "" {
		return nil, nil, nil, fmt.Errorf("%w: experiment key is empty", ErrInvalidInput)
	}
	cfg, err := c.config()
	if err != nil {
		return nil, nil, nil, err
	}
	exp, err := cfg.GetExperimentByKey(experimentKey)
	if err != nil {
		c.logger.Info().Str("experiment_key", experimentKey).Msg("experiment not in datafile")
		return nil, nil, nil, err
	}

	res := c.decisions.GetVariation(ctx, cfg, exp, user, decision.Options{})
	decisionType := notification.DecisionABTest
	if cfg.IsFeatureExperiment(exp.ID) {
		decisionType = string(decision.SourceFeatureTest)
	}
	variationKey := ""
	if res.Value != nil {
		variationKey = res.Value.Key
	}
	telemetry.RecordDecision(decisionType, "experiment", res.Value != nil)
	c.notifications.Send(notification.Event{
		Type:          notification.TypeDecision,
		DecisionType:  decisionType,
		UserID:        user.UserID,
		Attributes:    user.Attributes,
		ExperimentKey: exp.Key,
		VariationKey:  variationKey,
		Enabled:       res.Value != nil,
		Revision:      cfg.Revision,
		Reasons:       res.Reasons,
	})
	return cfg, exp, res.Value, nil
}

// SetForcedVariation forces user into a variation. See
// decision.Service.SetForcedVariation.
func (c *Client) SetForcedVariation(experimentKey, userID, variationKey string) bool {
	cfg, err := c.config()
	if err != nil {
		return false
	}
	return c.decisions.SetForcedVariation(cfg, experimentKey, userID, variationKey)
}

// GetForcedVariation returns the forced variation key, or "" when none.
func (c *Client) GetForcedVariation(experimentKey, userID string) (string, error) {
	cfg, err := c.config()
	if err != nil {
		return "", err
	}
	if _, err := cfg.GetExperimentByKey(experimentKey); err != nil {
		return "", err
	}
	v := c.decisions.GetForcedVariation(cfg, experimentKey, userID).Value
	if v == nil {
		return "", nil
	}
	return v.Key, nil
}

func (c *Client) RemoveForcedVariation(experimentKey, userID string) bool {
	cfg, err := c.config()
	if err != nil {
		return false
	}
	return c.decisions.RemoveForcedVariation(cfg, experimentKey, userID)
}

package decision

import (
	"context"
	"strconv"

	"github.com/TimurManjosov/goexperiment/internal/audience"
	"github.com/TimurManjosov/goexperiment/internal/bucketing"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
)

// Source tells which part of the feature waterfall produced a decision.
type Source string

const (
	SourceHoldout     Source = "holdout"
	SourceFeatureTest Source = "feature-test"
	SourceRollout     Source = "rollout"
)

// FeatureDecision is the outcome of deciding a feature flag. Variation is
// nil when the user got no decision; the feature is then disabled.
type FeatureDecision struct {
	Experiment *entities.ExperimentCore
	Variation  *entities.Variation
	Source     Source
}

// Enabled reports whether the decided variation turns the feature on.
func (d FeatureDecision) Enabled() bool {
	return d.Variation != nil && d.Variation.FeatureEnabled
}

// GetVariationForFeature decides flag for user.
//
// Holdouts covering the flag are evaluated first. Then the flag's feature
// experiments are tried in declared order through GetVariation, and the
// first one that yields a variation wins. Otherwise the rollout decides.
// With no decision anywhere the result carries Source rollout and a nil
// Variation.
func (s *Service) GetVariationForFeature(ctx context.Context, cfg ProjectConfig, flag *entities.FeatureFlag, user UserContext, opts Options) reasons.Result[FeatureDecision] {
	var r reasons.Reasons

	held := s.getVariationForHoldouts(cfg, flag, user)
	s.merge(&r, held.Reasons)
	if held.Value.Variation != nil {
		return reasons.NewResult(held.Value, r)
	}

	experiment := s.GetVariationForFeatureExperiment(ctx, cfg, flag, user, opts)
	s.merge(&r, experiment.Reasons)
	if experiment.Value.Variation != nil {
		return reasons.NewResult(experiment.Value, r)
	}

	rollout := s.GetVariationForFeatureRollout(cfg, flag, user)
	s.merge(&r, rollout.Reasons)
	if rollout.Value.Variation != nil {
		return reasons.NewResult(rollout.Value, r)
	}

	s.addf(&r, "User %q is not in any experiment or rollout of feature %q.", user.UserID, flag.Key)
	return reasons.NewResult(FeatureDecision{Source: SourceRollout}, r)
}

// GetVariationForFeatureExperiment returns the first feature experiment of
// flag that buckets the user.
func (s *Service) GetVariationForFeatureExperiment(ctx context.Context, cfg ProjectConfig, flag *entities.FeatureFlag, user UserContext, opts Options) reasons.Result[FeatureDecision] {
	var r reasons.Reasons
	if len(flag.ExperimentIDs) == 0 {
		s.addf(&r, "Feature %q is not used in any experiments.", flag.Key)
		return reasons.NewResult(FeatureDecision{Source: SourceFeatureTest}, r)
	}

	for _, id := range flag.ExperimentIDs {
		exp, err := cfg.GetExperimentByID(id)
		if err != nil {
			s.addf(&r, "Experiment id %q of feature %q is not in the datafile.", id, flag.Key)
			continue
		}
		res := s.GetVariation(ctx, cfg, exp, user, opts)
		s.merge(&r, res.Reasons)
		if res.Value != nil {
			s.addf(&r, "User %q is bucketed into experiment %q of feature %q.", user.UserID, exp.Key, flag.Key)
			return reasons.NewResult(FeatureDecision{Experiment: &exp.ExperimentCore, Variation: res.Value, Source: SourceFeatureTest}, r)
		}
	}

	s.addf(&r, "User %q is not bucketed into any of the experiments of feature %q.", user.UserID, flag.Key)
	return reasons.NewResult(FeatureDecision{Source: SourceFeatureTest}, r)
}

// GetVariationForFeatureRollout walks the rollout of flag.
//
// Rules before the last are targeting rules, tried in order. The first rule
// whose audience admits the user decides: if its traffic allocation leaves
// the user out, the result is no decision and later rules are not tried.
// When no targeting rule admits the user, the last "everyone else" rule is
// evaluated the same way.
func (s *Service) GetVariationForFeatureRollout(cfg ProjectConfig, flag *entities.FeatureFlag, user UserContext) reasons.Result[FeatureDecision] {
	var r reasons.Reasons
	none := FeatureDecision{Source: SourceRollout}

	if flag.RolloutID == "" {
		s.addf(&r, "Feature %q is not used in a rollout.", flag.Key)
		return reasons.NewResult(none, r)
	}
	rollout, err := cfg.GetRolloutByID(flag.RolloutID)
	if err != nil {
		s.addf(&r, "Rollout %q of feature %q is not in the datafile.", flag.RolloutID, flag.Key)
		return reasons.NewResult(none, r)
	}
	if len(rollout.Rules) == 0 {
		s.addf(&r, "Rollout %q of feature %q has no rules.", rollout.ID, flag.Key)
		return reasons.NewResult(none, r)
	}

	bucketingID := s.GetBucketingID(user)
	s.merge(&r, bucketingID.Reasons)

	last := len(rollout.Rules) - 1
	for i, rule := range rollout.Rules[:last] {
		label := strconv.Itoa(i + 1)
		targeted := audience.Evaluate(cfg, &rule.ExperimentCore, user.matcherUser(), "rule", label)
		s.merge(&r, targeted.Reasons)
		if !targeted.Value {
			s.addf(&r, "User %q does not meet conditions for targeting rule %s.", user.UserID, label)
			continue
		}
		s.addf(&r, "User %q meets conditions for targeting rule %s.", user.UserID, label)

		bucketed := bucketing.Bucket(cfg, &rule.ExperimentCore, bucketingID.Value, user.UserID)
		s.merge(&r, bucketed.Reasons)
		if bucketed.Value == nil {
			s.addf(&r, "User %q is not in the traffic group for targeting rule %s. Checking no further rules.", user.UserID, label)
			return reasons.NewResult(none, r)
		}
		s.addf(&r, "User %q is in the traffic group of targeting rule %s.", user.UserID, label)
		return reasons.NewResult(FeatureDecision{Experiment: &rule.ExperimentCore, Variation: bucketed.Value, Source: SourceRollout}, r)
	}

	everyoneElse := rollout.Rules[last]
	targeted := audience.Evaluate(cfg, &everyoneElse.ExperimentCore, user.matcherUser(), "rule", "Everyone Else")
	s.merge(&r, targeted.Reasons)
	if !targeted.Value {
		s.addf(&r, "User %q does not meet conditions for the \"Everyone Else\" rule.", user.UserID)
		return reasons.NewResult(none, r)
	}
	bucketed := bucketing.Bucket(cfg, &everyoneElse.ExperimentCore, bucketingID.Value, user.UserID)
	s.merge(&r, bucketed.Reasons)
	if bucketed.Value == nil {
		s.addf(&r, "User %q is not in the traffic group for the \"Everyone Else\" rule.", user.UserID)
		return reasons.NewResult(none, r)
	}
	s.addf(&r, "User %q is in the traffic group of the \"Everyone Else\" rule.", user.UserID)
	return reasons.NewResult(FeatureDecision{Experiment: &everyoneElse.ExperimentCore, Variation: bucketed.Value, Source: SourceRollout}, r)
}

// getVariationForHoldouts returns the first running holdout covering flag
// that buckets the user.
func (s *Service) getVariationForHoldouts(cfg ProjectConfig, flag *entities.FeatureFlag, user UserContext) reasons.Result[FeatureDecision] {
	var r reasons.Reasons
	none := FeatureDecision{Source: SourceHoldout}

	holdouts := cfg.GetHoldoutsForFlag(flag.ID)
	if len(holdouts) == 0 {
		return reasons.NewResult(none, r)
	}

	bucketingID := s.GetBucketingID(user)
	s.merge(&r, bucketingID.Reasons)
	for _, h := range holdouts {
		if !h.IsRunning() {
			s.addf(&r, "Holdout %q is not running.", h.Key)
			continue
		}
		targeted := audience.Evaluate(cfg, &h.ExperimentCore, user.matcherUser(), "holdout", h.Key)
		s.merge(&r, targeted.Reasons)
		if !targeted.Value {
			continue
		}
		bucketed := bucketing.Bucket(cfg, &h.ExperimentCore, bucketingID.Value, user.UserID)
		s.merge(&r, bucketed.Reasons)
		if bucketed.Value != nil {
			s.addf(&r, "User %q is in holdout %q for feature %q.", user.UserID, h.Key, flag.Key)
			return reasons.NewResult(FeatureDecision{Experiment: &h.ExperimentCore, Variation: bucketed.Value, Source: SourceHoldout}, r)
		}
	}
	return reasons.NewResult(none, r)
}

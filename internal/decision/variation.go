package decision

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/goexperiment/internal/audience"
	"github.com/TimurManjosov/goexperiment/internal/bucketing"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
	"github.com/TimurManjosov/goexperiment/internal/userprofile"
)

// GetVariation assigns user to a variation of exp.
//
// Preconditions:
//   - exp belongs to cfg
//   - user.UserID may be empty; it is hashed like any other id
//   - user.Attributes may be nil
//
// Postconditions:
//   - Result.Value is nil when the user is not in the experiment
//   - Never panics and never returns an error; profile store failures are
//     logged, reported to the ErrorHandler and treated as "no stored decision"
//
// Evaluation order (the first stage producing a variation wins):
//  0. exp must be Running; otherwise nothing else is consulted
//  1. Forced variation map (SetForcedVariation)
//  2. Datafile whitelist
//  3. Stored profile decision, unless opts.IgnoreUserProfileService
//  4. Audience targeting; False or Unknown ends with no variation
//  5. Bucketing; a fresh assignment is saved to the profile store
func (s *Service) GetVariation(ctx context.Context, cfg ProjectConfig, exp *entities.Experiment, user UserContext, opts Options) reasons.Result[*entities.Variation] {
	var r reasons.Reasons

	if !exp.IsRunning() {
		s.addf(&r, "Experiment %q is not running.", exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}

	forced := s.forcedVariation(exp, user.UserID)
	s.merge(&r, forced.Reasons)
	if forced.Value != nil {
		return reasons.NewResult(forced.Value, r)
	}

	whitelisted := s.whitelistedVariation(exp, user.UserID)
	s.merge(&r, whitelisted.Reasons)
	if whitelisted.Value != nil {
		return reasons.NewResult(whitelisted.Value, r)
	}

	useProfiles := s.profiles != nil && !opts.IgnoreUserProfileService
	var profile *userprofile.Profile
	if useProfiles {
		profile = s.loadProfile(ctx, user.UserID, &r)
		if profile != nil {
			if stored := s.storedVariation(exp, profile, &r); stored != nil {
				return reasons.NewResult(stored, r)
			}
		}
	}

	targeted := audience.Evaluate(cfg, &exp.ExperimentCore, user.matcherUser(), "experiment", exp.Key)
	s.merge(&r, targeted.Reasons)
	if !targeted.Value {
		s.addf(&r, "User %q does not meet conditions to be in experiment %q.", user.UserID, exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}

	bucketingID := s.GetBucketingID(user)
	s.merge(&r, bucketingID.Reasons)
	bucketed := bucketing.Bucket(cfg, &exp.ExperimentCore, bucketingID.Value, user.UserID)
	s.merge(&r, bucketed.Reasons)
	if bucketed.Value == nil {
		return reasons.NewResult[*entities.Variation](nil, r)
	}

	if useProfiles {
		if profile == nil {
			profile = userprofile.New(user.UserID)
		}
		s.saveProfile(ctx, profile, exp, bucketed.Value, &r)
	}
	return reasons.NewResult(bucketed.Value, r)
}

func (s *Service) whitelistedVariation(exp *entities.Experiment, userID string) reasons.Result[*entities.Variation] {
	var r reasons.Reasons
	variationKey, ok := exp.Whitelist[userID]
	if !ok {
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	variation, ok := exp.VariationByKey(variationKey)
	if !ok {
		s.addf(&r, "Variation %q forced for user %q in experiment %q is not in the datafile.", variationKey, userID, exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	s.addf(&r, "User %q is forced in variation %q of experiment %q.", userID, variationKey, exp.Key)
	return reasons.NewResult(variation, r)
}

// loadProfile returns the validated stored profile, or nil when there is
// none or it cannot be used.
func (s *Service) loadProfile(ctx context.Context, userID string, r *reasons.Reasons) *userprofile.Profile {
	profile, err := s.lookupProfile(ctx, userID)
	if err != nil {
		s.addf(r, "Unable to use the user profile of %q: %v.", userID, err)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("user profile lookup failed")
		s.errorHandler.HandleError(err)
		return nil
	}
	return profile
}

// lookupProfile separates a failed lookup (error) from a successful one that
// found nothing (nil profile, nil error).
func (s *Service) lookupProfile(ctx context.Context, userID string) (*userprofile.Profile, error) {
	m, err := s.profiles.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	profile, err := userprofile.FromMap(m)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) storedVariation(exp *entities.Experiment, profile *userprofile.Profile, r *reasons.Reasons) *entities.Variation {
	variationID, ok := profile.VariationFor(exp.ID)
	if !ok {
		s.addf(r, "No previously activated variation of experiment %q for user %q.", exp.Key, profile.UserID)
		return nil
	}
	variation, ok := exp.VariationByID(variationID)
	if !ok {
		s.addf(r, "User %q was previously bucketed into variation id %q, which is no longer in experiment %q.", profile.UserID, variationID, exp.Key)
		return nil
	}
	s.addf(r, "Returning previously activated variation %q of experiment %q for user %q from user profile.", variation.Key, exp.Key, profile.UserID)
	return variation
}

func (s *Service) saveProfile(ctx context.Context, profile *userprofile.Profile, exp *entities.Experiment, variation *entities.Variation, r *reasons.Reasons) {
	profile.SaveDecision(exp.ID, variation.ID)
	if err := s.profiles.Save(ctx, profile.ToMap()); err != nil {
		err = fmt.Errorf("save user profile: %w", err)
		s.addf(r, "Failed to save variation %q of experiment %q for user %q.", variation.Key, exp.Key, profile.UserID)
		s.logger.Error().Err(err).Str("user_id", profile.UserID).Str("experiment_key", exp.Key).Msg("user profile save failed")
		s.errorHandler.HandleError(err)
		return
	}
	s.addf(r, "Saved variation %q of experiment %q for user %q.", variation.Key, exp.Key, profile.UserID)
}

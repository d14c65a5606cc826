package decision

import (
	"sync"

	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
)

// forcedVariations maps user id -> experiment id -> variation id.
type forcedVariations struct {
	mu    sync.RWMutex
	users map[string]map[string]string
}

func newForcedVariations() *forcedVariations {
	return &forcedVariations{users: make(map[string]map[string]string)}
}

func (f *forcedVariations) get(userID, experimentID string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.users[userID][experimentID]
	return id, ok
}

func (f *forcedVariations) set(userID, experimentID, variationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.users[userID]
	if !ok {
		m = make(map[string]string)
		f.users[userID] = m
	}
	m[experimentID] = variationID
}

func (f *forcedVariations) remove(userID, experimentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.users[userID]
	if !ok {
		return false
	}
	if _, ok := m[experimentID]; !ok {
		return false
	}
	delete(m, experimentID)
	if len(m) == 0 {
		delete(f.users, userID)
	}
	return true
}

// SetForcedVariation forces userID into the variation with variationKey of
// the experiment with experimentKey. It returns false, leaving the map
// untouched, when any key is empty or does not resolve.
func (s *Service) SetForcedVariation(cfg ProjectConfig, experimentKey, userID, variationKey string) bool {
	if experimentKey == "" || userID == "" || variationKey == "" {
		s.logger.Debug().Str("experiment_key", experimentKey).Str("user_id", userID).
			Msg("Forced variation requires experiment key, user id and variation key.")
		return false
	}
	exp, err := cfg.GetExperimentByKey(experimentKey)
	if err != nil {
		s.logger.Info().Err(err).Str("experiment_key", experimentKey).Msg("Cannot force variation.")
		return false
	}
	variation, ok := exp.VariationByKey(variationKey)
	if !ok {
		s.logger.Info().Str("experiment_key", experimentKey).Str("variation_key", variationKey).
			Msg("Cannot force variation: variation is not in the experiment.")
		return false
	}

	s.forced.set(userID, exp.ID, variation.ID)
	s.logger.Debug().Str("experiment_key", experimentKey).Str("user_id", userID).Str("variation_key", variationKey).
		Msg("Set forced variation.")
	return true
}

// RemoveForcedVariation clears the forced variation of userID for the
// experiment. It reports whether an entry was removed.
func (s *Service) RemoveForcedVariation(cfg ProjectConfig, experimentKey, userID string) bool {
	exp, err := cfg.GetExperimentByKey(experimentKey)
	if err != nil {
		s.logger.Info().Err(err).Str("experiment_key", experimentKey).Msg("Cannot remove forced variation.")
		return false
	}
	return s.forced.remove(userID, exp.ID)
}

// GetForcedVariation returns the variation userID is forced into for the
// experiment, or nil.
func (s *Service) GetForcedVariation(cfg ProjectConfig, experimentKey, userID string) reasons.Result[*entities.Variation] {
	var r reasons.Reasons
	exp, err := cfg.GetExperimentByKey(experimentKey)
	if err != nil {
		s.addf(&r, "Experiment %q is not in the datafile.", experimentKey)
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	return s.forcedVariation(exp, userID)
}

func (s *Service) forcedVariation(exp *entities.Experiment, userID string) reasons.Result[*entities.Variation] {
	var r reasons.Reasons
	variationID, ok := s.forced.get(userID, exp.ID)
	if !ok {
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	variation, ok := exp.VariationByID(variationID)
	if !ok {
		s.addf(&r, "Forced variation id %q of user %q is not in experiment %q.", variationID, userID, exp.Key)
		return reasons.NewResult[*entities.Variation](nil, r)
	}
	s.addf(&r, "Variation %q is mapped to experiment %q and user %q in the forced variation map.", variation.Key, exp.Key, userID)
	return reasons.NewResult(variation, r)
}

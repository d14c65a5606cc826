package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/goexperiment/internal/validation"
)

type forcedRequest struct {
	VariationKey string `json:"variationKey"`
}

// handleGetForced handles GET /v1/experiments/{key}/forced-variations/{userId}.
func (s *Server) handleGetForced(w http.ResponseWriter, r *http.Request) {
	key, userID := chi.URLParam(r, "key"), chi.URLParam(r, "userId")

	variation, err := s.client.GetForcedVariation(key, userID)
	if err != nil {
		decisionError(w, r, err)
		return
	}
	if variation == "" {
		NotFoundError(w, r, ErrCodeNotFound, "no forced variation for user")
		return
	}
	writeJSON(w, http.StatusOK, variationResponse{ExperimentKey: key, UserID: userID, VariationKey: variation})
}

// handleSetForced handles PUT /v1/experiments/{key}/forced-variations/{userId}.
func (s *Server) handleSetForced(w http.ResponseWriter, r *http.Request) {
	key, userID := chi.URLParam(r, "key"), chi.URLParam(r, "userId")

	var req forcedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !valid(w, r, validation.ValidateKey("variationKey", req.VariationKey)) {
		return
	}
	if !s.experimentExists(w, r, key) {
		return
	}
	if !s.client.SetForcedVariation(key, userID, req.VariationKey) {
		NotFoundError(w, r, ErrCodeUnknownVariation, "variation not in experiment")
		return
	}
	s.logger.Info().Str("experiment_key", key).Str("user_id", userID).Str("variation_key", req.VariationKey).Msg("forced variation set")
	writeJSON(w, http.StatusOK, variationResponse{ExperimentKey: key, UserID: userID, VariationKey: req.VariationKey})
}

// handleClearForced handles DELETE /v1/experiments/{key}/forced-variations/{userId}.
func (s *Server) handleClearForced(w http.ResponseWriter, r *http.Request) {
	key, userID := chi.URLParam(r, "key"), chi.URLParam(r, "userId")

	if !s.experimentExists(w, r, key) {
		return
	}
	if !s.client.RemoveForcedVariation(key, userID) {
		NotFoundError(w, r, ErrCodeNotFound, "no forced variation for user")
		return
	}
	s.logger.Info().Str("experiment_key", key).Str("user_id", userID).Msg("forced variation cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) experimentExists(w http.ResponseWriter, r *http.Request, key string) bool {
	cfg := s.snapshots.ProjectConfig()
	if cfg == nil {
		NotReadyError(w, r)
		return false
	}
	if _, err := cfg.GetExperimentByKey(key); err != nil {
		NotFoundError(w, r, ErrCodeUnknownExperiment, err.Error())
		return false
	}
	return true
}

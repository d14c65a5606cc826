package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/maps"

	"github.com/TimurManjosov/goexperiment/internal/sdk"
	"github.com/TimurManjosov/goexperiment/internal/validation"
)

type userDTO struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Segments   []string       `json:"segments,omitempty"`
}

func (u *userDTO) toUser() sdk.User {
	return sdk.User{UserID: u.ID, Attributes: u.Attributes, QualifiedSegments: u.Segments}
}

// validUser writes a validation error and returns false when u is unusable.
func validUser(w http.ResponseWriter, r *http.Request, u *userDTO) bool {
	if u == nil {
		ValidationError(w, r, "user is required", map[string]string{"user": "required"})
		return false
	}
	return valid(w, r, validation.ValidateUser(validation.UserParams{
		ID:         u.ID,
		Attributes: u.Attributes,
		Segments:   u.Segments,
	}))
}

// valid writes result as a validation error when it failed.
func valid(w http.ResponseWriter, r *http.Request, result *validation.ValidationResult) bool {
	if result.Valid {
		return true
	}
	ValidationError(w, r, result.Message(), result.Errors)
	return false
}

type decideRequest struct {
	User              *userDTO `json:"user"`
	Keys              []string `json:"keys,omitempty"`
	IncludeReasons    bool     `json:"includeReasons,omitempty"`
	IgnoreUserProfile bool     `json:"ignoreUserProfile,omitempty"`
}

type decideResponse struct {
	Decisions []sdk.Decision `json:"decisions"`
	Revision  string         `json:"revision"`
	ETag      string         `json:"etag"`
	DecidedAt string         `json:"decidedAt"`
}

// handleDecide handles POST /v1/decide. Without keys every flag is decided.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if !decodeJSON(w, r, &req) || !validUser(w, r, req.User) || !valid(w, r, validation.ValidateKeys(req.Keys)) {
		return
	}

	user := req.User.toUser()
	opts := sdk.DecideOptions{IncludeReasons: req.IncludeReasons, IgnoreUserProfileService: req.IgnoreUserProfile}
	snap := s.snapshots.Load()

	var decisions []sdk.Decision
	if len(req.Keys) == 0 {
		all, err := s.client.DecideAll(r.Context(), user, opts)
		if err != nil {
			decisionError(w, r, err)
			return
		}
		for _, k := range slices.Sorted(maps.Keys(all)) {
			decisions = append(decisions, all[k])
		}
	} else {
		for _, key := range req.Keys {
			d, err := s.client.Decide(r.Context(), strings.TrimSpace(key), user, opts)
			if err != nil {
				decisionError(w, r, err)
				return
			}
			decisions = append(decisions, d)
		}
	}
	if decisions == nil {
		decisions = []sdk.Decision{}
	}

	writeJSON(w, http.StatusOK, decideResponse{
		Decisions: decisions,
		Revision:  snap.Revision,
		ETag:      snap.ETag,
		DecidedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

type activateRequest struct {
	User *userDTO `json:"user"`
}

type variationResponse struct {
	ExperimentKey string `json:"experimentKey"`
	UserID        string `json:"userId"`
	VariationKey  string `json:"variationKey,omitempty"`
}

// handleActivate handles POST /v1/experiments/{key}/activate.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !decodeJSON(w, r, &req) || !validUser(w, r, req.User) {
		return
	}
	key := chi.URLParam(r, "key")

	variation, err := s.client.Activate(r.Context(), key, req.User.toUser())
	if err != nil {
		decisionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variationResponse{ExperimentKey: key, UserID: req.User.ID, VariationKey: variation})
}

// Package decision assigns users to variations and decides feature flags.
//
// Every decision is a pure function of the project config, the user, the
// forced variation map and the stored user profile. Absence of a decision is
// never an error: it is a nil variation accompanied by the reasons that led
// there.
package decision

import (
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goexperiment/internal/audience"
	"github.com/TimurManjosov/goexperiment/internal/bucketing"
	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/matchers"
	"github.com/TimurManjosov/goexperiment/internal/reasons"
	"github.com/TimurManjosov/goexperiment/internal/userprofile"
)

// BucketingIDAttribute overrides the user id as bucketing key when set to a
// string.
const BucketingIDAttribute = "$opt_bucketing_id"

// ProjectConfig is the read-only view of the datafile the service needs.
// *project.Config implements it.
type ProjectConfig interface {
	bucketing.GroupSource
	audience.Source
	GetExperimentByKey(key string) (*entities.Experiment, error)
	GetExperimentByID(id string) (*entities.Experiment, error)
	GetRolloutByID(id string) (*entities.Rollout, error)
	GetHoldoutsForFlag(flagID string) []*entities.Holdout
}

// UserContext identifies the user being decided for.
type UserContext struct {
	UserID     string
	Attributes map[string]any
	// QualifiedSegments are the data platform segments the user belongs to.
	QualifiedSegments []string
}

func (u UserContext) matcherUser() matchers.User {
	return matchers.User{Attributes: u.Attributes, QualifiedSegments: u.QualifiedSegments}
}

// Options tune a single decision.
type Options struct {
	// IgnoreUserProfileService skips both profile lookup and save.
	IgnoreUserProfileService bool
}

// ErrorHandler receives errors the service recovers from, such as a failing
// profile store.
type ErrorHandler interface {
	HandleError(err error)
}

type NoOpErrorHandler struct{}

func (NoOpErrorHandler) HandleError(error) {}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) HandleError(err error) { f(err) }

// Service makes decisions. It is safe for concurrent use.
type Service struct {
	logger       zerolog.Logger
	profiles     userprofile.Service
	errorHandler ErrorHandler
	forced       *forcedVariations
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithUserProfileService enables sticky bucketing.
func WithUserProfileService(p userprofile.Service) Option {
	return func(s *Service) { s.profiles = p }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Service) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// New returns a Service with an empty forced variation map.
func New(opts ...Option) *Service {
	s := &Service{
		logger:       zerolog.Nop(),
		errorHandler: NoOpErrorHandler{},
		forced:       newForcedVariations(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// addf records a reason and mirrors it to the debug log.
func (s *Service) addf(r *reasons.Reasons, format string, args ...any) {
	msg := r.Addf(format, args...)
	s.logger.Debug().Msg(msg)
}

// merge appends the reasons of a sub-decision and mirrors them to the debug
// log.
func (s *Service) merge(r *reasons.Reasons, sub reasons.Reasons) {
	for _, msg := range sub {
		s.logger.Debug().Msg(msg)
	}
	r.Merge(sub)
}

// GetBucketingID returns the bucketing key for user: the
// $opt_bucketing_id attribute when it is a string, otherwise the user id.
func (s *Service) GetBucketingID(user UserContext) reasons.Result[string] {
	var r reasons.Reasons
	raw, ok := user.Attributes[BucketingIDAttribute]
	if !ok || raw == nil {
		return reasons.NewResult(user.UserID, r)
	}
	id, isString := raw.(string)
	if !isString {
		s.addf(&r, "Bucketing ID attribute is not a string. Defaulted to user id %q.", user.UserID)
		return reasons.NewResult(user.UserID, r)
	}
	s.addf(&r, "Using bucketing ID %q for user %q.", id, user.UserID)
	return reasons.NewResult(id, r)
}

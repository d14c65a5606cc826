// Package sdk is the application-facing entry point: it pairs the current
// project config with a decision.Service, converts decisions into typed
// values, publishes notifications and counts decisions.
package sdk

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goexperiment/internal/decision"
	"github.com/TimurManjosov/goexperiment/internal/notification"
	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/userprofile"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoConfig         = errors.New("no project config available")
	ErrVariableNotFound = errors.New("feature variable not found")
	ErrVariableType     = errors.New("feature variable type mismatch")
)

// User is the identity and attributes a decision is made for.
type User = decision.UserContext

// ConfigSource yields the project config decisions run against. It may
// return nil before a datafile has been loaded.
type ConfigSource interface {
	ProjectConfig() *project.Config
}

// Static serves a fixed config.
type Static struct{ Config *project.Config }

func (s Static) ProjectConfig() *project.Config { return s.Config }

type Client struct {
	configs       ConfigSource
	decisions     *decision.Service
	notifications *notification.Center
	logger        zerolog.Logger
}

type options struct {
	logger        zerolog.Logger
	profiles      userprofile.Service
	errorHandler  decision.ErrorHandler
	notifications *notification.Center
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithUserProfileService enables sticky bucketing.
func WithUserProfileService(p userprofile.Service) Option {
	return func(o *options) { o.profiles = p }
}

func WithErrorHandler(h decision.ErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}

func WithNotificationCenter(c *notification.Center) Option {
	return func(o *options) { o.notifications = c }
}

func New(configs ConfigSource, opts ...Option) *Client {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifications == nil {
		o.notifications = notification.NewCenter(o.logger)
	}

	decisionOpts := []decision.Option{decision.WithLogger(o.logger)}
	if o.profiles != nil {
		decisionOpts = append(decisionOpts, decision.WithUserProfileService(o.profiles))
	}
	if o.errorHandler != nil {
		decisionOpts = append(decisionOpts, decision.WithErrorHandler(o.errorHandler))
	}

	return &Client{
		configs:       configs,
		decisions:     decision.New(decisionOpts...),
		notifications: o.notifications,
		logger:        o.logger,
	}
}

// Notifications returns the center decision events are published on.
func (c *Client) Notifications() *notification.Center { return c.notifications }

func (c *Client) config() (*project.Config, error) {
	if c.configs == nil {
		return nil, ErrNoConfig
	}
	cfg := c.configs.ProjectConfig()
	if cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg, nil
}

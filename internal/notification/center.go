// Package notification fans decision and config events out to listeners
// registered by the host application.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

type Type string

const (
	TypeDecision     Type = "decision"
	TypeActivate     Type = "activate"
	TypeConfigUpdate Type = "config-update"
)

// Decision types carried by TypeDecision events.
const (
	DecisionABTest          = "ab-test"
	DecisionFeature         = "feature"
	DecisionFeatureVariable = "feature-variable"
	DecisionFlag            = "flag"
)

// Event describes one notification. Fields that do not apply to Type are
// left zero.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Type          Type           `json:"type"`
	Time          time.Time      `json:"time"`
	UserID        string         `json:"userId,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	DecisionType  string         `json:"decisionType,omitempty"`
	FlagKey       string         `json:"flagKey,omitempty"`
	ExperimentKey string         `json:"experimentKey,omitempty"`
	VariationKey  string         `json:"variationKey,omitempty"`
	VariableKey   string         `json:"variableKey,omitempty"`
	Enabled       bool           `json:"enabled"`
	Source        string         `json:"source,omitempty"`
	Revision      string         `json:"revision,omitempty"`
	Reasons       []string       `json:"reasons,omitempty"`
}

type Listener func(Event)

// Center is a registry of listeners keyed by event type. Listeners run
// synchronously on the sending goroutine; a panicking listener is logged and
// does not affect the others.
type Center struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[Type]map[int]Listener
	logger    zerolog.Logger
}

func NewCenter(logger zerolog.Logger) *Center {
	return &Center{listeners: make(map[Type]map[int]Listener), logger: logger}
}

// AddListener registers l for events of type t and returns its id.
func (c *Center) AddListener(t Type, l Listener) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if c.listeners[t] == nil {
		c.listeners[t] = make(map[int]Listener)
	}
	c.listeners[t][c.nextID] = l
	return c.nextID
}

// RemoveListener unregisters the listener with id.
func (c *Center) RemoveListener(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ls := range c.listeners {
		if _, ok := ls[id]; ok {
			delete(ls, id)
			return true
		}
	}
	return false
}

func (c *Center) ClearListeners(t Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, t)
}

// Send delivers e to every listener of e.Type. A zero ID or Time is filled
// in before delivery.
func (c *Center) Send(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	c.mu.RLock()
	targets := make([]Listener, 0, len(c.listeners[e.Type]))
	for _, l := range c.listeners[e.Type] {
		targets = append(targets, l)
	}
	c.mu.RUnlock()

	for _, l := range targets {
		c.deliver(l, e)
	}
}

func (c *Center) deliver(l Listener, e Event) {
	var pc panics.Catcher
	pc.Try(func() { l(e) })
	if r := pc.Recovered(); r != nil {
		c.logger.Error().Interface("panic", r.Value).Str("stack", string(r.Stack)).
			Str("event_id", e.ID.String()).Str("type", string(e.Type)).
			Msg("notification listener panicked")
	}
}

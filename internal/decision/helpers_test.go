package decision

import (
	"context"
	"sync"
	"testing"

	"github.com/TimurManjosov/goexperiment/internal/entities"
	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/testutil"
)

func loadConfig(t *testing.T) *project.Config {
	t.Helper()
	cfg, err := project.NewConfig([]byte(testutil.Datafile))
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	return cfg
}

func experiment(t *testing.T, cfg *project.Config, key string) *entities.Experiment {
	t.Helper()
	exp, err := cfg.GetExperimentByKey(key)
	if err != nil {
		t.Fatalf("GetExperimentByKey(%q) error = %v", key, err)
	}
	return exp
}

func feature(t *testing.T, cfg *project.Config, key string) *entities.FeatureFlag {
	t.Helper()
	f, err := cfg.GetFeatureByKey(key)
	if err != nil {
		t.Fatalf("GetFeatureByKey(%q) error = %v", key, err)
	}
	return f
}

func variationKey(v *entities.Variation) string {
	if v == nil {
		return "<nil>"
	}
	return v.Key
}

// stubProfiles is a userprofile.Service returning canned results.
type stubProfiles struct {
	mu        sync.Mutex
	lookup    map[string]any
	lookupErr error
	saveErr   error
	saved     []map[string]any
	lookups   int
}

func (s *stubProfiles) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.lookup, s.lookupErr
}

func (s *stubProfiles) Save(ctx context.Context, profile map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, profile)
	return s.saveErr
}

// errorRecorder collects errors passed to the handler.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (e *errorRecorder) HandleError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errorRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

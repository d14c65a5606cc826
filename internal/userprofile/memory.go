package userprofile

import (
	"context"
	"sync"
)

// MemoryStore keeps profiles in process memory. It suits development,
// tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string // user id -> experiment id -> variation id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]map[string]string)}
}

// Lookup returns a copy of the stored profile, or nil when there is none.
func (m *MemoryStore) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	p := New(userID)
	for expID, variationID := range stored {
		p.SaveDecision(expID, variationID)
	}
	return p.ToMap(), nil
}

// Save merges the decisions of profile into the stored profile.
func (m *MemoryStore) Save(ctx context.Context, profile map[string]any) error {
	p, err := FromMap(profile)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.profiles[p.UserID]
	if !ok {
		stored = make(map[string]string, len(p.ExperimentBucketMap))
		m.profiles[p.UserID] = stored
	}
	for expID, d := range p.ExperimentBucketMap {
		stored[expID] = d.VariationID
	}
	return nil
}

// Remove deletes every stored decision of userID.
func (m *MemoryStore) Remove(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, userID)
	return nil
}

// Len returns the number of users with a stored profile.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

func (m *MemoryStore) Close() error {
	return nil
}

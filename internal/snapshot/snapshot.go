// Package snapshot holds the datafile currently served, swapped atomically
// on reload, and notifies subscribers of each new version.
package snapshot

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/telemetry"
)

type Snapshot struct {
	ETag        string          `json:"etag"`
	Revision    string          `json:"revision"`
	Experiments int             `json:"experiments"`
	Features    int             `json:"features"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Datafile    []byte          `json:"-"`
	Config      *project.Config `json:"-"`
}

// ETag returns the weak entity tag of a datafile body.
func ETag(data []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(data))
}

// Build parses data into a snapshot.
func Build(data []byte) (*Snapshot, error) {
	cfg, err := project.NewConfig(data)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Snapshot{
		ETag:        ETag(raw),
		Revision:    cfg.Revision,
		Experiments: len(cfg.Experiments()),
		Features:    len(cfg.FeatureKeys()),
		UpdatedAt:   time.Now().UTC(),
		Datafile:    raw,
		Config:      cfg,
	}, nil
}

// BuildFromFile reads and parses the datafile at path.
func BuildFromFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read datafile: %w", err)
	}
	return Build(data)
}

type subCh = chan string // carries new ETags

// Holder is the current snapshot plus its subscribers. The zero value is
// not usable; call NewHolder.
type Holder struct {
	current atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[subCh]struct{}
}

func NewHolder() *Holder {
	return &Holder{subs: make(map[subCh]struct{})}
}

// Load returns the current snapshot, or an empty one before the first Update.
func (h *Holder) Load() *Snapshot {
	if s := h.current.Load(); s != nil {
		return s
	}
	return &Snapshot{UpdatedAt: time.Now().UTC()}
}

// ProjectConfig returns the current config, nil before the first Update.
func (h *Holder) ProjectConfig() *project.Config {
	if s := h.current.Load(); s != nil {
		return s.Config
	}
	return nil
}

// Update swaps in s and notifies subscribers.
func (h *Holder) Update(s *Snapshot) {
	h.current.Store(s)
	telemetry.SnapshotExperiments.Set(float64(s.Experiments))
	telemetry.SnapshotFeatures.Set(float64(s.Features))
	h.publish(s.ETag)
}

package facility

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/model"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu         sync.RWMutex
	facilities map[string]model.Facility
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{facilities: make(map[string]model.Facility)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.facilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *MemoryStore) ListPending(_ context.Context, jobType model.JobType, sel Selector, limit int, exclude map[string]bool) ([]model.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[model.FacilityStatus]bool)
	if sel.Mode != ModeIDs {
		statuses := pendingStatuses(jobType, sel.Mode)
		if len(statuses) == 0 {
			return nil, eris.Errorf("facility: unknown job type %q", jobType)
		}
		for _, st := range statuses {
			wanted[st] = true
		}
	}

	var out []model.Facility
	if sel.Mode == ModeIDs {
		for _, id := range sel.IDs {
			if exclude[id] {
				continue
			}
			if f, ok := m.facilities[id]; ok {
				out = append(out, f)
			}
		}
	} else {
		for _, f := range m.facilities {
			if exclude[f.ID] || !wanted[f.Status] {
				continue
			}
			out = append(out, f)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, f *model.Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Status == "" {
		f.Status = model.StatusIdle
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	m.facilities[f.ID] = *f
	return nil
}

func (m *MemoryStore) UpdateEnrichment(_ context.Context, f *model.Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.facilities[f.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Website = f.Website
	cur.WebsiteSource = f.WebsiteSource
	cur.WebsiteScore = f.WebsiteScore
	cur.Email = f.Email
	cur.EmailSource = f.EmailSource
	cur.Status = f.Status
	cur.UpdatedAt = time.Now().UTC()
	m.facilities[f.ID] = cur
	return nil
}

func (m *MemoryStore) Close() error { return nil }

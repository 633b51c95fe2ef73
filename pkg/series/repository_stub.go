package series

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schedr/schedr/pkg/override"
)

// RepositoryStub is an in-memory Repository for tests.
type RepositoryStub struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]Series
	userIds map[uuid.UUID]int

	// Overrides, when set, lets ListForWindow see occurrences moved into the
	// window the way the SQL query does.
	Overrides override.Repository
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:   make(map[uuid.UUID]Series),
		userIds: make(map[uuid.UUID]int),
	}
}

func (r *RepositoryStub) Store(ctx context.Context, userId int, s Series) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	s.ID = id
	r.items[id] = s
	r.userIds[id] = userId
	return id, nil
}

func (r *RepositoryStub) Get(ctx context.Context, userId int, id uuid.UUID) (Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[id]
	if !ok || r.userIds[id] != userId {
		return Series{}, ErrSeriesNotFound
	}
	return s, nil
}

func (r *RepositoryStub) List(ctx context.Context, userId int) ([]Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Series
	for id, s := range r.items {
		if r.userIds[id] == userId {
			result = append(result, s)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *RepositoryStub) ListForWindow(ctx context.Context, userId int, from, to time.Time) ([]Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Series
	for id, s := range r.items {
		if r.userIds[id] != userId {
			continue
		}
		if s.IsRecurring || (!s.Start.After(to) && !s.End.Before(from)) || r.overrideInWindow(ctx, id, from, to) {
			result = append(result, s)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *RepositoryStub) overrideInWindow(ctx context.Context, id uuid.UUID, from, to time.Time) bool {
	if r.Overrides == nil {
		return false
	}
	ovs, err := r.Overrides.ListForRange(ctx, id, from, to)
	if err != nil {
		return false
	}
	for _, o := range ovs {
		if o.Kind == override.KindModified && !o.Start.After(to) && !o.End.Before(from) {
			return true
		}
	}
	return false
}

func (r *RepositoryStub) Update(ctx context.Context, userId int, s Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[s.ID]; !ok || r.userIds[s.ID] != userId {
		return ErrSeriesNotFound
	}
	r.items[s.ID] = s
	return nil
}

func (r *RepositoryStub) Delete(ctx context.Context, userId int, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok || r.userIds[id] != userId {
		return ErrSeriesNotFound
	}
	delete(r.items, id)
	delete(r.userIds, id)
	return nil
}

func sortByStart(items []Series) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Start.Equal(items[j].Start) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].Start.Before(items[j].Start)
	})
}

package override

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type key struct {
	seriesID uuid.UUID
	start    int64
}

// RepositoryStub is an in-memory Repository for tests.
type RepositoryStub struct {
	mu    sync.RWMutex
	items map[key]Override
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{items: make(map[key]Override)}
}

func (r *RepositoryStub) Upsert(ctx context.Context, o Override) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key{o.SeriesID, o.OriginalStart.UnixNano()}] = o
	return nil
}

func (r *RepositoryStub) Cancel(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error {
	return r.Upsert(ctx, Override{
		SeriesID:      seriesID,
		OriginalStart: originalStart,
		Kind:          KindCancelled,
	})
}

func (r *RepositoryStub) Get(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) (Override, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.items[key{seriesID, originalStart.UnixNano()}]
	if !ok {
		return Override{}, ErrOverrideNotFound
	}
	return o, nil
}

func (r *RepositoryStub) ListForRange(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]Override, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inRange := func(t time.Time) bool {
		return !t.Before(from) && !t.After(to)
	}

	var result []Override
	for _, o := range r.items {
		if o.SeriesID != seriesID {
			continue
		}
		if inRange(o.EffectiveStart()) || inRange(o.OriginalStart) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OriginalStart.Before(result[j].OriginalStart)
	})
	return result, nil
}

func (r *RepositoryStub) Remove(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{seriesID, originalStart.UnixNano()}
	if _, ok := r.items[k]; !ok {
		return ErrOverrideNotFound
	}
	delete(r.items, k)
	return nil
}

func (r *RepositoryStub) RemoveAllForSeries(ctx context.Context, seriesID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.items {
		if k.seriesID == seriesID {
			delete(r.items, k)
		}
	}
	return nil
}

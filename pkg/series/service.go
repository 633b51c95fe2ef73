package series

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schedr/schedr/internal/event_bus"
	"github.com/schedr/schedr/internal/utils"
	"github.com/schedr/schedr/pkg/override"
	"github.com/schedr/schedr/pkg/recurrence"
	"github.com/schedr/schedr/pkg/user"
	log "github.com/sirupsen/logrus"
)

// OccurrencePatch carries the fields of a single-occurrence edit. Nil fields
// keep the value the generated occurrence would have had.
type OccurrencePatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// Service owns all writes to series and their overrides. Writes are
// serialized per series id so a series-wide edit and a concurrent
// single-occurrence override cannot interleave; reads stay lock-free.
type Service struct {
	repo      Repository
	overrides override.Repository
	locks     *utils.KeyedMutex
	bus       *event_bus.EventBus
}

func NewService(repo Repository, overrides override.Repository, bus *event_bus.EventBus) *Service {
	return &Service{
		repo:      repo,
		overrides: overrides,
		locks:     utils.NewKeyedMutex(),
		bus:       bus,
	}
}

func (s *Service) Create(ctx context.Context, def Series) (Series, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Series{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Series{}, err
	}

	id, err := s.repo.Store(ctx, userId, def)
	if err != nil {
		return Series{}, fmt.Errorf("failed to store series: %w", err)
	}
	def.ID = id

	s.publish(ctx, event_bus.SeriesCreated, def)
	return def, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Series, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Series{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, userId, id)
}

func (s *Service) List(ctx context.Context) ([]Series, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, userId)
}

// Update replaces the series definition (rule and anchor included). Existing
// overrides are left untouched; ones the new rule no longer generates become
// inert instead of being destroyed.
func (s *Service) Update(ctx context.Context, def Series) (Series, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Series{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Series{}, err
	}

	s.locks.Lock(def.ID.String())
	defer s.locks.Unlock(def.ID.String())

	if err := s.repo.Update(ctx, userId, def); err != nil {
		return Series{}, err
	}

	s.publish(ctx, event_bus.SeriesUpdated, def)
	return def, nil
}

// Delete removes the series and all its overrides.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	def, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return err
	}
	if err := s.overrides.RemoveAllForSeries(ctx, id); err != nil {
		return fmt.Errorf("failed to remove overrides of series: %w", err)
	}
	if err := s.repo.Delete(ctx, userId, id); err != nil {
		return err
	}

	s.publish(ctx, event_bus.SeriesDeleted, def)
	return nil
}

// OverrideOccurrence records a modification of the occurrence identified by
// its original start instant. The instant must be one the series actually
// generates; absent patch fields fall back to the generated defaults.
func (s *Service) OverrideOccurrence(ctx context.Context, id uuid.UUID, originalStart time.Time, patch OccurrencePatch) (override.Override, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return override.Override{}, fmt.Errorf("failed to get current user: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	def, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return override.Override{}, err
	}
	if !recurrence.Occurs(def.Anchor(), def.Rule, originalStart) {
		return override.Override{}, ErrOccurrenceNotFound
	}

	o := override.Override{
		SeriesID:      id,
		OriginalStart: originalStart,
		Kind:          override.KindModified,
		Title:         def.Title,
		Description:   def.Description,
		Start:         originalStart,
		End:           originalStart.Add(def.End.Sub(def.Start)),
	}
	if patch.Title != nil {
		o.Title = *patch.Title
	}
	if patch.Description != nil {
		o.Description = *patch.Description
	}
	if patch.Start != nil {
		o.Start = *patch.Start
		// A moved start keeps the occurrence's duration unless the patch
		// sets an end of its own.
		o.End = o.Start.Add(def.End.Sub(def.Start))
	}
	if patch.End != nil {
		o.End = *patch.End
	}
	if !o.End.After(o.Start) {
		return override.Override{}, fmt.Errorf("%w: occurrence end must be after start", ErrInvalidSeries)
	}

	if err := s.overrides.Upsert(ctx, o); err != nil {
		return override.Override{}, fmt.Errorf("failed to store occurrence override: %w", err)
	}

	s.publishOccurrence(ctx, event_bus.OccurrenceModified, id, originalStart)
	return o, nil
}

// CancelOccurrence suppresses one occurrence of a recurring series.
func (s *Service) CancelOccurrence(ctx context.Context, id uuid.UUID, originalStart time.Time) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	def, err := s.repo.Get(ctx, userId, id)
	if err != nil {
		return err
	}
	if !def.IsRecurring {
		return ErrNotRecurring
	}
	if !recurrence.Occurs(def.Anchor(), def.Rule, originalStart) {
		return ErrOccurrenceNotFound
	}

	if err := s.overrides.Cancel(ctx, id, originalStart); err != nil {
		return fmt.Errorf("failed to cancel occurrence: %w", err)
	}

	s.publishOccurrence(ctx, event_bus.OccurrenceCancelled, id, originalStart)
	return nil
}

// RestoreOccurrence removes an override, reverting the occurrence to its
// generated form.
func (s *Service) RestoreOccurrence(ctx context.Context, id uuid.UUID, originalStart time.Time) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	if _, err := s.repo.Get(ctx, userId, id); err != nil {
		return err
	}
	return s.overrides.Remove(ctx, id, originalStart)
}

func (s *Service) publish(ctx context.Context, eventType event_bus.EventType, def Series) {
	err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, event_bus.SeriesChange{
		SeriesID:    def.ID.String(),
		Title:       def.Title,
		Start:       def.Start,
		End:         def.End,
		IsRecurring: def.IsRecurring,
	}))
	if err != nil {
		log.Warnf("failed to publish %s event: %v", eventType, err)
	}
}

func (s *Service) publishOccurrence(ctx context.Context, eventType event_bus.EventType, id uuid.UUID, originalStart time.Time) {
	err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, event_bus.OccurrenceChange{
		SeriesID:      id.String(),
		OriginalStart: originalStart,
	}))
	if err != nil {
		log.Warnf("failed to publish %s event: %v", eventType, err)
	}
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/schedr/schedr/internal/config"
	"github.com/schedr/schedr/pkg/override"
	"github.com/schedr/schedr/pkg/recurrence"
	"github.com/schedr/schedr/pkg/series"
	"github.com/schedr/schedr/pkg/user"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidRange  = errors.New("range end must be after range start")
	ErrRangeTooLarge = errors.New("requested range exceeds the maximum window")
)

// CalendarEvent is one concrete occurrence as it should be displayed:
// the generated slot with any single-occurrence override already applied.
type CalendarEvent struct {
	SeriesID    uuid.UUID
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	IsRecurring bool
	// OriginalStart identifies the occurrence within its series and stays
	// stable when an override moves the occurrence to another time.
	OriginalStart time.Time
	Overridden    bool
}

// Materializer turns stored series definitions and overrides into the
// concrete occurrences of a time window. It never persists what it
// generates; every query recomputes from the definitions.
type Materializer struct {
	series    series.Repository
	overrides override.Repository
	cfg       config.Calendar
}

func NewMaterializer(seriesRepo series.Repository, overrides override.Repository, cfg config.Calendar) *Materializer {
	return &Materializer{
		series:    seriesRepo,
		overrides: overrides,
		cfg:       cfg,
	}
}

// Materialize returns every occurrence of the current user intersecting
// [from, to], both bounds inclusive. Windows larger than the configured
// maximum are rejected outright.
func (m *Materializer) Materialize(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	if to.Sub(from) > time.Duration(m.cfg.MaxWindowDays)*24*time.Hour {
		return nil, fmt.Errorf("%w: %d days allowed", ErrRangeTooLarge, m.cfg.MaxWindowDays)
	}

	candidates, err := m.series.ListForWindow(ctx, userId, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list series for window: %w", err)
	}

	events := make([]CalendarEvent, 0, len(candidates))
	for _, s := range candidates {
		occurrences, err := m.materializeSeries(ctx, s, from, to)
		if err != nil {
			return nil, err
		}
		events = append(events, occurrences...)
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.SeriesID != b.SeriesID {
			return a.SeriesID.String() < b.SeriesID.String()
		}
		return a.OriginalStart.Before(b.OriginalStart)
	})
	log.Tracef("materialized %d occurrences from %d series", len(events), len(candidates))
	return events, nil
}

func (m *Materializer) materializeSeries(ctx context.Context, s series.Series, from, to time.Time) ([]CalendarEvent, error) {
	overrides, err := m.overrides.ListForRange(ctx, s.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides of series %s: %w", s.ID, err)
	}
	byOriginal := make(map[int64]override.Override, len(overrides))
	for _, o := range overrides {
		byOriginal[o.OriginalStart.UnixNano()] = o
	}

	anchor := s.Anchor()
	var events []CalendarEvent

	// overridden occurrences are emitted from their overrides so that a
	// moved occurrence shows up at its new time, including moves into the
	// window from outside it
	for _, o := range overrides {
		if o.Kind != override.KindModified {
			continue
		}
		if !recurrence.Occurs(anchor, s.Rule, o.OriginalStart) {
			// the rule changed since this override was written; it no
			// longer refers to a generated occurrence
			continue
		}
		if o.End.Before(from) || o.Start.After(to) {
			continue
		}
		events = append(events, CalendarEvent{
			SeriesID:      s.ID,
			Title:         o.Title,
			Description:   o.Description,
			Start:         o.Start,
			End:           o.End,
			IsRecurring:   s.IsRecurring,
			OriginalStart: o.OriginalStart,
			Overridden:    true,
		})
	}

	for _, occ := range recurrence.Expand(anchor, s.Rule, from, to) {
		if _, ok := byOriginal[occ.Start.UnixNano()]; ok {
			// cancelled, or already emitted from its override
			continue
		}
		events = append(events, CalendarEvent{
			SeriesID:      s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Start:         occ.Start,
			End:           occ.End,
			IsRecurring:   s.IsRecurring,
			OriginalStart: occ.Start,
		})
	}
	return events, nil
}

// Upcoming returns the next occurrences from the given instant, looking
// the configured number of days ahead and capped at the configured limit.
func (m *Materializer) Upcoming(ctx context.Context, now time.Time) ([]CalendarEvent, error) {
	events, err := m.Materialize(ctx, now, now.AddDate(0, 0, m.cfg.UpcomingDays))
	if err != nil {
		return nil, err
	}
	if len(events) > m.cfg.UpcomingLimit {
		events = events[:m.cfg.UpcomingLimit]
	}
	return events, nil
}

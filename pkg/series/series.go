package series

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/schedr/schedr/pkg/recurrence"
)

var (
	ErrSeriesNotFound     = errors.New("series not found")
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrNotRecurring       = errors.New("series is not recurring")
	ErrInvalidSeries      = errors.New("invalid series")
)

// Series is a recurring (or singular) event definition. Start and End form
// the anchor occurrence; every other occurrence derives from them and shares
// their duration unless overridden.
type Series struct {
	ID          uuid.UUID
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	// Timezone is the IANA zone recurrence stepping is computed in, so the
	// local clock time of occurrences survives DST transitions. Empty means
	// UTC.
	Timezone    string
	IsRecurring bool
	// Rule is present iff IsRecurring.
	Rule *recurrence.Rule
}

// Location resolves the series' stepping zone, falling back to UTC for an
// empty or unknown zone name.
func (s Series) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Anchor returns the series anchor localized into the stepping zone.
func (s Series) Anchor() recurrence.Anchor {
	loc := s.Location()
	return recurrence.Anchor{Start: s.Start.In(loc), End: s.End.In(loc)}
}

// Validate checks the structural invariants of a series definition.
func (s Series) Validate() error {
	if s.Title == "" {
		return errors.Join(ErrInvalidSeries, errors.New("title is required"))
	}
	if !s.End.After(s.Start) {
		return errors.Join(ErrInvalidSeries, errors.New("end time must be after start time"))
	}
	if s.IsRecurring && s.Rule == nil {
		return errors.Join(ErrInvalidSeries, errors.New("recurrence rule required for recurring series"))
	}
	if !s.IsRecurring && s.Rule != nil {
		return errors.Join(ErrInvalidSeries, errors.New("recurrence rule set on non-recurring series"))
	}
	if s.Rule != nil {
		if err := s.Rule.Validate(); err != nil {
			return err
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return errors.Join(ErrInvalidSeries, errors.New("unknown timezone: "+s.Timezone))
		}
	}
	return nil
}

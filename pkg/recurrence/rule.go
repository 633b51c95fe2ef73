package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// MonthPosition selects a weekday relative to the month, e.g. the second
// Tuesday (Ordinal 2) or the last Friday (Ordinal -1).
type MonthPosition struct {
	Ordinal int // 1..4, or -1 for the last one
	Weekday time.Weekday
}

// Rule describes how a series repeats. Use the per-frequency constructors;
// they make invalid field combinations unrepresentable, and Validate covers
// rules decoded from storage or the wire.
type Rule struct {
	Frequency Frequency
	// Interval is the step between occurrences in units of Frequency.
	Interval int
	// ByWeekday applies to weekly rules only. Empty means the anchor's
	// weekday.
	ByWeekday []time.Weekday
	// ByMonthPosition applies to monthly rules only. When absent, the
	// anchor's day of month is used (clamped to shorter months).
	ByMonthPosition *MonthPosition
	// Until and Count end the series; at most one may be set. Both absent
	// means the series is unbounded forward.
	Until *time.Time
	Count *int
}

// NewDaily repeats every interval days.
func NewDaily(interval int) (Rule, error) {
	r := Rule{Frequency: Daily, Interval: interval}
	return r, r.Validate()
}

// NewWeekly repeats every interval weeks on the given weekdays. With no
// weekdays the anchor's weekday is used.
func NewWeekly(interval int, days ...time.Weekday) (Rule, error) {
	set := slices.Clone(days)
	slices.Sort(set)
	set = slices.Compact(set)
	r := Rule{Frequency: Weekly, Interval: interval, ByWeekday: set}
	return r, r.Validate()
}

// NewMonthly repeats every interval months on the anchor's day of month,
// clamped to the last day of shorter months.
func NewMonthly(interval int) (Rule, error) {
	r := Rule{Frequency: Monthly, Interval: interval}
	return r, r.Validate()
}

// NewMonthlyByPosition repeats every interval months on the ordinal-th
// weekday of the month (-1 for the last).
func NewMonthlyByPosition(interval int, ordinal int, weekday time.Weekday) (Rule, error) {
	r := Rule{
		Frequency:       Monthly,
		Interval:        interval,
		ByMonthPosition: &MonthPosition{Ordinal: ordinal, Weekday: weekday},
	}
	return r, r.Validate()
}

// NewYearly repeats every interval years on the anchor's month and day, with
// Feb 29 falling back to Feb 28 outside leap years.
func NewYearly(interval int) (Rule, error) {
	r := Rule{Frequency: Yearly, Interval: interval}
	return r, r.Validate()
}

// WithUntil returns a copy of the rule ending at the given instant. No
// occurrence starts after it.
func (r Rule) WithUntil(until time.Time) (Rule, error) {
	u := until
	r.Until = &u
	return r, r.Validate()
}

// WithCount returns a copy of the rule limited to count occurrences in the
// whole series.
func (r Rule) WithCount(count int) (Rule, error) {
	c := count
	r.Count = &c
	return r, r.Validate()
}

// Validate checks interval and count positivity, field/frequency
// compatibility, and until/count mutual exclusion.
func (r Rule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidRule, r.Interval)
	}
	if len(r.ByWeekday) > 0 && r.Frequency != Weekly {
		return fmt.Errorf("%w: weekday set is only valid for weekly rules", ErrInvalidRule)
	}
	for _, d := range r.ByWeekday {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: weekday out of range: %d", ErrInvalidRule, d)
		}
	}
	if r.ByMonthPosition != nil {
		if r.Frequency != Monthly {
			return fmt.Errorf("%w: month position is only valid for monthly rules", ErrInvalidRule)
		}
		p := r.ByMonthPosition
		if p.Ordinal != -1 && (p.Ordinal < 1 || p.Ordinal > 4) {
			return fmt.Errorf("%w: month position ordinal must be 1..4 or -1, got %d", ErrInvalidRule, p.Ordinal)
		}
		if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
			return fmt.Errorf("%w: month position weekday out of range: %d", ErrInvalidRule, p.Weekday)
		}
	}
	if r.Until != nil && r.Count != nil {
		return fmt.Errorf("%w: until and count are mutually exclusive", ErrInvalidRule)
	}
	if r.Count != nil && *r.Count < 1 {
		return fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidRule, *r.Count)
	}
	return nil
}

package recurrence

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Anchor is the first occurrence of a series; every other occurrence is
// derived from it. All stepping happens in Anchor.Start's location, so a
// series anchored at 09:00 local time stays at 09:00 across DST changes.
type Anchor struct {
	Start time.Time
	End   time.Time
}

// RawOccurrence is one generated instance before overrides are applied. End
// is always Start plus the anchor duration.
type RawOccurrence struct {
	Start time.Time
	End   time.Time
}

// maxGenerated caps a single expansion as a safety bound; window size limits
// enforced by callers keep real queries far below it.
const maxGenerated = 10000

// Expand generates the raw occurrences of a series whose start falls inside
// [from, to], ordered ascending. Each call re-derives from the anchor, so the
// result is independent of any prior call. A nil rule means the series does
// not recur: its anchor is returned iff it intersects the window.
//
// Occurrence counting for rules with a Count bound is anchored to the full
// series, not the window: the generator skips ahead analytically where the
// ordinal of a candidate is pure arithmetic (daily, yearly, plain monthly,
// weekly on the anchor's weekday) and falls back to stepping from the anchor
// with ordinal bookkeeping for weekday sets and month positions.
func Expand(anchor Anchor, rule *Rule, from, to time.Time) []RawOccurrence {
	if to.Before(from) {
		return nil
	}

	if rule == nil {
		if !anchor.End.Before(from) && !anchor.Start.After(to) {
			return []RawOccurrence{{Start: anchor.Start, End: anchor.End}}
		}
		return nil
	}

	duration := anchor.End.Sub(anchor.Start)

	switch rule.Frequency {
	case Daily:
		return expandByDays(anchor, duration, rule, rule.Interval, from, to)
	case Weekly:
		if weeklyOnAnchorWeekday(anchor, rule) {
			return expandByDays(anchor, duration, rule, 7*rule.Interval, from, to)
		}
		return expandWeekly(anchor, duration, rule, from, to)
	case Monthly:
		if rule.ByMonthPosition != nil {
			return expandMonthlyByPosition(anchor, duration, rule, from, to)
		}
		return expandByMonths(anchor, duration, rule, rule.Interval, from, to)
	case Yearly:
		return expandByMonths(anchor, duration, rule, 12*rule.Interval, from, to)
	}
	return nil
}

// Occurs reports whether instant is a raw occurrence start of the series.
// Used to tell live overrides apart from inert ones.
func Occurs(anchor Anchor, rule *Rule, instant time.Time) bool {
	if rule == nil {
		return anchor.Start.Equal(instant)
	}
	for _, occ := range Expand(anchor, rule, instant, instant) {
		if occ.Start.Equal(instant) {
			return true
		}
	}
	return false
}

func weeklyOnAnchorWeekday(anchor Anchor, rule *Rule) bool {
	if len(rule.ByWeekday) == 0 {
		return true
	}
	loc := anchor.Start.Location()
	return len(rule.ByWeekday) == 1 && rule.ByWeekday[0] == anchor.Start.In(loc).Weekday()
}

// expandByDays handles the frequencies whose candidates are one per block at
// a fixed day stride: candidate k is the anchor's civil date plus k*stepDays
// at the anchor's time of day, and its ordinal is k+1.
func expandByDays(anchor Anchor, duration time.Duration, rule *Rule, stepDays int, from, to time.Time) []RawOccurrence {
	loc := anchor.Start.Location()
	start := anchor.Start.In(loc)
	y, m, d := start.Date()
	hh, mm, ss := start.Clock()
	ns := start.Nanosecond()

	candidate := func(k int) time.Time {
		return time.Date(y, m, d+k*stepDays, hh, mm, ss, ns, loc)
	}

	// Analytic skip-ahead to the first candidate >= from, then a short walk
	// to correct for DST-length days.
	k := int(from.Sub(anchor.Start).Hours()/24)/stepDays - 2
	if k < 0 {
		k = 0
	}
	for k > 0 && !candidate(k-1).Before(from) {
		k--
	}
	for candidate(k).Before(from) {
		k++
	}

	var out []RawOccurrence
	for ; ; k++ {
		if rule.Count != nil && k+1 > *rule.Count {
			break
		}
		c := candidate(k)
		if rule.Until != nil && c.After(*rule.Until) {
			break
		}
		if c.After(to) {
			break
		}
		out = append(out, RawOccurrence{Start: c, End: c.Add(duration)})
		if len(out) >= maxGenerated {
			log.Warnf("recurrence: expansion capped at %d occurrences", maxGenerated)
			break
		}
	}
	return out
}

// expandByMonths covers plain monthly rules (stepMonths = interval) and
// yearly rules (stepMonths = 12*interval). The anchor's day of month is
// clamped to the target month's last day, which also turns Feb 29 anchors
// into Feb 28 outside leap years.
func expandByMonths(anchor Anchor, duration time.Duration, rule *Rule, stepMonths int, from, to time.Time) []RawOccurrence {
	loc := anchor.Start.Location()
	start := anchor.Start.In(loc)
	ay, am, ad := start.Date()
	hh, mm, ss := start.Clock()
	ns := start.Nanosecond()

	monthIndex := ay*12 + int(am) - 1

	candidate := func(k int) time.Time {
		idx := monthIndex + k*stepMonths
		y, mo := idx/12, time.Month(idx%12+1)
		day := ad
		if last := daysInMonth(y, mo); day > last {
			day = last
		}
		return time.Date(y, mo, day, hh, mm, ss, ns, loc)
	}

	fy, fm, _ := from.In(loc).Date()
	k := ((fy*12+int(fm)-1)-monthIndex)/stepMonths - 2
	if k < 0 {
		k = 0
	}
	for k > 0 && !candidate(k-1).Before(from) {
		k--
	}
	for candidate(k).Before(from) {
		k++
	}

	var out []RawOccurrence
	for ; ; k++ {
		if rule.Count != nil && k+1 > *rule.Count {
			break
		}
		c := candidate(k)
		if rule.Until != nil && c.After(*rule.Until) {
			break
		}
		if c.After(to) {
			break
		}
		out = append(out, RawOccurrence{Start: c, End: c.Add(duration)})
		if len(out) >= maxGenerated {
			log.Warnf("recurrence: expansion capped at %d occurrences", maxGenerated)
			break
		}
	}
	return out
}

// expandWeekly steps week blocks from the anchor's week (weeks start on
// Sunday, matching the weekday numbering) and emits one candidate per
// weekday in the set. Ordinals cannot be derived arithmetically here, so it
// walks from the anchor keeping count.
func expandWeekly(anchor Anchor, duration time.Duration, rule *Rule, from, to time.Time) []RawOccurrence {
	loc := anchor.Start.Location()
	start := anchor.Start.In(loc)
	y, m, d := start.Date()
	hh, mm, ss := start.Clock()
	ns := start.Nanosecond()

	// Civil date of the Sunday on or before the anchor.
	weekStartDay := d - int(start.Weekday())

	var out []RawOccurrence
	ordinal := 0
	for block := 0; ; block++ {
		base := weekStartDay + block*rule.Interval*7
		for _, wd := range rule.ByWeekday {
			c := time.Date(y, m, base+int(wd), hh, mm, ss, ns, loc)
			if c.Before(anchor.Start) {
				continue
			}
			ordinal++
			if rule.Count != nil && ordinal > *rule.Count {
				return out
			}
			if rule.Until != nil && c.After(*rule.Until) {
				return out
			}
			if c.After(to) {
				return out
			}
			if !c.Before(from) {
				out = append(out, RawOccurrence{Start: c, End: c.Add(duration)})
				if len(out) >= maxGenerated {
					log.Warnf("recurrence: expansion capped at %d occurrences", maxGenerated)
					return out
				}
			}
		}
	}
}

// expandMonthlyByPosition resolves the Nth (or last) weekday of each month
// block. Like expandWeekly it has no closed form for ordinals and walks from
// the anchor.
func expandMonthlyByPosition(anchor Anchor, duration time.Duration, rule *Rule, from, to time.Time) []RawOccurrence {
	loc := anchor.Start.Location()
	start := anchor.Start.In(loc)
	ay, am, _ := start.Date()
	hh, mm, ss := start.Clock()
	ns := start.Nanosecond()

	monthIndex := ay*12 + int(am) - 1
	pos := *rule.ByMonthPosition

	var out []RawOccurrence
	ordinal := 0
	for block := 0; ; block++ {
		idx := monthIndex + block*rule.Interval
		y, mo := idx/12, time.Month(idx%12+1)
		c := time.Date(y, mo, monthPositionDay(y, mo, pos), hh, mm, ss, ns, loc)
		if c.Before(anchor.Start) {
			continue
		}
		ordinal++
		if rule.Count != nil && ordinal > *rule.Count {
			return out
		}
		if rule.Until != nil && c.After(*rule.Until) {
			return out
		}
		if c.After(to) {
			return out
		}
		if !c.Before(from) {
			out = append(out, RawOccurrence{Start: c, End: c.Add(duration)})
			if len(out) >= maxGenerated {
				log.Warnf("recurrence: expansion capped at %d occurrences", maxGenerated)
				return out
			}
		}
	}
}

// monthPositionDay returns the day of month of the pos.Ordinal-th pos.Weekday
// in the given month. Ordinals 1..4 and -1 always resolve to an existing day.
func monthPositionDay(y int, m time.Month, pos MonthPosition) int {
	if pos.Ordinal > 0 {
		firstWd := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).Weekday()
		offset := (int(pos.Weekday) - int(firstWd) + 7) % 7
		return 1 + offset + (pos.Ordinal-1)*7
	}
	last := daysInMonth(y, m)
	lastWd := time.Date(y, m, last, 0, 0, 0, 0, time.UTC).Weekday()
	return last - (int(lastWd)-int(pos.Weekday)+7)%7
}

func daysInMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

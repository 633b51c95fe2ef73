package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Rules are persisted and exposed over the API as RRULE strings
// (FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;COUNT=10). Only the subset the rule
// model can express is supported; weekday numbering on the wire follows
// RFC 5545 two-letter codes.

const untilLayout = "20060102T150405Z"

var freqNames = map[Frequency]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqByName = map[string]Frequency{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func weekdayFromCode(code string) (time.Weekday, bool) {
	for i, c := range weekdayCodes {
		if c == code {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// FormatRRule renders the rule in its wire form, without the "RRULE:" prefix.
func FormatRRule(r Rule) string {
	parts := []string{
		"FREQ=" + freqNames[r.Frequency],
		"INTERVAL=" + strconv.Itoa(r.Interval),
	}

	if len(r.ByWeekday) > 0 {
		codes := make([]string, 0, len(r.ByWeekday))
		for _, d := range r.ByWeekday {
			codes = append(codes, weekdayCodes[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if p := r.ByMonthPosition; p != nil {
		parts = append(parts,
			"BYDAY="+weekdayCodes[p.Weekday],
			"BYSETPOS="+strconv.Itoa(p.Ordinal),
		)
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	}
	if r.Count != nil {
		parts = append(parts, "COUNT="+strconv.Itoa(*r.Count))
	}

	return strings.Join(parts, ";")
}

// ParseRRule parses the wire form back into a Rule. An optional "RRULE:"
// prefix is accepted since older rows were stored with it.
func ParseRRule(s string) (Rule, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty rrule", ErrInvalidRule)
	}

	var (
		freq     Frequency
		interval = 1
		byday    []string
		bysetpos *int
		until    *time.Time
		count    *int
	)

	for _, part := range strings.Split(s, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return Rule{}, fmt.Errorf("%w: malformed rrule part %q", ErrInvalidRule, part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			f, ok := freqByName[strings.ToUpper(value)]
			if !ok {
				return Rule{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, value)
			}
			freq = f
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: bad interval %q", ErrInvalidRule, value)
			}
			interval = n
		case "BYDAY":
			byday = strings.Split(strings.ToUpper(value), ",")
		case "BYSETPOS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: bad bysetpos %q", ErrInvalidRule, value)
			}
			bysetpos = &n
		case "UNTIL":
			t, err := time.Parse(untilLayout, value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: bad until %q", ErrInvalidRule, value)
			}
			until = &t
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: bad count %q", ErrInvalidRule, value)
			}
			count = &n
		default:
			return Rule{}, fmt.Errorf("%w: unsupported rrule part %q", ErrInvalidRule, key)
		}
	}

	r := Rule{Frequency: freq, Interval: interval, Until: until, Count: count}

	switch {
	case len(byday) > 0 && freq == Weekly:
		if bysetpos != nil {
			return Rule{}, fmt.Errorf("%w: bysetpos is not valid for weekly rules", ErrInvalidRule)
		}
		for _, code := range byday {
			d, ok := weekdayFromCode(code)
			if !ok {
				return Rule{}, fmt.Errorf("%w: unknown weekday code %q", ErrInvalidRule, code)
			}
			r.ByWeekday = append(r.ByWeekday, d)
		}
		// Generation assumes an ordered set.
		slices.Sort(r.ByWeekday)
		r.ByWeekday = slices.Compact(r.ByWeekday)
	case len(byday) > 0 && freq == Monthly:
		if bysetpos == nil {
			return Rule{}, fmt.Errorf("%w: monthly byday requires bysetpos", ErrInvalidRule)
		}
		if len(byday) != 1 {
			return Rule{}, fmt.Errorf("%w: monthly byday must name a single weekday", ErrInvalidRule)
		}
		d, ok := weekdayFromCode(byday[0])
		if !ok {
			return Rule{}, fmt.Errorf("%w: unknown weekday code %q", ErrInvalidRule, byday[0])
		}
		r.ByMonthPosition = &MonthPosition{Ordinal: *bysetpos, Weekday: d}
	case len(byday) > 0:
		return Rule{}, fmt.Errorf("%w: byday is not valid for %s rules", ErrInvalidRule, freq)
	case bysetpos != nil:
		return Rule{}, fmt.Errorf("%w: bysetpos requires byday", ErrInvalidRule)
	}

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

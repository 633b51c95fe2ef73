package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustRule unwraps a constructor result, panicking on error. For rules the
// test knows are valid.
func mustRule(r Rule, err error) *Rule {
	if err != nil {
		panic(err)
	}
	return &r
}

func starts(occs []RawOccurrence) []time.Time {
	out := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start)
	}
	return out
}

func TestExpand_NonRecurring(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	t.Run("inside window", func(t *testing.T) {
		occs := Expand(anchor, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
		require.Len(t, occs, 1)
		assert.True(t, occs[0].Start.Equal(anchor.Start))
		assert.True(t, occs[0].End.Equal(anchor.End))
	})

	t.Run("intersecting window boundary", func(t *testing.T) {
		// Window starts mid-event; the event still intersects it.
		occs := Expand(anchor, nil, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
		assert.Len(t, occs, 1)
	})

	t.Run("outside window", func(t *testing.T) {
		occs := Expand(anchor, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
		assert.Empty(t, occs)
	})
}

func TestExpand_WeeklyMondayWednesday(t *testing.T) {
	// Anchor Monday 2024-01-01 09:00-10:00, every week on Mon and Wed.
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewWeekly(1, time.Monday, time.Wednesday))

	occs := Expand(anchor, rule,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC))

	want := []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, starts(occs))

	for _, o := range occs {
		assert.Equal(t, time.Hour, o.End.Sub(o.Start))
	}
}

func TestExpand_MonthlyDayOfMonthClamps(t *testing.T) {
	// Anchor Jan 31; February 2024 is a leap February.
	anchor := Anchor{
		Start: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 13, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewMonthly(1))

	feb := Expand(anchor, rule,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC))
	require.Len(t, feb, 1)
	assert.True(t, feb[0].Start.Equal(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))

	// Non-leap February clamps to the 28th, April to the 30th.
	later := Expand(anchor, rule,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC))
	require.Len(t, later, 3)
	assert.Equal(t, 28, later[0].Start.Day())
	assert.Equal(t, 31, later[1].Start.Day())
	assert.Equal(t, 30, later[2].Start.Day())
}

func TestExpand_MonthlyLastFriday(t *testing.T) {
	// Anchor on the last Friday of January 2024.
	anchor := Anchor{
		Start: time.Date(2024, 1, 26, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 26, 9, 30, 0, 0, time.UTC),
	}
	rule := mustRule(NewMonthlyByPosition(1, -1, time.Friday))

	march := Expand(anchor, rule,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC))
	require.Len(t, march, 1)
	assert.True(t, march[0].Start.Equal(time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC)))
}

func TestExpand_MonthlySecondTuesday(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC), // 2nd Tuesday of Jan 2024
		End:   time.Date(2024, 1, 9, 16, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewMonthlyByPosition(1, 2, time.Tuesday))

	occs := Expand(anchor, rule,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))

	want := []time.Time{
		time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 13, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 9, 15, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, starts(occs))
}

func TestExpand_YearlyFeb29Clamps(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewYearly(1))

	occs := Expand(anchor, rule,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2028, 12, 31, 0, 0, 0, 0, time.UTC))

	want := []time.Time{
		time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2027, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, starts(occs))
}

func TestExpand_AnchorWindowBoundary(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	for name, rule := range map[string]*Rule{
		"daily":   mustRule(NewDaily(1)),
		"weekly":  mustRule(NewWeekly(1)),
		"monthly": mustRule(NewMonthly(1)),
		"yearly":  mustRule(NewYearly(1)),
	} {
		t.Run(name, func(t *testing.T) {
			occs := Expand(anchor, rule, anchor.Start, anchor.Start)
			require.Len(t, occs, 1)
			assert.True(t, occs[0].Start.Equal(anchor.Start))
		})
	}
}

func TestExpand_CountIsWindowIndependent(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	t.Run("daily via skip-ahead", func(t *testing.T) {
		r, err := NewDaily(1)
		require.NoError(t, err)
		r, err = r.WithCount(10)
		require.NoError(t, err)

		// A window starting after the series has ended yields nothing, even
		// though unbounded daily stepping would reach it.
		occs := Expand(anchor, &r, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		assert.Empty(t, occs)

		// Occurrences across split windows add up to exactly count.
		first := Expand(anchor, &r, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC))
		second := Expand(anchor, &r, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, 10, len(first)+len(second))
	})

	t.Run("weekday set via linear walk", func(t *testing.T) {
		r, err := NewWeekly(1, time.Monday, time.Wednesday)
		require.NoError(t, err)
		r, err = r.WithCount(5)
		require.NoError(t, err)

		// Count 5 from Mon Jan 1: Jan 1, 3, 8, 10, 15. A later window sees
		// only what is left of the series.
		occs := Expand(anchor, &r, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
		want := []time.Time{
			time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		}
		assert.Equal(t, want, starts(occs))
	})
}

func TestExpand_UntilBoundsSeries(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	until := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	r, err := NewDaily(1)
	require.NoError(t, err)
	r, err = r.WithUntil(until)
	require.NoError(t, err)

	occs := Expand(anchor, &r, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.Len(t, occs, 8)
	for _, o := range occs {
		assert.False(t, o.Start.After(until))
	}
	// until is inclusive: the Jan 8 09:00 occurrence is the last one.
	assert.True(t, occs[len(occs)-1].Start.Equal(until))
}

func TestExpand_IntervalStepping(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	t.Run("every third day", func(t *testing.T) {
		rule := mustRule(NewDaily(3))
		occs := Expand(anchor, rule, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
		want := []time.Time{
			time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC),
		}
		assert.Equal(t, want, starts(occs))
	})

	t.Run("every second week keeps anchor weekday", func(t *testing.T) {
		rule := mustRule(NewWeekly(2))
		occs := Expand(anchor, rule, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
		want := []time.Time{
			time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 29, 9, 0, 0, 0, time.UTC),
		}
		assert.Equal(t, want, starts(occs))
	})
}

func TestExpand_SkipAheadMatchesLinearScan(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2020, 3, 15, 7, 30, 0, 0, time.UTC),
		End:   time.Date(2020, 3, 15, 8, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewDaily(7))

	// A far-future narrow window must land on the same instants a scan from
	// the anchor would produce.
	from := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2031, 6, 30, 0, 0, 0, 0, time.UTC)

	fast := Expand(anchor, rule, from, to)

	var slow []time.Time
	for c := anchor.Start; !c.After(to); c = c.AddDate(0, 0, 7) {
		if !c.Before(from) {
			slow = append(slow, c)
		}
	}
	assert.Equal(t, slow, starts(fast))
}

func TestExpand_DSTKeepsLocalClockTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Daily 09:00 local across the 2024-03-10 spring-forward transition.
	anchor := Anchor{
		Start: time.Date(2024, 3, 8, 9, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 8, 10, 0, 0, 0, loc),
	}
	rule := mustRule(NewDaily(1))

	occs := Expand(anchor, rule,
		time.Date(2024, 3, 8, 0, 0, 0, 0, loc),
		time.Date(2024, 3, 12, 0, 0, 0, 0, loc))
	require.Len(t, occs, 4)
	for _, o := range occs {
		assert.Equal(t, 9, o.Start.In(loc).Hour())
	}
}

func TestExpand_Deterministic(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewWeekly(1, time.Monday, time.Thursday))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first := Expand(anchor, rule, from, to)
	second := Expand(anchor, rule, from, to)
	assert.Equal(t, first, second)
}

func TestOccurs(t *testing.T) {
	anchor := Anchor{
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	rule := mustRule(NewWeekly(1, time.Monday, time.Wednesday))

	assert.True(t, Occurs(anchor, rule, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)))
	assert.False(t, Occurs(anchor, rule, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
	// Right weekday, wrong time of day.
	assert.False(t, Occurs(anchor, rule, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)))
	// Before the anchor.
	assert.False(t, Occurs(anchor, rule, time.Date(2023, 12, 27, 9, 0, 0, 0, time.UTC)))

	assert.True(t, Occurs(anchor, nil, anchor.Start))
	assert.False(t, Occurs(anchor, nil, anchor.Start.Add(time.Minute)))
}

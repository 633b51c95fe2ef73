package series

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schedr/schedr/internal/test_utils"
	"github.com/schedr/schedr/pkg/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, context.Context, int) {
	t.Helper()
	db := test_utils.SetupTestDB(t)
	_, u, err := test_utils.SeedTestUser(context.Background(), db)
	require.NoError(t, err)
	return NewRepository(db), context.Background(), u.Id
}

func sampleSeries() Series {
	rule, _ := recurrence.NewWeekly(2, time.Tuesday, time.Thursday)
	return Series{
		Title:       "Sprint planning",
		Description: "Planning for the next sprint",
		Start:       time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		Timezone:    "Europe/Warsaw",
		IsRecurring: true,
		Rule:        &rule,
	}
}

func TestRepositoryImpl_StoreAndGet(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	id, err := repository.Store(ctx, userId, sampleSeries())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	stored, err := repository.Get(ctx, userId, id)
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning", stored.Title)
	assert.Equal(t, "Europe/Warsaw", stored.Timezone)
	assert.True(t, stored.IsRecurring)

	// the rule round-trips through its stored wire form
	require.NotNil(t, stored.Rule)
	assert.Equal(t, recurrence.Weekly, stored.Rule.Frequency)
	assert.Equal(t, 2, stored.Rule.Interval)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, stored.Rule.ByWeekday)
}

func TestRepositoryImpl_GetUnknownSeries(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	_, err := repository.Get(ctx, userId, uuid.New())

	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepositoryImpl_GetScopedToUser(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	id, err := repository.Store(ctx, userId, sampleSeries())
	require.NoError(t, err)

	_, err = repository.Get(ctx, userId+1, id)

	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepositoryImpl_ListForWindow(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	// a one-off inside the window
	inside := sampleSeries()
	inside.Title = "Inside"
	inside.IsRecurring = false
	inside.Rule = nil
	_, err := repository.Store(ctx, userId, inside)
	require.NoError(t, err)

	// a one-off outside the window
	outside := inside
	outside.Title = "Outside"
	outside.Start = inside.Start.AddDate(0, 6, 0)
	outside.End = inside.End.AddDate(0, 6, 0)
	_, err = repository.Store(ctx, userId, outside)
	require.NoError(t, err)

	// recurring series are always candidates, wherever their anchor lies
	recurring := sampleSeries()
	recurring.Title = "Recurring"
	recurring.Start = inside.Start.AddDate(-1, 0, 0)
	recurring.End = inside.End.AddDate(-1, 0, 0)
	_, err = repository.Store(ctx, userId, recurring)
	require.NoError(t, err)

	result, err := repository.ListForWindow(ctx, userId,
		inside.Start.AddDate(0, 0, -7), inside.Start.AddDate(0, 0, 7))

	require.NoError(t, err)
	require.Len(t, result, 2)
	titles := []string{result[0].Title, result[1].Title}
	assert.Contains(t, titles, "Inside")
	assert.Contains(t, titles, "Recurring")
}

func TestRepositoryImpl_ListForWindowSeesMovedOccurrences(t *testing.T) {
	db := test_utils.SetupTestDB(t)
	ctx := context.Background()
	_, u, err := test_utils.SeedTestUser(ctx, db)
	require.NoError(t, err)
	repository := NewRepository(db)

	oneOff := sampleSeries()
	oneOff.Title = "Dentist"
	oneOff.IsRecurring = false
	oneOff.Rule = nil
	id, err := repository.Store(ctx, u.Id, oneOff)
	require.NoError(t, err)

	// The single occurrence is moved a month ahead of its anchor.
	moved := oneOff.Start.AddDate(0, 1, 0)
	_, err = db.Exec(ctx,
		`INSERT INTO occurrence_override (series_id, original_start, kind, title, description, start_time, end_time)
		 VALUES ($1, $2, 'modified', $3, '', $4, $5)`,
		id, oneOff.Start, oneOff.Title, moved, moved.Add(time.Hour))
	require.NoError(t, err)

	result, err := repository.ListForWindow(ctx, u.Id,
		moved.AddDate(0, 0, -7), moved.AddDate(0, 0, 7))

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, id, result[0].ID)
}

func TestRepositoryImpl_Update(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	id, err := repository.Store(ctx, userId, sampleSeries())
	require.NoError(t, err)

	updated := sampleSeries()
	updated.ID = id
	updated.Title = "Sprint planning (new cadence)"
	rule, err := recurrence.NewWeekly(1, time.Monday)
	require.NoError(t, err)
	updated.Rule = &rule
	require.NoError(t, repository.Update(ctx, userId, updated))

	stored, err := repository.Get(ctx, userId, id)
	require.NoError(t, err)
	assert.Equal(t, "Sprint planning (new cadence)", stored.Title)
	require.NotNil(t, stored.Rule)
	assert.Equal(t, []time.Weekday{time.Monday}, stored.Rule.ByWeekday)
}

func TestRepositoryImpl_UpdateUnknownSeries(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	unknown := sampleSeries()
	unknown.ID = uuid.New()

	assert.ErrorIs(t, repository.Update(ctx, userId, unknown), ErrSeriesNotFound)
}

func TestRepositoryImpl_Delete(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	id, err := repository.Store(ctx, userId, sampleSeries())
	require.NoError(t, err)

	require.NoError(t, repository.Delete(ctx, userId, id))

	_, err = repository.Get(ctx, userId, id)
	assert.ErrorIs(t, err, ErrSeriesNotFound)
	assert.ErrorIs(t, repository.Delete(ctx, userId, id), ErrSeriesNotFound)
}

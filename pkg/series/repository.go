package series

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schedr/schedr/pkg/recurrence"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Store(ctx context.Context, userId int, s Series) (uuid.UUID, error)
	Get(ctx context.Context, userId int, id uuid.UUID) (Series, error)
	List(ctx context.Context, userId int) ([]Series, error)
	// ListForWindow returns series that could contribute occurrences to
	// [from, to]: one-off events overlapping it, every recurring series, and
	// series with an override moved into it.
	ListForWindow(ctx context.Context, userId int, from, to time.Time) ([]Series, error)
	Update(ctx context.Context, userId int, s Series) error
	Delete(ctx context.Context, userId int, id uuid.UUID) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const seriesColumns = `id, title, description, start_time, end_time, timezone, is_recurring, recurrence_rule`

func (r *RepositoryImpl) Store(ctx context.Context, userId int, s Series) (uuid.UUID, error) {
	query := `INSERT INTO event_series (id, user_id, title, description, start_time, end_time, timezone, is_recurring, recurrence_rule)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	id := uuid.New()
	_, err := r.db.Exec(ctx, query,
		id,
		userId,
		s.Title,
		s.Description,
		s.Start,
		s.End,
		s.Timezone,
		s.IsRecurring,
		ruleColumn(s.Rule),
	)
	if err != nil {
		err := fmt.Errorf("could not store event series: %w", err)
		log.Error(err)
		return uuid.Nil, err
	}
	return id, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id uuid.UUID) (Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM event_series WHERE id = $1 AND user_id = $2`

	s, err := scanSeries(r.db.QueryRow(ctx, query, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return Series{}, ErrSeriesNotFound
	} else if err != nil {
		err := fmt.Errorf("could not get event series: %w", err)
		log.Error(err)
		return Series{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM event_series WHERE user_id = $1 ORDER BY start_time`
	return r.querySeries(ctx, query, userId)
}

func (r *RepositoryImpl) ListForWindow(ctx context.Context, userId int, from, to time.Time) ([]Series, error) {
	// The EXISTS arm catches one-off events whose only occurrence was moved
	// into the window by an override; their anchor times miss it entirely.
	query := `SELECT ` + seriesColumns + ` FROM event_series
			  WHERE user_id = $1 AND (is_recurring
			      OR (start_time <= $3 AND end_time >= $2)
			      OR EXISTS (SELECT 1 FROM occurrence_override o
			                 WHERE o.series_id = event_series.id
			                   AND o.start_time <= $3 AND o.end_time >= $2))
			  ORDER BY start_time`
	return r.querySeries(ctx, query, userId, from, to)
}

func (r *RepositoryImpl) querySeries(ctx context.Context, query string, args ...any) ([]Series, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query event series: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	result := make([]Series, 0, 10)
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			err := fmt.Errorf("could not scan event series: %w", err)
			log.Error(err)
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over event series: %w", err)
		log.Error(err)
		return nil, err
	}
	return result, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, userId int, s Series) error {
	query := `UPDATE event_series
			  SET title = $3, description = $4, start_time = $5, end_time = $6, timezone = $7, is_recurring = $8, recurrence_rule = $9
			  WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query,
		s.ID,
		userId,
		s.Title,
		s.Description,
		s.Start,
		s.End,
		s.Timezone,
		s.IsRecurring,
		ruleColumn(s.Rule),
	)
	if err != nil {
		err := fmt.Errorf("could not update event series: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id uuid.UUID) error {
	// occurrence_override rows go with it via ON DELETE CASCADE.
	query := `DELETE FROM event_series WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, id, userId)
	if err != nil {
		err := fmt.Errorf("could not delete event series: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

func ruleColumn(rule *recurrence.Rule) sql.NullString {
	if rule == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: recurrence.FormatRRule(*rule), Valid: true}
}

func scanSeries(row pgx.Row) (Series, error) {
	var s Series
	var rrule sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Start, &s.End, &s.Timezone, &s.IsRecurring, &rrule); err != nil {
		return Series{}, err
	}
	if rrule.Valid && rrule.String != "" {
		rule, err := recurrence.ParseRRule(rrule.String)
		if err != nil {
			return Series{}, fmt.Errorf("stored recurrence rule is unreadable: %w", err)
		}
		s.Rule = &rule
	}
	return s, nil
}

package override

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrOverrideNotFound = errors.New("override not found")

// Repository stores per-occurrence overrides. Writes are single-statement and
// therefore atomic per key. No validation against the series' rule happens
// here: overrides are allowed to outlive a rule edit and go inert, which is
// the materializer's concern at read time.
type Repository interface {
	Upsert(ctx context.Context, o Override) error
	Cancel(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error
	Get(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) (Override, error)
	// ListForRange returns overrides whose effective displayed start OR
	// original start falls inside [from, to], so a moved-out occurrence
	// still suppresses its old slot and a moved-in one still appears.
	ListForRange(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]Override, error)
	Remove(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error
	RemoveAllForSeries(ctx context.Context, seriesID uuid.UUID) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Upsert(ctx context.Context, o Override) error {
	query := `INSERT INTO occurrence_override (series_id, original_start, kind, title, description, start_time, end_time)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (series_id, original_start)
			  DO UPDATE SET kind = $3, title = $4, description = $5, start_time = $6, end_time = $7`

	var start, end sql.NullTime
	if o.Kind == KindModified {
		start = sql.NullTime{Time: o.Start, Valid: true}
		end = sql.NullTime{Time: o.End, Valid: true}
	}

	_, err := r.db.Exec(ctx, query, o.SeriesID, o.OriginalStart, o.Kind, o.Title, o.Description, start, end)
	if err != nil {
		err := fmt.Errorf("could not upsert occurrence override: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Cancel(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error {
	return r.Upsert(ctx, Override{
		SeriesID:      seriesID,
		OriginalStart: originalStart,
		Kind:          KindCancelled,
	})
}

func (r *RepositoryImpl) Get(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) (Override, error) {
	query := `SELECT series_id, original_start, kind, title, description, start_time, end_time
			  FROM occurrence_override
			  WHERE series_id = $1 AND original_start = $2`

	o, err := scanOverride(r.db.QueryRow(ctx, query, seriesID, originalStart))
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, ErrOverrideNotFound
	} else if err != nil {
		err := fmt.Errorf("could not get occurrence override: %w", err)
		log.Error(err)
		return Override{}, err
	}
	return o, nil
}

func (r *RepositoryImpl) ListForRange(ctx context.Context, seriesID uuid.UUID, from, to time.Time) ([]Override, error) {
	query := `SELECT series_id, original_start, kind, title, description, start_time, end_time
			  FROM occurrence_override
			  WHERE series_id = $1
				AND (
					(COALESCE(start_time, original_start) >= $2 AND COALESCE(start_time, original_start) <= $3)
					OR (original_start >= $2 AND original_start <= $3)
				)
			  ORDER BY original_start`

	rows, err := r.db.Query(ctx, query, seriesID, from, to)
	if err != nil {
		err := fmt.Errorf("could not query occurrence overrides: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	overrides := make([]Override, 0, 8)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			err := fmt.Errorf("could not scan occurrence override: %w", err)
			log.Error(err)
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over occurrence overrides: %w", err)
		log.Error(err)
		return nil, err
	}
	return overrides, nil
}

func (r *RepositoryImpl) Remove(ctx context.Context, seriesID uuid.UUID, originalStart time.Time) error {
	query := `DELETE FROM occurrence_override WHERE series_id = $1 AND original_start = $2`
	tag, err := r.db.Exec(ctx, query, seriesID, originalStart)
	if err != nil {
		err := fmt.Errorf("could not delete occurrence override: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

func (r *RepositoryImpl) RemoveAllForSeries(ctx context.Context, seriesID uuid.UUID) error {
	query := `DELETE FROM occurrence_override WHERE series_id = $1`
	_, err := r.db.Exec(ctx, query, seriesID)
	if err != nil {
		err := fmt.Errorf("could not delete occurrence overrides for series: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func scanOverride(row pgx.Row) (Override, error) {
	var o Override
	var start, end sql.NullTime
	if err := row.Scan(&o.SeriesID, &o.OriginalStart, &o.Kind, &o.Title, &o.Description, &start, &end); err != nil {
		return Override{}, err
	}
	if start.Valid {
		o.Start = start.Time
	}
	if end.Valid {
		o.End = end.Time
	}
	return o, nil
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresched/telehealth-scheduling/internal/civil"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t        Template
		weekday  int
		startStr string
		endStr   string
	)

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&weekday,
		&startStr,
		&endStr,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Weekday = time.Weekday(weekday)
	if t.Start, err = civil.ParseTimeOfDay(startStr); err != nil {
		return nil, fmt.Errorf("template %s start: %w", t.ID, err)
	}
	if t.End, err = civil.ParseTimeOfDay(endStr); err != nil {
		return nil, fmt.Errorf("template %s end: %w", t.ID, err)
	}

	return &t, nil
}

// Interface methods

func (s *PgStore) ReplaceWeeklySchedule(ctx context.Context, doctorID uuid.UUID, templates []Template) error {
	if err := ValidateWeek(templates); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schedule replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM availability_templates
		WHERE doctor_id = $1
	`, doctorID); err != nil {
		return fmt.Errorf("clear weekly schedule: %w", err)
	}

	for _, t := range templates {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_templates
				(id, doctor_id, weekday, start_time, end_time, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, doctorID, int(t.Weekday), t.Start.String(), t.End.String(), t.Active); err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schedule replace: %w", err)
	}

	return nil
}

func (s *PgStore) Templates(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_time, end_time, active, created_at, updated_at
		FROM availability_templates
		WHERE doctor_id = $1
		ORDER BY weekday, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) AddBlackout(ctx context.Context, doctorID uuid.UUID, date civil.Date) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blackout_dates (doctor_id, date)
		VALUES ($1, $2)
		ON CONFLICT (doctor_id, date) DO NOTHING
	`, doctorID, date.Time())
	if err != nil {
		return fmt.Errorf("add blackout: %w", err)
	}
	return nil
}

func (s *PgStore) RemoveBlackout(ctx context.Context, doctorID uuid.UUID, date civil.Date) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blackout_dates
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, date.Time())
	if err != nil {
		return fmt.Errorf("remove blackout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlackoutNotFound
	}
	return nil
}

func (s *PgStore) Blackouts(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]Blackout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, date
		FROM blackout_dates
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, doctorID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Blackout
	for rows.Next() {
		var (
			b  Blackout
			at time.Time
		)
		if err := rows.Scan(&b.DoctorID, &at); err != nil {
			return nil, err
		}
		b.Date = civil.DateOf(at)
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) ConsultationMinutes(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var minutes int
	err := s.pool.QueryRow(ctx, `
		SELECT slot_minutes
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDoctorNotFound
		}
		return 0, err
	}
	return minutes, nil
}

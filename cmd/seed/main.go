package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/civil"
	"github.com/caresched/telehealth-scheduling/internal/db"
	"github.com/caresched/telehealth-scheduling/internal/logging"
)

func main() {
	logging.Init("seed", "dev")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSchedules(context.Background(), pool, doctorIDs); err != nil {
		log.Fatal().Err(err).Msg("seed schedules")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}
	slotMinutes := []int{15, 20, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		minutes := slotMinutes[gofakeit.Number(0, len(slotMinutes)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, slot_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, minutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded so far")
	}

	log.Info().Msg("patients seeded")
	return nil
}

// seedSchedules gives every doctor a plausible working week: a morning
// window Monday through Friday and an afternoon window on a random subset
// of those days.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Info().Int("doctors", len(doctorIDs)).Msg("seeding weekly schedules")

	store := availability.NewPgStore(pool)

	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	for _, doctorID := range doctorIDs {
		var templates []availability.Template
		for _, day := range weekdays {
			templates = append(templates, availability.Template{
				Weekday: day,
				Start:   civil.NewTimeOfDay(9, 0),
				End:     civil.NewTimeOfDay(12, 0),
				Active:  true,
			})
			if gofakeit.Bool() {
				templates = append(templates, availability.Template{
					Weekday: day,
					Start:   civil.NewTimeOfDay(14, 0),
					End:     civil.NewTimeOfDay(17, 0),
					Active:  true,
				})
			}
		}

		if err := store.ReplaceWeeklySchedule(ctx, doctorID, templates); err != nil {
			return err
		}
	}

	log.Info().Msg("weekly schedules seeded")
	return nil
}

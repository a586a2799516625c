// simulate hammers one concrete slot with concurrent booking requests and
// reports the outcome tally. With a correct engine exactly one request wins;
// everything else gets slot_taken or slot_being_booked.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caresched/telehealth-scheduling/internal/db"
	"github.com/caresched/telehealth-scheduling/internal/logging"
)

type simConfig struct {
	apiBaseURL  string
	postgresDSN string
	doctorID    string
	date        string
	startTime   string
	workers     int
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		apiBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		postgresDSN: os.Getenv("POSTGRES_DSN"),
		doctorID:    os.Getenv("SIM_DOCTOR_ID"),
		date:        os.Getenv("SIM_DATE"),
		startTime:   getEnv("SIM_START_TIME", "09:00"),
		workers:     50,
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.workers)
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logging.Init("simulate", "dev")

	cfg := loadSimConfig()
	if cfg.postgresDSN == "" || cfg.doctorID == "" || cfg.date == "" {
		log.Fatal().Msg("POSTGRES_DSN, SIM_DOCTOR_ID and SIM_DATE are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	patients, err := loadPatients(ctx, cfg.postgresDSN, cfg.workers)
	if err != nil {
		log.Fatal().Err(err).Msg("load patients")
	}
	if len(patients) < cfg.workers {
		log.Fatal().Int("have", len(patients)).Int("need", cfg.workers).Msg("not enough patients, run cmd/seed first")
	}

	log.Info().
		Int("workers", cfg.workers).
		Str("doctor_id", cfg.doctorID).
		Str("date", cfg.date).
		Str("start_time", cfg.startTime).
		Msg("starting contention run")

	tally := runContention(cfg, patients)

	fmt.Println("outcome tally:")
	for outcome, n := range tally {
		fmt.Printf("  %-20s %d\n", outcome, n)
	}
	if tally["created"] != 1 {
		log.Error().Int("created", tally["created"]).Msg("expected exactly one winner")
		os.Exit(1)
	}
	log.Info().Msg("exactly one booking won, as expected")
}

func loadPatients(ctx context.Context, dsn string, limit int) ([]uuid.UUID, error) {
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func runContention(cfg simConfig, patients []uuid.UUID) map[string]int {
	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu    sync.Mutex
		tally = make(map[string]int)
		wg    sync.WaitGroup
	)

	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()

			outcome := bookOnce(client, cfg, patientID)

			mu.Lock()
			tally[outcome]++
			mu.Unlock()
		}(patients[i])
	}

	wg.Wait()
	return tally
}

func bookOnce(client *http.Client, cfg simConfig, patientID uuid.UUID) string {
	body, _ := json.Marshal(map[string]string{
		"doctor_id":  cfg.doctorID,
		"patient_id": patientID.String(),
		"date":       cfg.date,
		"start_time": cfg.startTime,
		"type":       "video",
		"reason":     "load test",
	})

	resp, err := client.Post(cfg.apiBaseURL+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		return "transport_error"
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		return "created"
	}

	var errResp struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &errResp); err != nil || errResp.Error == "" {
		return fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return errResp.Error
}

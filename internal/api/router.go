package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

type RouterConfig struct {
	Engine       *booking.Engine
	Resolver     *schedule.Resolver
	Availability availability.Store
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Route("/availability/{doctorID}", func(r chi.Router) {
		r.Get("/slots", listSlotsHandler(cfg.Resolver))
		r.Put("/schedule", replaceScheduleHandler(cfg.Availability))
		r.Post("/blackouts", addBlackoutHandler(cfg.Availability))
		r.Delete("/blackouts/{date}", removeBlackoutHandler(cfg.Availability))
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Engine))
		r.Get("/", listAppointmentsHandler(cfg.Engine))
		r.Get("/{id}", getAppointmentHandler(cfg.Engine))
		r.Patch("/{id}/confirm", confirmAppointmentHandler(cfg.Engine))
		r.Patch("/{id}/cancel", cancelAppointmentHandler(cfg.Engine))
		r.Patch("/{id}/complete", completeAppointmentHandler(cfg.Engine))
	})

	return r
}

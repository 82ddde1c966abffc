package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/civil-registry-booking/internal/assistant"
	"github.com/hackgods/civil-registry-booking/internal/booking"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
)

type RouterConfig struct {
	Desks       *booking.Desks
	Outbox      *receipt.Outbox
	Renderer    *receipt.Renderer
	Assistant   *assistant.Assistant
	RateLimiter *RateLimiter
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Storage     string
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Assistant == nil {
		cfg.Assistant = assistant.New(assistant.DefaultEntries())
	}
	if cfg.Renderer == nil {
		cfg.Renderer = receipt.NewRenderer(cfg.Desks.Catalog(), "")
	}
	if cfg.Outbox == nil {
		cfg.Outbox = receipt.NewOutbox(cfg.Renderer)
	}

	h := &handlers{
		desks:     cfg.Desks,
		outbox:    cfg.Outbox,
		renderer:  cfg.Renderer,
		assistant: cfg.Assistant,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Storage, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Get("/procedures", h.listProcedures)
		r.Get("/procedures/{key}/requirements.pdf", h.requirementsPDF)
		r.Get("/calendar/config", h.calendarConfig)

		r.Get("/assistant", h.greeting)
		r.Post("/assistant", h.ask)

		r.Group(func(r chi.Router) {
			r.Use(ProfileMiddleware)

			r.Get("/calendar/events", h.calendarEvents)
			r.Get("/calendar.ics", h.calendarICS)

			r.Get("/appointments", h.listAppointments)
			r.Get("/appointments/{id}", h.getAppointment)

			r.Get("/session", h.getSession)
			r.Post("/session", h.openNew)
			r.Post("/session/existing/{id}", h.openExisting)
			r.Post("/session/submit", h.submit)
			r.Post("/session/delete", h.deleteCurrent)
			r.Post("/session/close", h.closeSession)

			r.Get("/messages", h.currentMessage)
			r.Get("/receipts/latest", h.latestReceipt)
		})
	})

	return r
}

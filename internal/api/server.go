// Package api exposes the engine's HTTP surface: campaign lifecycle
// operations, the manual metrics trigger, and the public tracking routes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/service/campaign"
	"github.com/ignite/campaign-engine/internal/service/dispatch"
	"github.com/ignite/campaign-engine/internal/tracking"
)

// Dispatcher triggers immediate sends.
type Dispatcher interface {
	SendNow(ctx context.Context, id uuid.UUID) (*dispatch.Result, error)
}

// Aggregator recomputes daily metrics on demand.
type Aggregator interface {
	RunForDate(ctx context.Context, date time.Time) error
}

// Server wires the HTTP routes.
type Server struct {
	campaigns  *campaign.Service
	dispatcher Dispatcher
	aggregator Aggregator
	tracker    *tracking.Handler
	webhook    http.Handler
}

// NewServer creates the API server. tracker and webhook may be nil when the
// tracking surface runs elsewhere.
func NewServer(campaigns *campaign.Service, dispatcher Dispatcher, aggregator Aggregator, tracker *tracking.Handler, webhook http.Handler) *Server {
	return &Server{
		campaigns:  campaigns,
		dispatcher: dispatcher,
		aggregator: aggregator,
		tracker:    tracker,
		webhook:    webhook,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.createCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCampaign)
				r.Patch("/", s.updateCampaign)
				r.Post("/schedule", s.scheduleCampaign)
				r.Post("/cancel", s.cancelCampaign)
				r.Post("/send", s.sendCampaign)
			})
		})
		r.Post("/metrics/aggregate", s.runAggregation)
	})

	if s.tracker != nil {
		s.tracker.Routes(r)
	}
	if s.webhook != nil {
		r.Post("/webhooks/delivery", s.webhook.ServeHTTP)
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	mW "github.com/votepay/backend/internal/middleware"
)

type RouterConfig struct {
	Intents     *IntentHandler
	Webhooks    *WebhookHandler
	Results     *ResultsHandler
	Admin       *AdminHandler
	AdminSecret string
	// Metrics serves /metrics when set
	Metrics    http.Handler
	SwaggerURL string
}

// NewRouter mounts every route under /api/v1 plus health, metrics and docs
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	if cfg.SwaggerURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL(cfg.SwaggerURL),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intents", cfg.Intents.CreateIntent)
		r.Get("/intents/{reference}", cfg.Intents.GetIntent)
		r.Post("/intents/{reference}/cancel", cfg.Intents.CancelIntent)
		r.Get("/intents/{reference}/status-report", cfg.Intents.StatusReport)

		r.Post("/webhooks/payment", cfg.Webhooks.PaymentWebhook)

		r.Get("/events/{eventId}/results", cfg.Results.GetResults)

		r.Route("/admin", func(r chi.Router) {
			r.Use(mW.AdminAuth(cfg.AdminSecret))

			r.Get("/providers", cfg.Admin.ListProviders)
			r.Put("/providers/{provider}/health", cfg.Admin.SetProviderHealth)
			r.Post("/reconcile", cfg.Admin.Reconcile)
			r.Post("/intents/{reference}/replay", cfg.Admin.ReplayWebhook)
		})
	})

	return r
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/footfall-labs/footfall/internal/adapter/api/handler"
	"github.com/footfall-labs/footfall/internal/adapter/api/middleware"
	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/pkg/config"
	"github.com/footfall-labs/footfall/internal/usecase"
)

// NewRouter creates and configures the main HTTP router: the demo shop
// endpoints (wrapped by the tracking middleware, one recorded event
// per request) and the traffic query API.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	recorder *usecase.Recorder,
	queries *usecase.QueryService,
) http.Handler {
	mux := http.NewServeMux()

	shopHandler := handler.NewShopHandler(logger, cfg.DemoUser, cfg.DemoPass)
	trafficHandler := handler.NewTrafficHandler(queries, logger)

	// Tracked shop endpoints. The middleware records after the
	// response so the event carries the final status code.
	trackLogin := middleware.Track(recorder, domain.EndpointLogin)
	trackCheckout := middleware.Track(recorder, domain.EndpointCheckout)
	mux.Handle("POST /api/auth/login", trackLogin(http.HandlerFunc(shopHandler.Login)))
	mux.Handle("POST /api/checkout", trackCheckout(http.HandlerFunc(shopHandler.Checkout)))

	// Traffic query API.
	mux.HandleFunc("GET /api/traffic", trafficHandler.Query)
	mux.HandleFunc("GET /api/traffic/incremental", trafficHandler.Incremental)
	mux.HandleFunc("GET /api/traffic/snapshot", trafficHandler.Snapshot)
	mux.HandleFunc("GET /api/traffic/series", trafficHandler.Series)
	mux.HandleFunc("GET /api/traffic/export", trafficHandler.Export)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

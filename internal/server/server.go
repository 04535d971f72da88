package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whereabouts/internal/config"
	"whereabouts/internal/domain/marker"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/domain/trip"
	"whereabouts/internal/hub"
	"whereabouts/internal/server/handlers"
	"whereabouts/internal/service/broadcast"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	core *hub.Hub,
	dispatcher *broadcast.Dispatcher,
	registry presence.Registry,
	trips trip.Directory,
	markers marker.Directory,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	presenceHandler := handlers.NewPresenceHandler(registry)
	tripHandler := handlers.NewTripHandler(trips)
	markerHandler := handlers.NewMarkerHandler(markers)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// Read-only snapshots of the live stores
		r.Route("/v1", func(r chi.Router) {
			r.Get("/users", presenceHandler.ListUsers)
			r.Get("/trips", tripHandler.ListTrips)
			r.Get("/markers", markerHandler.ListMarkers)
		})
	})

	// WebSocket endpoint for the presence hub
	router.Get("/ws", handlers.WebSocketHandler(core, dispatcher, logger))

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

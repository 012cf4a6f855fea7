// Package api serves the web surface of the daemon: the dashboard, the
// JSON telemetry and health endpoints, the Prometheus scrape route and a
// websocket stream of live snapshots. All handlers are read-only views of
// the telemetry store.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kmatveev/upsmon/pkg/models"
)

// SnapshotProvider supplies the current telemetry snapshot.
type SnapshotProvider interface {
	Snapshot() models.Snapshot
}

// HealthProvider supplies the scheduler health report.
type HealthProvider interface {
	Health() models.Health
}

// Server is the HTTP front of the daemon.
type Server struct {
	store   SnapshotProvider
	health  HealthProvider
	metrics http.Handler
	hub     *Hub
	router  *mux.Router
	srv     *http.Server
}

func NewServer(store SnapshotProvider, health HealthProvider, metrics http.Handler) *Server {
	s := &Server{
		store:   store,
		health:  health,
		metrics: metrics,
		hub:     NewHub(),
		router:  mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Add CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	s.router.HandleFunc("/", s.getDashboard).Methods("GET")
	s.router.HandleFunc("/api/telemetry", s.getTelemetry).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/health", s.getHealth).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/ws", s.serveWS)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
}

// Start runs the websocket hub and the HTTP listener until ctx is
// canceled or the listener fails.
func (s *Server) Start(ctx context.Context, listenAddr string) error {
	go s.hub.Run(ctx)

	s.srv = &http.Server{
		Addr:         listenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("Web server listening on %s", listenAddr)

	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	return s.srv.Shutdown(ctx)
}

// Broadcast pushes a snapshot to all connected websocket clients.
func (s *Server) Broadcast(snap models.Snapshot) {
	s.hub.BroadcastSnapshot(snap)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type telemetryResponse struct {
	models.Snapshot
	Health models.Health `json:"daemon"`
}

func (s *Server) getTelemetry(w http.ResponseWriter, _ *http.Request) {
	resp := telemetryResponse{
		Snapshot: s.store.Snapshot(),
		Health:   s.health.Health(),
	}

	s.writeJSON(w, resp)
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.health.Health())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

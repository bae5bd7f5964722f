package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"cogstate-service/internal/analytics"
	"cogstate-service/internal/config"
	"cogstate-service/internal/models"
	"cogstate-service/internal/session"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultSnapshotLimit = 50
	defaultTrendLimit    = 100
	maxListLimit         = 1000
	persistTimeout       = 2 * time.Second
)

// SnapshotStore caches snapshots outside the engine.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, sessionID string, snap models.CognitiveStateSnapshot) error
	RecentSnapshots(ctx context.Context, sessionID string, count int64) ([]models.CognitiveStateSnapshot, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type persistJob struct {
	sessionID string
	snapshot  models.CognitiveStateSnapshot
}

type Server struct {
	router      *mux.Router
	store       SnapshotStore
	sessions    *session.Registry
	persistChan chan persistJob
	persistDone chan struct{}
	log         *zap.Logger
	cfg         config.Config
	stopOnce    sync.Once
}

func NewServer(cfg config.Config, store SnapshotStore, log *zap.Logger) *Server {
	queueSize := cfg.Server.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}

	s := &Server{
		router:      mux.NewRouter(),
		store:       store,
		sessions:    session.NewRegistry(cfg.Engine.Analytics(), log),
		persistChan: make(chan persistJob, queueSize),
		persistDone: make(chan struct{}),
		log:         log,
		cfg:         cfg,
	}

	s.setupRoutes()
	go s.persistSnapshots()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(instrument)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/sessions", s.startSessionHandler).Methods("POST")
	s.router.HandleFunc("/sessions/{id}", s.sessionInfoHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}", s.endSessionHandler).Methods("DELETE")
	s.router.HandleFunc("/sessions/{id}/ticks", s.tickHandler).Methods("POST")
	s.router.HandleFunc("/sessions/{id}/snapshot", s.latestSnapshotHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/snapshots", s.recentSnapshotsHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/fatigue-trend", s.fatigueTrendHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
		"sessions":  s.sessions.Count(),
	})
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	info := s.sessions.Start()
	activeSessions.Set(float64(s.sessions.Count()))
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) sessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, stats, err := s.sessions.Info(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": info,
		"stats":   stats,
	})
}

func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sessions.End(id); err != nil {
		s.writeError(w, err)
		return
	}
	activeSessions.Set(float64(s.sessions.Count()))

	s.dropCached(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dropCached(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.store.DeleteSession(ctx, id); err != nil {
		s.log.Warn("Failed to drop cached snapshots", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *Server) tickHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var in models.TickInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := s.sessions.Tick(id, in)
	if err != nil {
		if errors.Is(err, analytics.ErrOutOfOrderSample) {
			samplesRejected.Inc()
			s.log.Warn("Rejected out-of-order sample", zap.String("session_id", id), zap.Error(err))
		}
		s.writeError(w, err)
		return
	}

	ticksProcessed.Inc()
	if score := snap.FatigueAssessment.FatigueScore; score != nil {
		fatigueScores.Observe(float64(*score))
	}
	for _, insight := range snap.Insights {
		insightsEmitted.WithLabelValues(string(insight.Type)).Inc()
		if insight.Urgent {
			s.log.Warn("Urgent insight",
				zap.String("session_id", id),
				zap.String("type", string(insight.Type)),
				zap.String("message", insight.Message),
			)
		}
	}

	// Caching is best effort and never holds up the tick.
	select {
	case s.persistChan <- persistJob{sessionID: id, snapshot: snap}:
	default:
		persistDropped.Inc()
		s.log.Warn("Persistence queue full, snapshot not cached", zap.String("session_id", id))
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) latestSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Latest(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) recentSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Exists(id) {
		s.writeError(w, session.ErrSessionNotFound)
		return
	}
	limit, err := parseLimit(r, defaultSnapshotLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snaps, err := s.store.RecentSnapshots(r.Context(), id, limit)
	if err != nil {
		s.log.Error("Failed to read cached snapshots", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "snapshot cache unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) fatigueTrendHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Exists(id) {
		s.writeError(w, session.ErrSessionNotFound)
		return
	}
	limit, err := parseLimit(r, defaultTrendLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snaps, err := s.store.RecentSnapshots(r.Context(), id, limit)
	if err != nil {
		s.log.Error("Failed to read cached snapshots", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "snapshot cache unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, analytics.SummarizeFatigue(id, snaps))
}

// persistSnapshots caches queued snapshots. Jobs for sessions that have ended
// are dropped, and a write that races with the end of its session is undone.
func (s *Server) persistSnapshots() {
	defer close(s.persistDone)
	for job := range s.persistChan {
		if !s.sessions.Exists(job.sessionID) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.store.StoreSnapshot(ctx, job.sessionID, job.snapshot); err != nil {
			s.log.Error("Failed to cache snapshot", zap.String("session_id", job.sessionID), zap.Error(err))
		}
		cancel()
		if !s.sessions.Exists(job.sessionID) {
			s.dropCached(context.Background(), job.sessionID)
		}
	}
}

func (s *Server) sweepSessions(ctx context.Context) {
	interval := s.cfg.Session.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := s.sessions.Sweep(s.cfg.Session.IdleTimeout)
			if len(expired) == 0 {
				continue
			}
			activeSessions.Set(float64(s.sessions.Count()))
			for _, id := range expired {
				s.dropCached(ctx, id)
			}
		}
	}
}

// stop drains the persistence queue. Safe to call more than once.
func (s *Server) stop() {
	s.stopOnce.Do(func() {
		close(s.persistChan)
		<-s.persistDone
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, analytics.ErrOutOfOrderSample):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("Request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseLimit(r *http.Request, def int64) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.sweepSessions(sweepCtx)

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Fatal("Could not gracefully shutdown the server", zap.Error(err))
		}
		close(done)
	}()

	s.log.Info("Server is ready to handle requests", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	<-done
	s.stop()
	s.log.Info("Server stopped")
	return nil
}

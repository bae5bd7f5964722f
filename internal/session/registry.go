// Package session owns one cognitive-state engine per active session and
// serializes the ticks delivered to it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cogstate-service/internal/analytics"
	"cogstate-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type session struct {
	mu           sync.Mutex
	id           string
	startedAt    time.Time
	lastActivity time.Time
	tickCount    int64
	analyzer     *analytics.Analyzer
	latest       *models.CognitiveStateSnapshot
}

func (s *session) info() models.SessionInfo {
	return models.SessionInfo{
		SessionID:    s.id,
		StartedAt:    s.startedAt,
		LastActivity: s.lastActivity,
		TickCount:    s.tickCount,
	}
}

// Registry maps session IDs to independently owned engines. No buffer is ever
// shared between sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	cfg      analytics.EngineConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewRegistry(cfg analytics.EngineConfig, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*session),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SetEngineConfig changes the configuration used for sessions started afterwards.
func (r *Registry) SetEngineConfig(cfg analytics.EngineConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// Start creates a session with fresh, empty histories.
func (r *Registry) Start() models.SessionInfo {
	now := r.now()
	r.mu.Lock()
	s := &session{
		id:           uuid.New().String(),
		startedAt:    now,
		lastActivity: now,
		analyzer:     analytics.NewAnalyzer(r.cfg),
	}
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.log.Info("session started", zap.String("session_id", s.id))
	return s.info()
}

// End discards the session and all of its state.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	info := s.info()
	s.mu.Unlock()
	r.log.Info("session ended",
		zap.String("session_id", id),
		zap.Int64("ticks", info.TickCount),
		zap.Duration("duration", r.now().Sub(info.StartedAt)),
	)
	return nil
}

// Tick runs one engine cycle for the session. Ticks for the same session are
// serialized; different sessions proceed independently. A tick carrying neither
// a timestamp nor an eye sample is stamped with the time it was received.
func (r *Registry) Tick(id string, in models.TickInput) (models.CognitiveStateSnapshot, error) {
	s, err := r.get(id)
	if err != nil {
		return models.CognitiveStateSnapshot{}, err
	}
	if in.Timestamp.IsZero() && in.Eye == nil {
		in.Timestamp = r.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.analyzer.Analyze(in)
	if err != nil {
		return models.CognitiveStateSnapshot{}, err
	}
	s.tickCount++
	s.lastActivity = r.now()
	s.latest = &snap
	return snap, nil
}

// Latest returns the most recent snapshot, or nil if the session has not
// completed a tick yet.
func (r *Registry) Latest(id string) (*models.CognitiveStateSnapshot, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, nil
	}
	snap := *s.latest
	return &snap, nil
}

func (r *Registry) Info(id string) (models.SessionInfo, analytics.Stats, error) {
	s, err := r.get(id)
	if err != nil {
		return models.SessionInfo{}, analytics.Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), s.analyzer.Stats(), nil
}

// Exists reports whether the session is still active.
func (r *Registry) Exists(id string) bool {
	_, err := r.get(id)
	return err == nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep ends sessions idle for longer than idleTimeout and returns their IDs.
func (r *Registry) Sweep(idleTimeout time.Duration) []string {
	cutoff := r.now().Add(-idleTimeout)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.lastActivity.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.log.Info("session expired", zap.String("session_id", id), zap.Duration("idle_timeout", idleTimeout))
	}
	return expired
}

func (r *Registry) get(id string) (*session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

package chi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	heatgrid "github.com/evidencelab/heatgrid"
	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/metrics"
)

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 30 * time.Minute

// Session is one server-held grid: the controller plus run lifecycle
// bookkeeping. Aggregator state stays in memory so cutoff and metric
// changes recompute counts without touching the backend.
type Session struct {
	ID   string
	Ctrl *heatgrid.Controller

	mu        sync.Mutex
	lastSeen  time.Time
	cancelRun context.CancelFunc
}

// StartRun launches a run in the background, superseding any in-flight
// one. The run generation is claimed here, under the session lock and
// in request order, so a superseded run can never retire the live
// run's cells regardless of how the goroutines get scheduled. The
// superseded run's context is canceled as well to release its backend
// requests early.
func (s *Session) StartRun(logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.cancelRun = cancel
	pending := s.Ctrl.PrepareRun()
	s.mu.Unlock()

	go func() {
		defer cancel()
		report, err := pending.Execute(ctx)
		if err != nil {
			logger.Warn("grid run aborted",
				zap.String("session", s.ID),
				zap.Error(err),
			)
			return
		}
		logger.Info("grid run finished",
			zap.String("session", s.ID),
			zap.Int("total", report.Total),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}()
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.mu.Unlock()
	s.Ctrl.Close()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Registry holds all live grid sessions and expires idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *zap.Logger
}

// NewRegistry creates a session registry.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		sessions: map[string]*Session{},
		ttl:      ttl,
		logger:   logger,
	}
}

// Add registers a controller as a new session and returns it.
func (r *Registry) Add(ctrl *heatgrid.Controller) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Ctrl:     ctrl,
		lastSeen: time.Now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return s
}

// Get returns a live session and refreshes its idle clock.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	s.touch(time.Now())
	return s, nil
}

// Remove deletes a session and releases its resources.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.stop()
		metrics.ActiveSessions.Dec()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Janitor expires idle sessions until the context is canceled. Run it
// from main in its own goroutine.
func (r *Registry) Janitor(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.stop()
		metrics.ActiveSessions.Dec()
		r.logger.Info("expired idle session", zap.String("session", s.ID))
	}
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		s.stop()
		metrics.ActiveSessions.Dec()
	}
}

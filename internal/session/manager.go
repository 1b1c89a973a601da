package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Potency/internal/hermes"
	"github.com/MikeSquared-Agency/Potency/internal/metrics"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

// Manager owns the live sessions and evicts idle ones in the background.
type Manager struct {
	opts   Options
	models store.ModelStore
	events *hermes.Publisher
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewManager(opts Options, models store.ModelStore, events *hermes.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		opts:     opts,
		models:   models,
		events:   events,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
		stopCh:   make(chan struct{}),
	}
}

func (m *Manager) Create() *Session {
	s := New(m.opts, m.models, m.events, m.logger)
	s.now = m.now
	s.CreatedAt = s.now()
	s.touch()

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.logger.Info("session created", "session_id", s.ID)
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns a summary of every live session, oldest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	out := make([]Summary, len(all))
	for i, s := range all {
		out[i] = s.Summary()
	}
	return out
}

func (m *Manager) Start(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	m.wg.Add(1)
	go m.reapLoop(ctx)
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Manager) reapLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

// reapIdle drops sessions idle for longer than IdleTimeout and returns how
// many were removed.
func (m *Manager) reapIdle() int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.opts.IdleTimeout {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	for _, s := range expired {
		idle := now.Sub(s.LastActive())
		m.logger.Info("session expired", "session_id", s.ID, "idle_for", idle)
		m.events.Publish(hermes.SubjectSessionExpired(s.ID.String()), hermes.SessionExpiredEvent{
			SessionID: s.ID.String(),
			IdleFor:   idle,
		})
	}
	return len(expired)
}

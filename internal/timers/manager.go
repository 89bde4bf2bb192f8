// Package timers schedules the per-turn and per-debate deadlines of debate sessions.
//
// Each session has at most one live turn timer and at most one live total
// timer. Expiry callbacks run on their own goroutine without any manager lock
// held; they are ordinary concurrent mutators and must go through the session
// registry like any request.
package timers

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/pkg/clock"
)

// ExpireFunc is invoked with the session id once a deadline passes.
type ExpireFunc func(sessionID string)

type entry struct {
	timer     clock.Timer
	startedAt time.Time
	duration  time.Duration
}

// Manager holds the live deadlines keyed by session id. It never touches session state.
type Manager struct {
	mu     sync.Mutex
	clock  clock.Clock
	turn   map[string]*entry
	total  map[string]*entry
	logger *zap.Logger
}

// NewManager creates a timer manager on the given clock (clock.Real() in production).
func NewManager(c clock.Clock, logger *zap.Logger) *Manager {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		clock:  c,
		turn:   make(map[string]*entry),
		total:  make(map[string]*entry),
		logger: logger,
	}
}

// StartTurnTimer replaces any turn timer of sessionID with a new one firing after seconds.
func (m *Manager) StartTurnTimer(sessionID string, seconds int, onExpire ExpireFunc) {
	m.start(m.turn, "turn", sessionID, seconds, onExpire)
}

// CancelTurnTimer stops the turn timer of sessionID. No-op when none is running.
func (m *Manager) CancelTurnTimer(sessionID string) {
	m.cancel(m.turn, sessionID)
}

// ConsumeTurnTime cancels the turn timer and returns the whole seconds since it
// started, or 0 if none was running.
func (m *Manager) ConsumeTurnTime(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.turn[sessionID]
	if !ok {
		return 0
	}
	delete(m.turn, sessionID)
	e.timer.Stop()
	return int(m.clock.Now().Sub(e.startedAt) / time.Second)
}

// HasTurnTimer reports whether a turn timer is tracked for sessionID.
func (m *Manager) HasTurnTimer(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.turn[sessionID]
	return ok
}

// StartTotalTimer replaces any debate deadline of sessionID.
func (m *Manager) StartTotalTimer(sessionID string, seconds int, onExpire ExpireFunc) {
	m.start(m.total, "total", sessionID, seconds, onExpire)
}

// CancelTotalTimer stops the debate deadline of sessionID. No-op when none is running.
func (m *Manager) CancelTotalTimer(sessionID string) {
	m.cancel(m.total, sessionID)
}

// RemainingTurnTime returns the seconds left on the turn timer without cancelling it.
func (m *Manager) RemainingTurnTime(sessionID string) (int, bool) {
	return m.remaining(m.turn, sessionID)
}

// RemainingTotalTime returns the seconds left on the debate deadline.
func (m *Manager) RemainingTotalTime(sessionID string) (int, bool) {
	return m.remaining(m.total, sessionID)
}

// CancelAll stops both timers of sessionID.
func (m *Manager) CancelAll(sessionID string) {
	m.CancelTurnTimer(sessionID)
	m.CancelTotalTimer(sessionID)
}

// Shutdown stops every live timer.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.turn {
		e.timer.Stop()
		delete(m.turn, id)
	}
	for id, e := range m.total {
		e.timer.Stop()
		delete(m.total, id)
	}
}

func (m *Manager) start(timers map[string]*entry, kind, sessionID string, seconds int, onExpire ExpireFunc) {
	d := time.Duration(seconds) * time.Second
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := timers[sessionID]; ok {
		prev.timer.Stop()
	}
	e := &entry{startedAt: m.clock.Now(), duration: d}
	// The entry stays tracked after firing so a submission racing the expiry
	// still consumes the full elapsed time.
	e.timer = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		live := timers[sessionID] == e
		m.mu.Unlock()
		if !live {
			return
		}
		m.logger.Debug("timer expired", zap.String("session_id", sessionID), zap.String("kind", kind))
		onExpire(sessionID)
	})
	timers[sessionID] = e
}

func (m *Manager) cancel(timers map[string]*entry, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := timers[sessionID]; ok {
		e.timer.Stop()
		delete(timers, sessionID)
	}
}

func (m *Manager) remaining(timers map[string]*entry, sessionID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := timers[sessionID]
	if !ok {
		return 0, false
	}
	left := e.duration - m.clock.Now().Sub(e.startedAt)
	if left < 0 {
		left = 0
	}
	return int(left / time.Second), true
}

// Package session owns the identity and timing of one continuous visit.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionID returns "sess_" followed by a UUIDv7, which embeds the creation
// time in milliseconds and 74 random bits.
func GenerateSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "sess_" + id.String()
}

// Manager tracks the current session. The timeout is advisory: Expired reports it,
// nothing rotates the session.
type Manager struct {
	mu           sync.Mutex
	id           string
	start        time.Time
	lastActivity time.Time
	timeout      time.Duration
	ended        bool
	visitor      string
	store        Store
	now          func() time.Time
}

// NewManager starts a session at now(). store may be nil; visitor keys the store.
func NewManager(timeout time.Duration, store Store, visitor string, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	if store == nil {
		store = NewMemoryStore()
	}
	t := now()
	return &Manager{
		id:           GenerateSessionID(),
		start:        t,
		lastActivity: t,
		timeout:      timeout,
		visitor:      visitor,
		store:        store,
		now:          now,
	}
}

func (m *Manager) ID() string { return m.id }

func (m *Manager) StartTime() time.Time { return m.start }

// UpdateLastActivity advances the last activity time; it never moves backwards.
func (m *Manager) UpdateLastActivity() {
	t := m.now()
	m.mu.Lock()
	if t.After(m.lastActivity) {
		m.lastActivity = t
	}
	m.mu.Unlock()
}

func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Idle is the time since the last tracked event.
func (m *Manager) Idle() time.Duration {
	return m.now().Sub(m.LastActivity())
}

// Expired reports whether the session has been idle longer than the timeout.
func (m *Manager) Expired() bool {
	return m.timeout > 0 && m.Idle() > m.timeout
}

// SinceStart returns the milliseconds elapsed between the session start and t.
func (m *Manager) SinceStart(t time.Time) int64 {
	return t.Sub(m.start).Milliseconds()
}

// StartProperties builds the session_start payload.
func (m *Manager) StartProperties(ctx context.Context, entryURL, referrer string) map[string]any {
	props := map[string]any{
		"entry_point":       entryURL,
		"referrer":          referrer,
		"is_returning_user": false,
	}
	if last, ok := m.store.LastSessionEnd(ctx, m.visitor); ok {
		props["is_returning_user"] = true
		props["time_since_last_session"] = m.start.Sub(last).Milliseconds()
	}
	return props
}

// End marks the session as ended and returns the session_end payload. Only the first
// call reports ok; later calls return nil, false.
func (m *Manager) End(ctx context.Context) (map[string]any, bool) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return nil, false
	}
	m.ended = true
	m.mu.Unlock()

	t := m.now()
	m.store.SaveSessionEnd(ctx, m.visitor, t)
	return map[string]any{
		"session_duration": t.Sub(m.start).Milliseconds(),
		"session_id":       m.id,
	}, true
}

func (m *Manager) String() string {
	return fmt.Sprintf("session %s started %s", m.id, m.start.Format(time.RFC3339))
}

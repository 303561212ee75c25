package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestGenerateSessionID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10_000; i++ {
		id := GenerateSessionID()
		require.True(t, strings.HasPrefix(id, "sess_"))
		require.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
}

func TestManager_ActivityAndIdle(t *testing.T) {
	clk := newClock()
	m := NewManager(30*time.Minute, nil, "v", clk.Now)

	clk.Advance(10 * time.Minute)
	m.UpdateLastActivity()
	assert.Equal(t, clk.Now(), m.LastActivity())
	assert.False(t, m.Expired())

	clk.Advance(31 * time.Minute)
	assert.Equal(t, 31*time.Minute, m.Idle())
	assert.True(t, m.Expired())
	assert.Equal(t, int64(41*60*1000), m.SinceStart(clk.Now()))
}

func TestManager_StartPropertiesForNewAndReturningVisitors(t *testing.T) {
	clk := newClock()
	store := NewMemoryStore()

	first := NewManager(time.Minute, store, "visitor-1", clk.Now)
	props := first.StartProperties(context.Background(), "/courses", "https://search.example")
	assert.Equal(t, false, props["is_returning_user"])
	assert.NotContains(t, props, "time_since_last_session")
	assert.Equal(t, "/courses", props["entry_point"])

	clk.Advance(5 * time.Minute)
	end, ok := first.End(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(5*60*1000), end["session_duration"])

	clk.Advance(time.Hour)
	second := NewManager(time.Minute, store, "visitor-1", clk.Now)
	props = second.StartProperties(context.Background(), "/", "")
	assert.Equal(t, true, props["is_returning_user"])
	assert.Equal(t, int64(time.Hour/time.Millisecond), props["time_since_last_session"])
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestManager_EndOnlyOnce(t *testing.T) {
	m := NewManager(time.Minute, nil, "v", nil)

	_, ok := m.End(context.Background())
	assert.True(t, ok)
	props, ok := m.End(context.Background())
	assert.False(t, ok)
	assert.Nil(t, props)
}

func TestNewRedisStore_UnreachableFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1", 0)
	assert.Error(t, err)
}

func TestRedisStore_DegradesWhenServerGoesAway(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	s := newRedisStore(client, 0)
	defer s.Close()

	assert.NotPanics(t, func() {
		s.SaveSessionEnd(context.Background(), "v", time.Now())
	})
	_, ok := s.LastSessionEnd(context.Background(), "v")
	assert.False(t, ok)
	assert.Equal(t, 90*24*time.Hour, s.ttl)
}

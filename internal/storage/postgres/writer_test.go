package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/learntrack/internal/domain"
)

func TestBuildInsert_MinimalAndFullEvents(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := int64(42)
	user := "u1"
	events := []domain.Event{
		{EventID: "a", EventType: domain.EventSearch, Timestamp: ts, PrivacyLimited: true},
		{
			EventID: "b", EventType: domain.EventPageView, Timestamp: ts, SessionTimestamp: &ms,
			PrivacyLevel: domain.PrivacyAnalytics,
			Context:      &domain.Context{SessionID: "s", UserID: &user, Page: domain.PageInfo{URL: "/x"}},
			Properties:   map[string]any{"k": "v"},
		},
	}

	sql, args, err := buildInsert(events)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO telemetry_events (event_id,event_type,occurred_at,"))
	assert.True(t, strings.HasSuffix(sql, "ON CONFLICT (event_id) DO NOTHING"))
	assert.Contains(t, sql, "$11::jsonb")
	assert.Contains(t, sql, "$26::jsonb")
	require.Len(t, args, 2*len(insertCols))

	minimal := args[:len(insertCols)]
	assert.Equal(t, "a", minimal[0])
	assert.Equal(t, true, minimal[4])
	for i := 5; i < len(insertCols); i++ {
		switch v := minimal[i].(type) {
		case nil:
		case *string:
			assert.Nil(t, v, "column %s", insertCols[i])
		default:
			t.Errorf("column %s = %#v, want NULL", insertCols[i], v)
		}
	}

	full := args[len(insertCols):]
	assert.Equal(t, "s", full[6])
	assert.Equal(t, &user, full[7])
	assert.JSONEq(t, `{"k":"v"}`, full[12].(string))
	assert.Contains(t, full[10].(string), `"url":"/x"`)
}

func TestBuildInsert_UnencodableProperty(t *testing.T) {
	_, _, err := buildInsert([]domain.Event{{
		EventID: "a", EventType: domain.EventSearch, Timestamp: time.Now(),
		Context:    &domain.Context{SessionID: "s"},
		Properties: map[string]any{"ch": make(chan int)},
	}})
	assert.Error(t, err)
}

func TestMigrationNamesAreEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql"}, names)
}

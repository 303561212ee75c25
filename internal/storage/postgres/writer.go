package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/learntrack/internal/domain"
)

var insertCols = []string{
	"event_id", "event_type", "occurred_at", "session_timestamp_ms", "privacy_limited", "privacy_level",
	"session_id", "user_id", "device_fingerprint", "session_fingerprint", "page", "device_info", "properties",
}

type Writer struct {
	db *DB
}

func NewWriter(db *DB) *Writer { return &Writer{db: db} }

// InsertBatch inserts events with ON CONFLICT DO NOTHING to enforce idempotency.
func (w *Writer) InsertBatch(ctx context.Context, items []domain.Event) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	sql, args, err := buildInsert(items)
	if err != nil {
		return 0, err
	}
	ct, err := w.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Send stores a batch in one statement, so the batch succeeds or fails as a whole.
func (w *Writer) Send(ctx context.Context, events []domain.Event) error {
	if _, err := w.InsertBatch(ctx, events); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func buildInsert(items []domain.Event) (string, []any, error) {
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*len(insertCols))

	argi := 1
	next := func(v any, cast string) string {
		args = append(args, v)
		ph := fmt.Sprintf("$%d%s", argi, cast)
		argi++
		return ph
	}

	for _, ev := range items {
		ph := make([]string, 0, len(insertCols))

		// requireds
		ph = append(ph, next(ev.EventID, ""))
		ph = append(ph, next(string(ev.EventType), ""))
		ph = append(ph, next(ev.Timestamp, ""))

		// optionals
		ph = append(ph, next(ev.SessionTimestamp, ""))
		ph = append(ph, next(ev.PrivacyLimited, ""))
		ph = append(ph, next(nullIfEmpty(string(ev.PrivacyLevel)), ""))

		var (
			sessionID, page, device any
			userID, deviceFP, sessFP *string
		)
		if ev.Context != nil {
			sessionID = nullIfEmpty(ev.SessionID)
			userID, deviceFP, sessFP = ev.UserID, ev.DeviceFingerprint, ev.SessionFingerprint
			b, err := json.Marshal(ev.Page)
			if err != nil {
				return "", nil, fmt.Errorf("encode page of %s: %w", ev.EventID, err)
			}
			page = string(b)
			b, err = json.Marshal(ev.Device)
			if err != nil {
				return "", nil, fmt.Errorf("encode device of %s: %w", ev.EventID, err)
			}
			device = string(b)
		}
		ph = append(ph, next(sessionID, ""))
		ph = append(ph, next(userID, ""))
		ph = append(ph, next(deviceFP, ""))
		ph = append(ph, next(sessFP, ""))
		ph = append(ph, next(page, "::jsonb"))
		ph = append(ph, next(device, "::jsonb"))

		// properties JSONB (nil or JSON string)
		var props any
		if len(ev.Properties) > 0 {
			b, err := json.Marshal(ev.Properties)
			if err != nil {
				return "", nil, fmt.Errorf("encode properties of %s: %w", ev.EventID, err)
			}
			props = string(b)
		}
		ph = append(ph, next(props, "::jsonb"))

		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
	}

	sql := "INSERT INTO telemetry_events (" + strings.Join(insertCols, ",") + ") VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT (event_id) DO NOTHING"
	return sql, args, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

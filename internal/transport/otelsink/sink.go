// Package otelsink delivers event batches as OpenTelemetry log records.
package otelsink

import (
	"context"
	"encoding/json"
	"fmt"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"example.com/learntrack/internal/domain"
)

const scopeName = "learntrack.telemetry"

// recordEmitter is the part of otellog.Logger the sink needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// Sink emits one log record per event. With a nil provider it drops everything.
type Sink struct {
	logger recordEmitter
}

func NewSink(provider *sdklog.LoggerProvider) *Sink {
	if provider == nil {
		return &Sink{}
	}
	return &Sink{logger: provider.Logger(scopeName)}
}

// NewSinkWithLogger is used by tests to capture records.
func NewSinkWithLogger(l recordEmitter) *Sink {
	return &Sink{logger: l}
}

// Send encodes every event first, so an encoding failure emits nothing.
func (s *Sink) Send(ctx context.Context, events []domain.Event) error {
	if s.logger == nil || len(events) == 0 {
		return nil
	}
	records := make([]otellog.Record, 0, len(events))
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.EventID, err)
		}
		var rec otellog.Record
		rec.SetTimestamp(ev.Timestamp)
		rec.SetEventName(string(ev.EventType))
		rec.SetSeverity(otellog.SeverityInfo)
		if ev.EventType == domain.EventError {
			rec.SetSeverity(otellog.SeverityError)
		}
		rec.SetBody(otellog.BytesValue(body))
		rec.AddAttributes(
			otellog.String("event_id", ev.EventID),
			otellog.String("event_type", string(ev.EventType)),
			otellog.Bool("privacy_limited", ev.PrivacyLimited),
		)
		if ev.PrivacyLevel != "" {
			rec.AddAttributes(otellog.String("privacy_level", string(ev.PrivacyLevel)))
		}
		if ev.Context != nil {
			rec.AddAttributes(otellog.String("session_id", ev.SessionID))
			if ev.UserID != nil {
				rec.AddAttributes(otellog.String("user_id", *ev.UserID))
			}
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		s.logger.Emit(ctx, rec)
	}
	return nil
}

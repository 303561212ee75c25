package domain

import (
	"errors"
	"fmt"
	"time"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidateEvent checks a record received by the collector.
// now: reference time (injectable for tests)
// skew: allowable future skew (positive duration)
func ValidateEvent(ev *Event, now time.Time, skew time.Duration) []FieldError {
	var errs []FieldError

	if ev.EventID == "" {
		errs = append(errs, FieldError{"event_id", "required"})
	} else if len(ev.EventID) > MaxEventIDLen {
		errs = append(errs, FieldError{"event_id", fmt.Sprintf("max length %d", MaxEventIDLen)})
	}

	if ev.EventType == "" {
		errs = append(errs, FieldError{"event_type", "required"})
	} else if len(ev.EventType) > MaxEventTypeLen {
		errs = append(errs, FieldError{"event_type", fmt.Sprintf("max length %d", MaxEventTypeLen)})
	}

	if ev.Timestamp.IsZero() {
		errs = append(errs, FieldError{"timestamp", "required ISO-8601 timestamp"})
	} else if ev.Timestamp.After(now.Add(skew)) {
		errs = append(errs, FieldError{"timestamp", "must not be in the future (beyond allowed skew)"})
	}

	if ev.PrivacyLimited {
		if len(ev.Properties) > 0 {
			errs = append(errs, FieldError{"properties", "must be absent on privacy limited events"})
		}
		if ev.Context != nil {
			errs = append(errs, FieldError{"session_id", "context must be absent on privacy limited events"})
		}
	} else if ev.Context == nil || ev.SessionID == "" {
		errs = append(errs, FieldError{"session_id", "required"})
	}

	return errs
}

// ValidateBatch enforces top-level batch constraints (count caps) and per-item validation.
func ValidateBatch(events []Event, maxItems int, now time.Time, skew time.Duration) (allErrs [][]FieldError, topErr error) {
	if len(events) == 0 {
		return nil, errors.New("events: required and must contain at least one item")
	}
	if len(events) > maxItems {
		return nil, fmt.Errorf("events: max %d items", maxItems)
	}
	allErrs = make([][]FieldError, len(events))
	seen := make(map[string]int, len(events))
	var failed bool
	for i := range events {
		fe := ValidateEvent(&events[i], now, skew)
		if id := events[i].EventID; id != "" {
			if first, dup := seen[id]; dup {
				fe = append(fe, FieldError{"event_id", fmt.Sprintf("duplicate of events[%d]", first)})
			} else {
				seen[id] = i
			}
		}
		if len(fe) > 0 {
			allErrs[i] = fe
			failed = true
		}
	}
	if failed {
		return allErrs, fmt.Errorf("one or more events failed validation")
	}
	return nil, nil
}

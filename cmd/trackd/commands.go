package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"example.com/learntrack/internal/consent"
	"example.com/learntrack/internal/domain"
	"example.com/learntrack/internal/tracker"
)

const maxLineBytes = 1 << 20

// command is one line of input. Type is an event type or one of the control verbs
// handled in apply.
type command struct {
	Type       string           `json:"type"`
	Properties map[string]any   `json:"properties"`
	Immediate  bool             `json:"immediate"`
	URL        string           `json:"url"`
	Title      string           `json:"title"`
	Referrer   string           `json:"referrer"`
	UserID     string           `json:"user_id"`
	Message    string           `json:"message"`
	Consent    consent.Settings `json:"consent"`
	ActivityID string           `json:"activity_id"`
}

// runCommands applies newline-delimited JSON commands until r is exhausted or ctx is
// cancelled. Malformed lines are logged and skipped.
func runCommands(ctx context.Context, r io.Reader, tr *tracker.Tracker) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd command
		if err := json.Unmarshal(line, &cmd); err != nil {
			log.Printf("[trackd] skip malformed command: %v", err)
			continue
		}
		if cmd.Type == "" {
			log.Printf("[trackd] skip command without type")
			continue
		}
		apply(ctx, tr, cmd)
	}
	return sc.Err()
}

func apply(ctx context.Context, tr *tracker.Tracker, cmd command) {
	switch cmd.Type {
	case "navigate":
		tr.Navigated(&domain.PageInfo{URL: cmd.URL, Title: cmd.Title, Referrer: cmd.Referrer})
	case "hidden":
		tr.VisibilityChanged(true)
	case "visible":
		tr.VisibilityChanged(false)
	case "user":
		tr.SetUserID(cmd.UserID)
	case "consent":
		tr.UpdatePrivacySettings(cmd.Consent)
	case "flush":
		tr.Flush(ctx)
	case "error":
		tr.TrackErrorEvent(errors.New(cmd.Message), cmd.Properties)
	case "timer_start":
		tr.StartActivityTimer(cmd.ActivityID, stringProp(cmd.Properties, "activity_type"))
	case "timer_pause":
		tr.PauseActivityTimer(cmd.ActivityID)
	case "timer_resume":
		tr.ResumeActivityTimer(cmd.ActivityID)
	case "timer_interact":
		tr.RecordActivityInteraction(cmd.ActivityID)
	case "timer_end":
		tr.EndActivityTimer(cmd.ActivityID, cmd.Properties)
	default:
		tr.Track(domain.EventType(cmd.Type), cmd.Properties, tracker.TrackOptions{Immediate: cmd.Immediate})
	}
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

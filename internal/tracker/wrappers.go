package tracker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"example.com/learntrack/internal/domain"
)

// merge copies extra over base. Keys in extra win.
func merge(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// TrackPageView records a view of the current page and restarts the time-on-page clock.
func (t *Tracker) TrackPageView(props map[string]any) string {
	pg := t.pageSnapshot()
	t.mu.Lock()
	t.pageStart = t.now()
	t.pageURL = pg.URL
	t.mu.Unlock()
	return t.Track(domain.EventPageView, merge(map[string]any{
		"page_url":   pg.URL,
		"page_title": pg.Title,
		"referrer":   pg.Referrer,
	}, props), TrackOptions{})
}

func (t *Tracker) TrackCourseInteraction(courseID, action string, props map[string]any) string {
	return t.Track(domain.EventCourseInteraction, merge(map[string]any{
		"course_id": courseID,
		"action":    action,
	}, props), TrackOptions{})
}

// LearningMetrics describes one finished or ongoing learning activity.
type LearningMetrics struct {
	ActivityID     string
	Duration       time.Duration
	CompletionRate float64
	Interactions   int
}

// TrackLearningActivity records an activity together with its engagement score.
func (t *Tracker) TrackLearningActivity(activityType string, m LearningMetrics, props map[string]any) string {
	base := map[string]any{
		"activity_type":    activityType,
		"duration":         m.Duration.Milliseconds(),
		"completion_rate":  m.CompletionRate,
		"interactions":     m.Interactions,
		"engagement_score": EngagementScore(m.engagement()),
	}
	if m.ActivityID != "" {
		base["activity_id"] = m.ActivityID
	}
	return t.Track(domain.EventLearningActivity, merge(base, props), TrackOptions{})
}

func (m LearningMetrics) engagement() EngagementInput {
	return EngagementInput{Duration: m.Duration, CompletionRate: m.CompletionRate, Interactions: m.Interactions}
}

// QuizResult is the outcome of one quiz attempt.
type QuizResult struct {
	Score     float64
	MaxScore  float64
	TimeSpent time.Duration
	Attempt   int
	Passed    bool
}

func (t *Tracker) TrackQuizAttempt(quizID string, r QuizResult, props map[string]any) string {
	base := map[string]any{
		"quiz_id":        quizID,
		"score":          r.Score,
		"max_score":      r.MaxScore,
		"time_spent":     r.TimeSpent.Milliseconds(),
		"attempt_number": r.Attempt,
		"passed":         r.Passed,
	}
	if r.MaxScore > 0 {
		base["percentage"] = r.Score / r.MaxScore * 100
	}
	return t.Track(domain.EventQuizAttempt, merge(base, props), TrackOptions{})
}

func (t *Tracker) TrackSearch(query string, resultsCount int, props map[string]any) string {
	return t.Track(domain.EventSearch, merge(map[string]any{
		"search_query":  query,
		"results_count": resultsCount,
	}, props), TrackOptions{})
}

func (t *Tracker) TrackUserEngagement(action string, props map[string]any) string {
	return t.Track(domain.EventUserEngagement, merge(map[string]any{
		"engagement_type": action,
	}, props), TrackOptions{})
}

func (t *Tracker) TrackPersonalizationEvent(kind string, props map[string]any) string {
	return t.Track(domain.EventPersonalization, merge(map[string]any{
		"personalization_type": kind,
	}, props), TrackOptions{})
}

// TrackErrorEvent records err and sends it right away. A string "error_stack" in props
// replaces the captured goroutine stack; either is cut to MaxStackLength.
func (t *Tracker) TrackErrorEvent(err error, props map[string]any) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	stack, ok := props["error_stack"].(string)
	if !ok {
		stack = string(debug.Stack())
	}
	base := map[string]any{
		"error_message": msg,
		"error_type":    fmt.Sprintf("%T", err),
		"page_url":      t.pageSnapshot().URL,
	}
	out := merge(base, props)
	out["error_stack"] = cut(stack, t.cfg.MaxStackLength)
	return t.Track(domain.EventError, out, TrackOptions{Immediate: true})
}

// TrackSessionStart records the session_start event.
func (t *Tracker) TrackSessionStart(ctx context.Context) string {
	pg := t.pageSnapshot()
	return t.Track(domain.EventSessionStart, t.session.StartProperties(ctx, pg.URL, pg.Referrer), TrackOptions{})
}

// TrackSessionEnd records session_end once and flushes in the background. Later calls
// return "".
func (t *Tracker) TrackSessionEnd(ctx context.Context) string {
	props, ok := t.session.End(ctx)
	if !ok {
		return ""
	}
	return t.Track(domain.EventSessionEnd, props, TrackOptions{Immediate: true})
}

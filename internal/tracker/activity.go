package tracker

import "example.com/learntrack/internal/domain"

// StartActivityTimer starts measuring an activity. Starting an id that is already
// running restarts it.
func (t *Tracker) StartActivityTimer(id, activityType string) {
	t.timers.Start(id, activityType)
}

func (t *Tracker) PauseActivityTimer(id string) { t.timers.Pause(id) }

func (t *Tracker) ResumeActivityTimer(id string) { t.timers.Resume(id) }

// RecordActivityInteraction counts one interaction against a running activity.
func (t *Tracker) RecordActivityInteraction(id string) { t.timers.Interact(id) }

// EndActivityTimer stops the timer and records activity_completion. props may carry
// completion metadata; completion_rate defaults to 1. Unknown ids return "".
func (t *Tracker) EndActivityTimer(id string, props map[string]any) string {
	res, ok := t.timers.End(id)
	if !ok {
		return ""
	}
	return t.Track(domain.EventActivityCompletion, merge(map[string]any{
		"activity_id":     res.ActivityID,
		"activity_type":   res.ActivityType,
		"total_time":      res.TotalTime.Milliseconds(),
		"active_time":     res.ActiveTime.Milliseconds(),
		"interactions":    res.Interactions,
		"completion_rate": 1.0,
	}, props), TrackOptions{})
}

// Package activity measures named, pausable learning activities.
package activity

import (
	"sync"
	"time"
)

// Timer is the state of one activity in progress.
type Timer struct {
	ActivityType string
	StartTime    time.Time
	PausedTime   time.Duration
	PausedAt     *time.Time
	Interactions int
}

// Result is what End reports for a finished activity.
type Result struct {
	ActivityID   string
	ActivityType string
	TotalTime    time.Duration
	ActiveTime   time.Duration
	Interactions int
}

// Registry maps activity ids to running timers. Unknown ids are ignored by every
// operation.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*Timer
	now    func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{timers: map[string]*Timer{}, now: now}
}

// Start creates a fresh timer, replacing any timer with the same id.
func (r *Registry) Start(id, activityType string) {
	r.mu.Lock()
	r.timers[id] = &Timer{ActivityType: activityType, StartTime: r.now()}
	r.mu.Unlock()
}

func (r *Registry) Pause(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || t.PausedAt != nil {
		return
	}
	at := r.now()
	t.PausedAt = &at
}

func (r *Registry) Resume(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok || t.PausedAt == nil {
		return
	}
	if d := r.now().Sub(*t.PausedAt); d > 0 {
		t.PausedTime += d
	}
	t.PausedAt = nil
}

// Interact counts one user interaction on a running activity.
func (r *Registry) Interact(id string) {
	r.mu.Lock()
	if t, ok := r.timers[id]; ok {
		t.Interactions++
	}
	r.mu.Unlock()
}

// End removes the timer and reports its durations. A timer ended while paused does
// not count the open pause as active time. ok is false for unknown ids.
func (r *Registry) End(id string) (res Result, ok bool) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if ok {
		delete(r.timers, id)
	}
	r.mu.Unlock()
	if !ok {
		return Result{}, false
	}

	now := r.now()
	total := now.Sub(t.StartTime)
	if total < 0 {
		total = 0
	}
	paused := t.PausedTime
	if t.PausedAt != nil {
		paused += now.Sub(*t.PausedAt)
	}
	active := total - paused
	if active < 0 {
		active = 0
	}
	return Result{
		ActivityID:   id,
		ActivityType: t.ActivityType,
		TotalTime:    total,
		ActiveTime:   active,
		Interactions: t.Interactions,
	}, true
}

// Len reports the number of running timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Get returns a copy of the timer for id.
func (r *Registry) Get(id string) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	if !ok {
		return Timer{}, false
	}
	return *t, true
}

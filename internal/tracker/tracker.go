// Package tracker is the entry point of the telemetry pipeline: it gates events on
// consent, enriches them and hands them to the batcher.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/learntrack/internal/activity"
	"example.com/learntrack/internal/batch"
	"example.com/learntrack/internal/config"
	"example.com/learntrack/internal/consent"
	"example.com/learntrack/internal/device"
	"example.com/learntrack/internal/domain"
	"example.com/learntrack/internal/fingerprint"
	"example.com/learntrack/internal/session"
)

// Options wires a Tracker. Only Sender is required; a zero Config means
// config.Defaults().
type Options struct {
	Config       config.Config
	Sender       batch.Sender
	Consent      consent.Fetcher
	Device       device.Source
	Signals      fingerprint.Signals
	Page         PageSource
	SessionStore session.Store
	// Visitor keys the session store, e.g. a first-party visitor cookie.
	Visitor string
	Now     func() time.Time
}

// TrackOptions modifies a single Track call.
type TrackOptions struct {
	// Immediate sends the queue right away instead of waiting for the timer.
	Immediate bool
}

// Tracker is owned by the host's composition root. All methods are safe for
// concurrent use and never return delivery errors to the caller.
type Tracker struct {
	cfg        config.Config
	consent    *consent.Store
	fetcher    consent.Fetcher
	session    *session.Manager
	timers     *activity.Registry
	batcher    *batch.Batcher
	generator  *fingerprint.Generator
	page       PageSource
	deviceInfo domain.DeviceInfo
	sanitizer  sanitizer
	now        func() time.Time

	mu                 sync.RWMutex
	userID             *string
	deviceFingerprint  *string
	sessionFingerprint *string
	pageStart          time.Time
	pageURL            string

	startOnce   sync.Once
	destroyOnce sync.Once
}

func New(opts Options) *Tracker {
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Defaults()
	}
	cfg.Normalize()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	page := opts.Page
	if page == nil {
		page = &StaticPage{}
	}

	t := &Tracker{
		cfg:        cfg,
		consent:    consent.NewStore(cfg.PrivacyCompliant),
		fetcher:    opts.Consent,
		session:    session.NewManager(cfg.SessionTimeout, opts.SessionStore, opts.Visitor, now),
		timers:     activity.NewRegistry(now),
		batcher:    batch.NewBatcher(opts.Sender, cfg.MaxQueueSize, cfg.BatchSize, cfg.FlushInterval, cfg.EnableDebug),
		generator:  fingerprint.NewGenerator(opts.Signals),
		page:       page,
		deviceInfo: device.Collect(opts.Device),
		sanitizer:  newSanitizer(cfg.MaxPropertyLength, map[string]int{"error_stack": cfg.MaxStackLength}),
		now:        now,
	}
	return t
}

// Start loads consent, computes fingerprints when allowed, records the session start
// and the first page view, then starts the periodic flush. Later calls do nothing.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.consent.Load(ctx, t.fetcher)

		if t.cfg.FingerprintingEnabled && (!t.cfg.PrivacyCompliant || t.consent.Granted(consent.Behavioral)) {
			dfp := t.generator.Device(ctx)
			pg := t.pageSnapshot()
			sfp := t.generator.Session(fingerprint.SessionMeta{
				SessionID: t.session.ID(),
				StartTime: t.session.StartTime(),
				EntryURL:  pg.URL,
				Referrer:  pg.Referrer,
				UserAgent: t.deviceInfo.UserAgent,
			})
			t.mu.Lock()
			t.deviceFingerprint = nonEmpty(dfp)
			t.sessionFingerprint = nonEmpty(sfp)
			t.mu.Unlock()
		}

		t.TrackSessionStart(ctx)
		t.TrackPageView(nil)
		t.batcher.Start(ctx)
		if t.cfg.EnableDebug {
			log.Printf("[tracker] started: %s level=%s", t.session, t.consent.Level())
		}
	})
}

// Track records one event and returns its id. Without consent for the event's category
// a minimal event is queued instead; the id is valid either way.
func (t *Tracker) Track(eventType domain.EventType, props map[string]any, opts TrackOptions) string {
	var ev domain.Event
	if t.consent.HasConsentForEvent(eventType) {
		ev = t.fullEvent(eventType, props)
	} else {
		ev = t.minimalEvent(eventType)
	}
	eventsTracked.WithLabelValues(string(ev.EventType), boolLabel(ev.PrivacyLimited)).Inc()

	t.batcher.Push(ev, opts.Immediate)
	if !ev.PrivacyLimited {
		t.session.UpdateLastActivity()
	}
	if t.cfg.EnableDebug {
		log.Printf("[tracker] %s %s limited=%t", ev.EventType, ev.EventID, ev.PrivacyLimited)
	}
	return ev.EventID
}

func (t *Tracker) minimalEvent(eventType domain.EventType) domain.Event {
	return domain.Event{
		EventID:        newEventID(),
		EventType:      eventType,
		Timestamp:      t.now().UTC(),
		PrivacyLimited: true,
	}
}

func (t *Tracker) fullEvent(eventType domain.EventType, props map[string]any) domain.Event {
	ts := t.now()
	sinceStart := t.session.SinceStart(ts)

	t.mu.RLock()
	ec := &domain.Context{
		UserID:             clonePtr(t.userID),
		SessionID:          t.session.ID(),
		DeviceFingerprint:  clonePtr(t.deviceFingerprint),
		SessionFingerprint: clonePtr(t.sessionFingerprint),
	}
	t.mu.RUnlock()
	ec.Page = t.pageSnapshot()
	ec.Device = t.deviceInfo
	ec.Device.Languages = append([]string(nil), t.deviceInfo.Languages...)

	return domain.Event{
		EventID:          newEventID(),
		EventType:        eventType,
		Timestamp:        ts.UTC(),
		SessionTimestamp: &sinceStart,
		PrivacyLevel:     t.consent.Level(),
		Context:          ec,
		Properties:       t.sanitizer.apply(props),
	}
}

// SetUserID attaches an authenticated user to future events. Empty clears it.
func (t *Tracker) SetUserID(id string) {
	t.mu.Lock()
	t.userID = nonEmpty(id)
	t.mu.Unlock()
}

// UpdatePrivacySettings merges new consent values. Events already queued keep the
// privacy level they were created with.
func (t *Tracker) UpdatePrivacySettings(partial consent.Settings) {
	t.consent.Update(partial)
}

// Flush sends one batch and waits for it. Failures are handled by the batcher.
func (t *Tracker) Flush(ctx context.Context) {
	_ = t.batcher.Flush(ctx)
}

// flushAll drains the queue batch by batch, stopping at the first failure.
func (t *Tracker) flushAll(ctx context.Context) {
	for t.batcher.Len() > 0 {
		if err := t.batcher.Flush(ctx); err != nil {
			return
		}
	}
}

// Destroy records the session end, drains the queue and stops the periodic flush.
// It may run alongside Track; events tracked after it starts stay queued or go out
// with the next background send. Later calls do nothing.
func (t *Tracker) Destroy(ctx context.Context) {
	t.destroyOnce.Do(func() {
		t.batcher.Stop()
		t.TrackSessionEnd(ctx)
		t.flushAll(ctx)
		t.batcher.Wait()
	})
}

// SessionID returns the current session id.
func (t *Tracker) SessionID() string { return t.session.ID() }

// SessionIdle reports how long the session has been idle and whether that exceeds the
// advisory timeout.
func (t *Tracker) SessionIdle() (time.Duration, bool) {
	return t.session.Idle(), t.session.Expired()
}

// QueueLen returns the number of events waiting to be sent.
func (t *Tracker) QueueLen() int { return t.batcher.Len() }

// Queued returns a copy of the pending events.
func (t *Tracker) Queued() []domain.Event { return t.batcher.Snapshot() }

// Wait blocks until background sends triggered by Track have completed.
func (t *Tracker) Wait() { t.batcher.Wait() }

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "evt_" + id.String()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

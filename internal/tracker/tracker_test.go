package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/learntrack/internal/config"
	"example.com/learntrack/internal/consent"
	"example.com/learntrack/internal/domain"
	"example.com/learntrack/internal/fingerprint"
	"example.com/learntrack/internal/session"
)

type recordingSender struct {
	mu      sync.Mutex
	batches [][]domain.Event
	err     error
}

func (s *recordingSender) Send(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]domain.Event(nil), events...))
	return s.err
}

func (s *recordingSender) sent() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type fetcherFunc func(ctx context.Context) (consent.Settings, error)

func (f fetcherFunc) FetchPrivacySettings(ctx context.Context) (consent.Settings, error) {
	return f(ctx)
}

func settings(s consent.Settings) consent.Fetcher {
	return fetcherFunc(func(context.Context) (consent.Settings, error) { return s, nil })
}

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

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.BatchSize = 100
	cfg.FlushInterval = time.Hour
	return cfg
}

func newTracker(t *testing.T, cfg config.Config, opts Options) (*Tracker, *recordingSender, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := &recordingSender{}
	opts.Config = cfg
	if opts.Sender == nil {
		opts.Sender = s
	}
	if opts.Page == nil {
		opts.Page = NewStaticPage(domain.PageInfo{URL: "https://learn.example/courses", Title: "Courses", Referrer: "https://search.example"})
	}
	opts.Now = clock.Now
	tr := New(opts)
	t.Cleanup(func() { tr.batcher.Stop() })
	return tr, s, clock
}

func ofType(events []domain.Event, et domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.EventType == et {
			out = append(out, e)
		}
	}
	return out
}

func TestTrack_EventIDsAreUnique(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{})

	seen := map[string]bool{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id := tr.Track("custom", nil, TrackOptions{})
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	tr.Wait()

	assert.Len(t, seen, 80)
}

func TestStart_AnalyticsOnlyConsent(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{
		Consent: settings(consent.Settings{"analytics_consent": true}),
		Signals: fingerprint.StaticSignals{CanvasData: "canvas"},
	})
	tr.Start(context.Background())

	tr.TrackPageView(nil)

	views := ofType(tr.Queued(), domain.EventPageView)
	require.Len(t, views, 2)
	ev := views[1]
	assert.False(t, ev.PrivacyLimited)
	assert.Equal(t, domain.PrivacyAnalytics, ev.PrivacyLevel)
	require.NotNil(t, ev.Context)
	assert.Nil(t, ev.DeviceFingerprint)
	assert.Nil(t, ev.SessionFingerprint)
	assert.Equal(t, tr.SessionID(), ev.SessionID)
	assert.Equal(t, "https://learn.example/courses", ev.Page.URL)
	assert.Equal(t, "Courses", ev.Properties["page_title"])

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"device_fingerprint":null`)
}

func TestStart_FingerprintsWithBehavioralConsent(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{
		Consent: settings(consent.Settings{"analytics_consent": true, "personalization_consent": true, "behavioral_analysis": true}),
		Signals: fingerprint.StaticSignals{CanvasData: "canvas", FontList: []string{"Arial"}},
	})
	tr.Start(context.Background())

	ev := tr.Queued()[0]
	require.NotNil(t, ev.DeviceFingerprint)
	require.NotNil(t, ev.SessionFingerprint)
	assert.Len(t, *ev.DeviceFingerprint, fingerprint.DeviceHashLen)
	assert.Len(t, *ev.SessionFingerprint, fingerprint.SessionHashLen)
	assert.Equal(t, domain.PrivacyFull, ev.PrivacyLevel)
}

func TestStart_FingerprintingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.FingerprintingEnabled = false
	tr, _, _ := newTracker(t, cfg, Options{
		Consent: settings(consent.Settings{"analytics_consent": true, "behavioral_analysis": true}),
		Signals: fingerprint.StaticSignals{CanvasData: "canvas"},
	})
	tr.Start(context.Background())

	assert.Nil(t, tr.Queued()[0].DeviceFingerprint)
}

func TestTrack_ConsentFetchFailureLimitsEvents(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{
		Consent: fetcherFunc(func(context.Context) (consent.Settings, error) {
			return nil, errors.New("503")
		}),
	})
	tr.Start(context.Background())

	tr.TrackCourseInteraction("c-1", "enroll", map[string]any{"source": "catalog"})

	got := ofType(tr.Queued(), domain.EventCourseInteraction)
	require.Len(t, got, 1)
	assert.True(t, got[0].PrivacyLimited)
	assert.Nil(t, got[0].Context)
	assert.Empty(t, got[0].Properties)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.ElementsMatch(t, []string{"event_id", "event_type", "timestamp", "privacy_limited"}, keys(raw))

	starts := ofType(tr.Queued(), domain.EventSessionStart)
	require.Len(t, starts, 1)
	assert.False(t, starts[0].PrivacyLimited)
	assert.Equal(t, domain.PrivacyMinimal, starts[0].PrivacyLevel)
}

func TestNew_ZeroConfigIsPrivacyCompliant(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := &recordingSender{}
	tr := New(Options{
		Sender:  s,
		Consent: settings(consent.Settings{"essential": true}),
		Page:    NewStaticPage(domain.PageInfo{URL: "https://learn.example/courses"}),
		Now:     clock.Now,
	})
	t.Cleanup(func() { tr.batcher.Stop() })

	assert.True(t, tr.cfg.PrivacyCompliant)
	assert.True(t, tr.cfg.FingerprintingEnabled)
	assert.Equal(t, config.DefaultBatchSize, tr.cfg.BatchSize)

	tr.Start(context.Background())
	tr.TrackCourseInteraction("c1", "enroll", nil)

	got := ofType(append(s.sent(), tr.Queued()...), domain.EventCourseInteraction)
	require.Len(t, got, 1)
	assert.True(t, got[0].PrivacyLimited)
	assert.Nil(t, got[0].Context)
	assert.Empty(t, got[0].Properties)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestTrack_DeniedBeforeConsentResolves(t *testing.T) {
	tr, s, _ := newTracker(t, testConfig(), Options{})

	tr.TrackSearch("go", 3, nil)
	tr.TrackErrorEvent(errors.New("boom"), nil)
	tr.Wait()

	sent := s.sent()
	require.Len(t, sent, 2)
	assert.True(t, sent[0].PrivacyLimited)
	assert.False(t, sent[1].PrivacyLimited)
	assert.Equal(t, domain.PrivacyUnknown, sent[1].PrivacyLevel)
}

func TestTrack_NonCompliantModeSendsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, _, _ := newTracker(t, cfg, Options{})

	tr.TrackUserEngagement("scroll", nil)

	ev := tr.Queued()[0]
	assert.False(t, ev.PrivacyLimited)
	assert.Equal(t, "scroll", ev.Properties["engagement_type"])
}

func TestUpdatePrivacySettings_AffectsLaterEventsOnly(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{Consent: settings(consent.Settings{"analytics_consent": true})})
	tr.Start(context.Background())

	tr.TrackQuizAttempt("q1", QuizResult{Score: 8, MaxScore: 10, Attempt: 1, Passed: true}, nil)
	tr.UpdatePrivacySettings(consent.Settings{"personalization_consent": true})
	tr.TrackQuizAttempt("q1", QuizResult{Score: 9, MaxScore: 10, Attempt: 2, Passed: true}, nil)

	quizzes := ofType(tr.Queued(), domain.EventQuizAttempt)
	require.Len(t, quizzes, 2)
	assert.True(t, quizzes[0].PrivacyLimited)
	assert.False(t, quizzes[1].PrivacyLimited)
	assert.InDelta(t, 90.0, quizzes[1].Properties["percentage"], 1e-9)
}

func TestSetUserID(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, _, _ := newTracker(t, cfg, Options{})

	tr.SetUserID("u-42")
	tr.Track("custom", nil, TrackOptions{})
	tr.SetUserID("")
	tr.Track("custom", nil, TrackOptions{})

	q := tr.Queued()
	require.NotNil(t, q[0].UserID)
	assert.Equal(t, "u-42", *q[0].UserID)
	assert.Nil(t, q[1].UserID)
}

func TestTrack_AutoFlushAtBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	tr, s, _ := newTracker(t, cfg, Options{})

	tr.Track("a", nil, TrackOptions{})
	tr.Track("b", nil, TrackOptions{})
	assert.Equal(t, 0, tr.QueueLen())
	tr.Track("c", nil, TrackOptions{})
	tr.Wait()

	assert.Equal(t, 1, tr.QueueLen())
	assert.Len(t, s.sent(), 2)
}

func TestTrack_FailedBatchOverCapIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 5
	cfg.MaxQueueSize = 4
	s := &recordingSender{err: errors.New("HTTP 500")}
	tr, _, _ := newTracker(t, cfg, Options{Sender: s})

	for i := 0; i < 5; i++ {
		tr.Track("custom", nil, TrackOptions{})
	}
	tr.Wait()

	assert.Len(t, s.sent(), 5)
	assert.Equal(t, 0, tr.QueueLen())
}

func TestTrackErrorEvent_ImmediateAndTruncated(t *testing.T) {
	cfg := testConfig()
	cfg.MaxStackLength = 64
	tr, s, _ := newTracker(t, cfg, Options{})

	id := tr.TrackErrorEvent(errors.New("x"), map[string]any{"error_stack": strings.Repeat("frame\n", 100)})
	tr.Wait()

	sent := s.sent()
	require.Len(t, sent, 1)
	ev := sent[0]
	assert.Equal(t, id, ev.EventID)
	assert.False(t, ev.PrivacyLimited)
	assert.Equal(t, "x", ev.Properties["error_message"])
	assert.Len(t, ev.Properties["error_stack"], 64)
	assert.Equal(t, 0, tr.QueueLen())
}

func TestTrackErrorEvent_CapturesStack(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{Sender: &recordingSender{err: errors.New("offline")}})

	tr.TrackErrorEvent(errors.New("x"), nil)
	tr.Wait()

	q := tr.Queued()
	require.Len(t, q, 1)
	stack := q[0].Properties["error_stack"].(string)
	assert.NotEmpty(t, stack)
	assert.LessOrEqual(t, len([]rune(stack)), config.DefaultMaxStackLength)
}

func TestTrack_SanitizesProperties(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	cfg.MaxPropertyLength = 10
	tr, _, _ := newTracker(t, cfg, Options{})

	caller := map[string]any{
		"note":          strings.Repeat("a", 20),
		"user_password": "hunter2",
		"nested":        map[string]any{"API_TOKEN": "abc"},
	}
	tr.Track("custom", caller, TrackOptions{})
	caller["note"] = "changed"

	props := tr.Queued()[0].Properties
	assert.Equal(t, strings.Repeat("a", 10)+"...", props["note"])
	assert.Equal(t, "[REDACTED]", props["user_password"])
	assert.Equal(t, "[REDACTED]", props["nested"].(map[string]any)["API_TOKEN"])
}

func TestActivityTimer_PauseIsExcluded(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, _, clock := newTracker(t, cfg, Options{})

	tr.StartActivityTimer("lesson-1", "video")
	clock.Advance(time.Second)
	tr.PauseActivityTimer("lesson-1")
	clock.Advance(500 * time.Millisecond)
	tr.ResumeActivityTimer("lesson-1")
	tr.RecordActivityInteraction("lesson-1")
	clock.Advance(time.Second)

	id := tr.EndActivityTimer("lesson-1", map[string]any{"completion_rate": 0.5})
	require.NotEmpty(t, id)

	ev := tr.Queued()[0]
	assert.Equal(t, domain.EventActivityCompletion, ev.EventType)
	assert.Equal(t, int64(2500), ev.Properties["total_time"])
	assert.Equal(t, int64(2000), ev.Properties["active_time"])
	assert.Equal(t, 1, ev.Properties["interactions"])
	assert.Equal(t, 0.5, ev.Properties["completion_rate"])
}

func TestActivityTimer_UnknownIDIsIgnored(t *testing.T) {
	tr, _, _ := newTracker(t, testConfig(), Options{})

	tr.PauseActivityTimer("nope")
	tr.ResumeActivityTimer("nope")
	assert.Empty(t, tr.EndActivityTimer("nope", nil))
	assert.Equal(t, 0, tr.QueueLen())
}

func TestTrackLearningActivity_EngagementScore(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, _, _ := newTracker(t, cfg, Options{})

	tr.TrackLearningActivity("reading", LearningMetrics{Duration: 30 * time.Second, CompletionRate: 1, Interactions: 5}, nil)

	assert.InDelta(t, 0.15+0.4+0.15, tr.Queued()[0].Properties["engagement_score"], 1e-9)
}

func TestNavigated_TimeOnPageThenPageView(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, _, clock := newTracker(t, cfg, Options{})
	tr.Start(context.Background())

	clock.Advance(4 * time.Second)
	tr.Navigated(&domain.PageInfo{URL: "https://learn.example/quiz", Title: "Quiz"})

	q := tr.Queued()
	require.GreaterOrEqual(t, len(q), 2)
	top, view := q[len(q)-2], q[len(q)-1]
	assert.Equal(t, domain.EventTimeOnPage, top.EventType)
	assert.Equal(t, "https://learn.example/courses", top.Properties["page_url"])
	assert.Equal(t, int64(4000), top.Properties["time_on_page"])
	assert.Equal(t, domain.EventPageView, view.EventType)
	assert.Equal(t, "https://learn.example/quiz", view.Page.URL)
}

func TestVisibilityChanged_HiddenFlushes(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	tr, s, _ := newTracker(t, cfg, Options{})
	tr.Start(context.Background())

	tr.VisibilityChanged(true)
	tr.Wait()
	tr.VisibilityChanged(false)

	assert.Len(t, ofType(s.sent(), domain.EventPageBlur), 1)
	assert.Len(t, ofType(tr.Queued(), domain.EventPageFocus), 1)
}

func TestUnload_SendsSessionEndOnce(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	store := session.NewMemoryStore()
	tr, s, clock := newTracker(t, cfg, Options{SessionStore: store, Visitor: "v1"})
	tr.Start(context.Background())

	clock.Advance(time.Minute)
	tr.Unload(context.Background())
	tr.Destroy(context.Background())

	ends := ofType(s.sent(), domain.EventSessionEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, int64(60000), ends[0].Properties["session_duration"])
	assert.Len(t, ofType(s.sent(), domain.EventTimeOnPage), 1)
	assert.Equal(t, 0, tr.QueueLen())

	_, ok := store.LastSessionEnd(context.Background(), "v1")
	assert.True(t, ok)
}

func TestStart_ReturningVisitor(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyCompliant = false
	store := session.NewMemoryStore()
	store.SaveSessionEnd(context.Background(), "v1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	tr, _, _ := newTracker(t, cfg, Options{SessionStore: store, Visitor: "v1"})
	tr.Start(context.Background())

	start := ofType(tr.Queued(), domain.EventSessionStart)[0]
	assert.Equal(t, true, start.Properties["is_returning_user"])
	assert.Equal(t, int64(time.Hour.Milliseconds()), start.Properties["time_since_last_session"])
	assert.Equal(t, "https://learn.example/courses", start.Properties["entry_point"])
}

func TestDestroy_DrainsQueue(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.PrivacyCompliant = false
	tr, s, _ := newTracker(t, cfg, Options{})
	tr.Start(context.Background())
	tr.Track("a", nil, TrackOptions{})
	tr.Track("b", nil, TrackOptions{})
	tr.Track("c", nil, TrackOptions{})

	tr.Destroy(context.Background())
	tr.Destroy(context.Background())

	assert.Equal(t, 0, tr.QueueLen())
	assert.Len(t, ofType(s.sent(), domain.EventSessionEnd), 1)
	assert.Len(t, s.sent(), 6)
}

func TestDestroy_ConcurrentWithTrack(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.PrivacyCompliant = false
	tr, s, _ := newTracker(t, cfg, Options{})
	tr.Start(context.Background())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				tr.Track("custom", nil, TrackOptions{})
			}
		}()
	}
	assert.NotPanics(t, func() { tr.Destroy(context.Background()) })
	wg.Wait()
	tr.Wait()

	all := append(s.sent(), tr.Queued()...)
	assert.Len(t, ofType(all, domain.EventSessionEnd), 1)
	assert.Len(t, ofType(all, "custom"), 80)
}

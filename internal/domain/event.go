package domain

import "time"

// EventType names one kind of telemetry record. Free-form custom types are allowed.
type EventType string

const (
	EventPageView           EventType = "page_view"
	EventCourseInteraction  EventType = "course_interaction"
	EventLearningActivity   EventType = "learning_activity"
	EventQuizAttempt        EventType = "quiz_attempt"
	EventSearch             EventType = "search"
	EventUserEngagement     EventType = "user_engagement"
	EventPersonalization    EventType = "personalization_event"
	EventError              EventType = "error_event"
	EventSessionStart       EventType = "session_start"
	EventSessionEnd         EventType = "session_end"
	EventTimeOnPage         EventType = "time_on_page"
	EventActivityCompletion EventType = "activity_completion"
	EventPageBlur           EventType = "page_blur"
	EventPageFocus          EventType = "page_focus"
)

// PrivacyLevel classifies the consent state an event was created under.
type PrivacyLevel string

const (
	PrivacyFull      PrivacyLevel = "full"
	PrivacyAnalytics PrivacyLevel = "analytics"
	PrivacyMinimal   PrivacyLevel = "minimal"
	PrivacyUnknown   PrivacyLevel = "unknown"
)

// Event is one telemetry record. It is never modified after it is queued.
//
// A minimal event (PrivacyLimited) carries only id, type and timestamp: Context is nil
// and Properties is empty, so neither appears in the JSON encoding.
type Event struct {
	EventID          string       `json:"event_id"`
	EventType        EventType    `json:"event_type"`
	Timestamp        time.Time    `json:"timestamp"`
	SessionTimestamp *int64       `json:"session_timestamp,omitempty"`
	PrivacyLimited   bool         `json:"privacy_limited,omitempty"`
	PrivacyLevel     PrivacyLevel `json:"privacy_level,omitempty"`

	*Context

	Properties map[string]any `json:"properties,omitempty"`
}

// Context is the enrichment attached to full events.
type Context struct {
	UserID             *string    `json:"user_id"`
	SessionID          string     `json:"session_id"`
	DeviceFingerprint  *string    `json:"device_fingerprint"`
	SessionFingerprint *string    `json:"session_fingerprint"`
	Page               PageInfo   `json:"page"`
	Device             DeviceInfo `json:"device_info"`
}

// PageInfo is a snapshot of the page at the moment an event is created.
type PageInfo struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Referrer string         `json:"referrer"`
	Viewport Viewport       `json:"viewport"`
	Scroll   ScrollPosition `json:"scroll"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ScrollPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	// Depth is the scrolled fraction of the document, 0..1.
	Depth float64 `json:"depth"`
}

// DeviceInfo holds static attributes of the environment, read once at startup.
// Unsupported attributes are left at their zero value and omitted.
type DeviceInfo struct {
	UserAgent           string   `json:"user_agent,omitempty"`
	ScreenResolution    string   `json:"screen_resolution,omitempty"`
	Viewport            string   `json:"viewport,omitempty"`
	ColorDepth          int      `json:"color_depth,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	Language            string   `json:"language,omitempty"`
	Languages           []string `json:"languages,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	CookieEnabled       *bool    `json:"cookie_enabled,omitempty"`
	DoNotTrack          string   `json:"do_not_track,omitempty"`
	HardwareConcurrency int      `json:"hardware_concurrency,omitempty"`
	DeviceMemory        float64  `json:"device_memory,omitempty"`
	ConnectionType      string   `json:"connection_type,omitempty"`
	Online              *bool    `json:"online,omitempty"`
}

// Batch is the request body of the events endpoint.
type Batch struct {
	Events []Event `json:"events"`
}

// Validation constraints applied by the collector.
const (
	MaxEventIDLen    = 128
	MaxEventTypeLen  = 128
	MaxBatchEvents   = 1000
	DefaultClockSkew = 5 * time.Minute
)

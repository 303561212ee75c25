// Package consent holds the user's privacy choices and decides which events may carry data.
package consent

import (
	"context"
	"log"
	"maps"
	"sync"

	"example.com/learntrack/internal/domain"
)

// Category is a named privacy permission.
type Category string

const (
	Essential       Category = "essential"
	Analytics       Category = "analytics_consent"
	Personalization Category = "personalization_consent"
	Behavioral      Category = "behavioral_analysis"
)

// Settings maps category names to the user's choice.
type Settings map[string]bool

// Fetcher loads the stored settings, typically over HTTP.
type Fetcher interface {
	FetchPrivacySettings(ctx context.Context) (Settings, error)
}

// essentialEvents are always allowed.
var essentialEvents = map[domain.EventType]bool{
	domain.EventSessionStart: true,
	domain.EventSessionEnd:   true,
	domain.EventError:        true,
}

var requiredCategory = map[domain.EventType]Category{
	domain.EventPageView:           Analytics,
	domain.EventSearch:             Analytics,
	domain.EventTimeOnPage:         Analytics,
	domain.EventPageBlur:           Analytics,
	domain.EventPageFocus:          Analytics,
	domain.EventCourseInteraction:  Personalization,
	domain.EventLearningActivity:   Personalization,
	domain.EventQuizAttempt:        Personalization,
	domain.EventPersonalization:    Personalization,
	domain.EventActivityCompletion: Personalization,
	domain.EventUserEngagement:     Behavioral,
}

// RequiredCategory returns the category an event type needs. Types without an
// entry need analytics consent.
func RequiredCategory(t domain.EventType) Category {
	if c, ok := requiredCategory[t]; ok {
		return c
	}
	return Analytics
}

// IsEssential reports whether t bypasses consent.
func IsEssential(t domain.EventType) bool { return essentialEvents[t] }

// FailClosed is the fallback used when settings cannot be loaded.
func FailClosed() Settings { return Settings{string(Essential): true} }

// Store is the process-wide consent state. Until Load or Update resolves it, every
// non-essential event is denied.
type Store struct {
	mu               sync.RWMutex
	settings         Settings
	resolved         bool
	privacyCompliant bool
}

// NewStore creates an unresolved store. With privacyCompliant false every event is
// treated as consented.
func NewStore(privacyCompliant bool) *Store {
	return &Store{privacyCompliant: privacyCompliant}
}

// Load fetches the settings once. A nil fetcher, a fetch error or an empty answer
// resolves to essential-only consent.
func (s *Store) Load(ctx context.Context, f Fetcher) Settings {
	var loaded Settings
	if f != nil {
		got, err := f.FetchPrivacySettings(ctx)
		if err != nil {
			log.Printf("[consent] fetch privacy settings FAILED, falling back to essential only: %v", err)
		} else {
			loaded = got
		}
	}
	if loaded == nil {
		loaded = FailClosed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = maps.Clone(loaded)
	s.resolved = true
	return maps.Clone(s.settings)
}

// Update merges partial into the current settings without refetching.
func (s *Store) Update(partial Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = FailClosed()
	}
	maps.Copy(s.settings, partial)
	s.resolved = true
}

// Settings returns a copy of the current settings, nil while unresolved.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.settings)
}

// Resolved reports whether settings have been loaded or set.
func (s *Store) Resolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// Granted reports the raw value of one category. Absent means false.
func (s *Store) Granted(c Category) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[string(c)]
}

// HasConsentForEvent decides whether an event of type t may carry properties and context.
func (s *Store) HasConsentForEvent(t domain.EventType) bool {
	if IsEssential(t) {
		return true
	}
	if !s.privacyCompliant {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.resolved {
		return false
	}
	return s.settings[string(RequiredCategory(t))]
}

// Level classifies the current settings for event records.
func (s *Store) Level() domain.PrivacyLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.resolved {
		return domain.PrivacyUnknown
	}
	analytics := s.settings[string(Analytics)]
	switch {
	case analytics && s.settings[string(Personalization)] && s.settings[string(Behavioral)]:
		return domain.PrivacyFull
	case analytics:
		return domain.PrivacyAnalytics
	default:
		return domain.PrivacyMinimal
	}
}

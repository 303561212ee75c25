package tracker

import (
	"context"
	"log"
	"sync"

	"example.com/learntrack/internal/domain"
)

// PageSource reports the page the user is currently on.
type PageSource interface {
	Page() domain.PageInfo
}

// PageSetter is implemented by sources that Navigated can move to a new page.
type PageSetter interface {
	SetPage(domain.PageInfo)
}

// StaticPage is a PageSource driven by the host.
type StaticPage struct {
	mu   sync.RWMutex
	info domain.PageInfo
}

func NewStaticPage(info domain.PageInfo) *StaticPage {
	return &StaticPage{info: info}
}

func (p *StaticPage) Page() domain.PageInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

func (p *StaticPage) SetPage(info domain.PageInfo) {
	p.mu.Lock()
	p.info = info
	p.mu.Unlock()
}

// SetScroll records the scroll offset and the scrolled fraction of the document.
func (p *StaticPage) SetScroll(x, y int, depth float64) {
	p.mu.Lock()
	p.info.Scroll = domain.ScrollPosition{X: x, Y: y, Depth: depth}
	p.mu.Unlock()
}

func (t *Tracker) pageSnapshot() (info domain.PageInfo) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[tracker] page source panic: %v", r)
			info = domain.PageInfo{}
		}
	}()
	return t.page.Page()
}

// Navigated is the router hook: it closes the current page with a time_on_page event
// and records a page_view for next. A nil next means the page source already moved.
func (t *Tracker) Navigated(next *domain.PageInfo) {
	t.trackTimeOnPage()
	if next != nil {
		if s, ok := t.page.(PageSetter); ok {
			s.SetPage(*next)
		}
	}
	t.TrackPageView(nil)
}

// VisibilityChanged records page_blur and flushes in the background when the page is
// hidden, and page_focus when it becomes visible again.
func (t *Tracker) VisibilityChanged(hidden bool) {
	if !hidden {
		t.Track(domain.EventPageFocus, nil, TrackOptions{})
		return
	}
	props := map[string]any{}
	if ms, ok := t.timeOnPage(); ok {
		props["time_on_page"] = ms
	}
	t.Track(domain.EventPageBlur, props, TrackOptions{})
	t.batcher.FlushAsync()
}

// Unload records time on the current page and the session end, then sends what is
// queued while the caller waits.
func (t *Tracker) Unload(ctx context.Context) {
	t.trackTimeOnPage()
	t.TrackSessionEnd(ctx)
	t.flushAll(ctx)
}

func (t *Tracker) timeOnPage() (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.pageStart.IsZero() {
		return 0, false
	}
	return t.now().Sub(t.pageStart).Milliseconds(), true
}

func (t *Tracker) trackTimeOnPage() {
	ms, ok := t.timeOnPage()
	if !ok {
		return
	}
	t.mu.RLock()
	url := t.pageURL
	t.mu.RUnlock()
	t.Track(domain.EventTimeOnPage, map[string]any{
		"page_url":     url,
		"time_on_page": ms,
		"scroll_depth": t.pageSnapshot().Scroll.Depth,
	}, TrackOptions{})
}

package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"example.com/learntrack/internal/consent"
	"example.com/learntrack/internal/domain"
)

const (
	CSRFCookie = "csrftoken"
	CSRFHeader = "X-CSRFToken"
)

// ErrStatus wraps every non-2xx answer.
var ErrStatus = errors.New("unexpected status")

// Client talks to the two backend contracts: the privacy settings GET and the events
// POST. Cookies live in a jar scoped to the backend origin, which gives the
// same-origin credential behavior of the browser client.
type Client struct {
	hc         *http.Client
	eventsURL  *url.URL
	privacyURL *url.URL
}

// NewClient resolves the endpoints against baseURL. hc may be nil; a client with a
// cookie jar and the given timeout is created then.
func NewClient(baseURL, eventsPath, privacyPath string, hc *http.Client, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	events, err := base.Parse(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("parse events endpoint: %w", err)
	}
	privacy, err := base.Parse(privacyPath)
	if err != nil {
		return nil, fmt.Errorf("parse privacy endpoint: %w", err)
	}
	if hc == nil {
		jar, _ := cookiejar.New(nil)
		hc = &http.Client{Jar: jar, Timeout: timeout}
	}
	return &Client{hc: hc, eventsURL: events, privacyURL: privacy}, nil
}

// SetCookie stores a cookie for the backend origin, e.g. the session and CSRF cookies
// handed over by the host application.
func (c *Client) SetCookie(ck *http.Cookie) {
	if c.hc.Jar == nil {
		return
	}
	if ck.Path == "" {
		ck.Path = "/"
	}
	c.hc.Jar.SetCookies(c.eventsURL, []*http.Cookie{ck})
}

func (c *Client) csrfToken() string {
	if c.hc.Jar == nil {
		return ""
	}
	for _, ck := range c.hc.Jar.Cookies(c.eventsURL) {
		if ck.Name == CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

// Send posts {"events": [...]} and treats any non-2xx answer as failure.
func (c *Client) Send(ctx context.Context, events []domain.Event) error {
	body, err := json.Marshal(domain.Batch{Events: events})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.csrfToken(); tok != "" {
		req.Header.Set(CSRFHeader, tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("post events: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post events: %w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// FetchPrivacySettings reads the category map. Non-boolean values are ignored.
func (c *Client) FetchPrivacySettings(ctx context.Context) (consent.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.privacyURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get privacy settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get privacy settings: %w: %d", ErrStatus, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode privacy settings: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	out := make(consent.Settings, len(raw))
	for k, v := range raw {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out, nil
}

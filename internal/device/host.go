package device

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// HostSource describes a Go process as a device. Screen and viewport are only known
// when the embedding application sets them.
type HostSource struct {
	Agent          string
	ScreenW        int
	ScreenH        int
	ViewportW      int
	ViewportH      int
	Connection     string
	Env            func(string) string
	CookiesEnabled bool
}

// NewHostSource returns a HostSource identifying itself as product/version.
func NewHostSource(product, version string) *HostSource {
	return &HostSource{
		Agent:          fmt.Sprintf("%s/%s (%s; %s) %s", product, version, runtime.GOOS, runtime.GOARCH, runtime.Version()),
		Env:            os.Getenv,
		CookiesEnabled: true,
	}
}

func (h *HostSource) UserAgent() string { return h.Agent }

func (h *HostSource) ScreenSize() (int, int) { return h.ScreenW, h.ScreenH }

func (h *HostSource) ViewportSize() (int, int) { return h.ViewportW, h.ViewportH }

func (h *HostSource) ColorDepth() int { return 0 }

func (h *HostSource) Timezone() string {
	if tz := h.getenv("TZ"); tz != "" {
		return tz
	}
	name, _ := time.Now().Zone()
	return name
}

// Language maps a POSIX locale such as en_US.UTF-8 to a BCP 47 tag.
func (h *HostSource) Language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := h.getenv(key); v != "" && v != "C" && v != "POSIX" {
			v, _, _ = strings.Cut(v, ".")
			return strings.ReplaceAll(v, "_", "-")
		}
	}
	return ""
}

func (h *HostSource) Languages() []string {
	if l := h.Language(); l != "" {
		return []string{l}
	}
	return nil
}

func (h *HostSource) Platform() string { return runtime.GOOS + "/" + runtime.GOARCH }

func (h *HostSource) CookieEnabled() (bool, bool) { return h.CookiesEnabled, true }

func (h *HostSource) DoNotTrack() string { return h.getenv("DO_NOT_TRACK") }

func (h *HostSource) HardwareConcurrency() int { return runtime.NumCPU() }

func (h *HostSource) DeviceMemory() float64 { return 0 }

func (h *HostSource) ConnectionType() string { return h.Connection }

func (h *HostSource) Online() (bool, bool) { return false, false }

func (h *HostSource) getenv(key string) string {
	if h.Env == nil {
		return ""
	}
	return h.Env(key)
}

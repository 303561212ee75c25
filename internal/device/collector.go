// Package device reads static attributes of the environment the tracker runs in.
package device

import (
	"fmt"
	"log"

	"example.com/learntrack/internal/domain"
)

// Source exposes the environment attributes a host can report. Getters return zero
// values for attributes the host does not support.
type Source interface {
	UserAgent() string
	ScreenSize() (width, height int)
	ViewportSize() (width, height int)
	ColorDepth() int
	Timezone() string
	Language() string
	Languages() []string
	Platform() string
	CookieEnabled() (enabled, known bool)
	DoNotTrack() string
	HardwareConcurrency() int
	DeviceMemory() float64
	ConnectionType() string
	Online() (online, known bool)
}

// Collect reads every attribute from src once. A getter that panics leaves its field
// empty; Collect itself never panics.
func Collect(src Source) domain.DeviceInfo {
	var info domain.DeviceInfo
	if src == nil {
		return info
	}
	read := func(field string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[device] %s unavailable: %v", field, r)
			}
		}()
		fn()
	}

	read("user_agent", func() { info.UserAgent = src.UserAgent() })
	read("screen", func() {
		if w, h := src.ScreenSize(); w > 0 && h > 0 {
			info.ScreenResolution = fmt.Sprintf("%dx%d", w, h)
		}
	})
	read("viewport", func() {
		if w, h := src.ViewportSize(); w > 0 && h > 0 {
			info.Viewport = fmt.Sprintf("%dx%d", w, h)
		}
	})
	read("color_depth", func() { info.ColorDepth = src.ColorDepth() })
	read("timezone", func() { info.Timezone = src.Timezone() })
	read("language", func() { info.Language = src.Language() })
	read("languages", func() { info.Languages = append([]string(nil), src.Languages()...) })
	read("platform", func() { info.Platform = src.Platform() })
	read("cookie_enabled", func() {
		if v, ok := src.CookieEnabled(); ok {
			info.CookieEnabled = &v
		}
	})
	read("do_not_track", func() { info.DoNotTrack = src.DoNotTrack() })
	read("hardware_concurrency", func() { info.HardwareConcurrency = src.HardwareConcurrency() })
	read("device_memory", func() { info.DeviceMemory = src.DeviceMemory() })
	read("connection_type", func() { info.ConnectionType = src.ConnectionType() })
	read("online", func() {
		if v, ok := src.Online(); ok {
			info.Online = &v
		}
	})
	return info
}

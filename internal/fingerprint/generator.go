// Package fingerprint derives hashed device and session identifiers from host signals.
package fingerprint

import (
	"context"
	"log"
	"time"
)

// SessionMeta is the input of the session fingerprint.
type SessionMeta struct {
	SessionID string
	StartTime time.Time
	EntryURL  string
	Referrer  string
	UserAgent string
}

type Generator struct {
	signals Signals
}

func NewGenerator(signals Signals) *Generator {
	return &Generator{signals: signals}
}

// Device hashes every available signal into a DeviceHashLen hex string. Signals that
// fail, panic or are missing are left out of the hashed object.
func (g *Generator) Device(ctx context.Context) string {
	components := map[string]any{}
	if g.signals != nil {
		collect := func(name string, fn func() (any, error)) {
			if ctx.Err() != nil {
				return
			}
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[fingerprint] %s signal panicked: %v", name, r)
				}
			}()
			v, err := fn()
			if err != nil {
				return
			}
			components[name] = v
		}
		collect("canvas", func() (any, error) { return g.signals.Canvas() })
		collect("webgl", func() (any, error) { return g.signals.WebGL() })
		collect("audio", func() (any, error) { return g.signals.Audio() })
		collect("fonts", func() (any, error) { return g.signals.Fonts() })
		collect("plugins", func() (any, error) { return g.signals.Plugins() })
	}

	h, err := digest(components, DeviceHashLen)
	if err != nil {
		log.Printf("[fingerprint] device digest: %v", err)
		return ""
	}
	return h
}

// Session hashes the session metadata into a SessionHashLen hex string.
func (g *Generator) Session(meta SessionMeta) string {
	h, err := digest(map[string]any{
		"session_id": meta.SessionID,
		"start_time": meta.StartTime.UnixMilli(),
		"url":        meta.EntryURL,
		"referrer":   meta.Referrer,
		"user_agent": meta.UserAgent,
	}, SessionHashLen)
	if err != nil {
		log.Printf("[fingerprint] session digest: %v", err)
		return ""
	}
	return h
}

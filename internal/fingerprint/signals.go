package fingerprint

import "errors"

// ErrUnavailable is returned by a signal the host cannot produce.
var ErrUnavailable = errors.New("fingerprint: signal unavailable")

// Signals are the raw device characteristics a host can read. Each one is optional.
type Signals interface {
	Canvas() (string, error)
	WebGL() (map[string]string, error)
	Audio() (string, error)
	Fonts() ([]string, error)
	Plugins() ([]string, error)
}

// StaticSignals serves signals captured elsewhere, for example by a front end that
// posts them to a Go host. Empty fields are reported as unavailable.
type StaticSignals struct {
	CanvasData string
	WebGLInfo  map[string]string
	AudioData  string
	FontList   []string
	PluginList []string
}

func (s StaticSignals) Canvas() (string, error) {
	if s.CanvasData == "" {
		return "", ErrUnavailable
	}
	return s.CanvasData, nil
}

func (s StaticSignals) WebGL() (map[string]string, error) {
	if len(s.WebGLInfo) == 0 {
		return nil, ErrUnavailable
	}
	return s.WebGLInfo, nil
}

func (s StaticSignals) Audio() (string, error) {
	if s.AudioData == "" {
		return "", ErrUnavailable
	}
	return s.AudioData, nil
}

func (s StaticSignals) Fonts() ([]string, error) {
	if len(s.FontList) == 0 {
		return nil, ErrUnavailable
	}
	return s.FontList, nil
}

// Plugins may legitimately be empty; an empty list is still a signal.
func (s StaticSignals) Plugins() ([]string, error) {
	if s.PluginList == nil {
		return []string{}, nil
	}
	return s.PluginList, nil
}

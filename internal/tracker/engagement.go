package tracker

import (
	"math"
	"time"
)

// EngagementInput feeds EngagementScore. Zero fields contribute nothing.
type EngagementInput struct {
	Duration       time.Duration
	CompletionRate float64
	Interactions   int
}

// EngagementScore weights time spent (capped at one minute), completion and
// interactions (capped at ten). The result is in [0, 1].
func EngagementScore(in EngagementInput) float64 {
	score := 0.3*clamp01(float64(in.Duration.Milliseconds())/60000) +
		0.4*clamp01(in.CompletionRate) +
		0.3*clamp01(float64(in.Interactions)/10)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

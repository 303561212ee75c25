package tracker

import "github.com/prometheus/client_golang/prometheus"

var eventsTracked = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "learntrack",
	Subsystem: "tracker",
	Name:      "events_tracked_total",
	Help:      "Events created by Track, by type and whether consent reduced them to the minimal form.",
}, []string{"event_type", "privacy_limited"})

func init() {
	_ = prometheus.Register(eventsTracked)
}

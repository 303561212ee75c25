package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "learntrack",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Events waiting to be sent.",
	})

	batchesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learntrack",
		Subsystem: "batch",
		Name:      "sent_total",
		Help:      "Batches accepted by the sink.",
	})

	batchesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learntrack",
		Subsystem: "batch",
		Name:      "failed_total",
		Help:      "Batches rejected by the sink or lost to a network error.",
	})

	eventsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learntrack",
		Subsystem: "batch",
		Name:      "events_sent_total",
		Help:      "Events delivered inside successful batches.",
	})

	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learntrack",
		Subsystem: "queue",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a failed batch no longer fit under the queue cap.",
	})
)

func init() {
	// Safe register; ignore duplicate registration in case of multiple imports
	_ = prometheus.Register(queueDepth)
	_ = prometheus.Register(batchesSent)
	_ = prometheus.Register(batchesFailed)
	_ = prometheus.Register(eventsSent)
	_ = prometheus.Register(eventsDropped)
}

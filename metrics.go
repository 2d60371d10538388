package feedme

import "github.com/prometheus/client_golang/prometheus"

// Metrics is per-Session Prometheus instrumentation. It is an
// instance-scoped struct rather than package-level promauto variables: a
// process can and does run more than one Session (one per server
// connection), and package-level vars would collide or conflate their
// counts.
type Metrics struct {
	Connects          prometheus.Counter
	Disconnects       prometheus.Counter
	ActionsSent       prometheus.Counter
	FeedOpens         prometheus.Counter
	FeedCloses        prometheus.Counter
	ActionRevelations prometheus.Counter
	BadServerMessages prometheus.Counter
	BadClientMessages prometheus.Counter

	// ActionLatency observes the time between an Action being sent and its
	// ActionResponse (or a disconnect) resolving the completion.
	ActionLatency prometheus.Histogram
}

// NewMetrics builds a fresh Metrics and, if reg is non-nil, registers its
// collectors against it. Passing a nil Registerer is valid and yields
// metrics that simply aren't exported anywhere — useful for tests and for
// embedders who don't run a Prometheus endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "connects_total",
			Help: "Number of times the session completed a handshake.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "disconnects_total",
			Help: "Number of times the session's transport disconnected.",
		}),
		ActionsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "actions_sent_total",
			Help: "Number of Action frames sent.",
		}),
		FeedOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "feed_opens_total",
			Help: "Number of FeedOpen frames sent.",
		}),
		FeedCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "feed_closes_total",
			Help: "Number of FeedClose frames sent.",
		}),
		ActionRevelations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "action_revelations_total",
			Help: "Number of ActionRevelation frames successfully applied.",
		}),
		BadServerMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "bad_server_messages_total",
			Help: "Number of inbound frames rejected as malformed or out of sequence.",
		}),
		BadClientMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedme", Name: "bad_client_messages_total",
			Help: "Number of ViolationResponse frames received from the server.",
		}),
		ActionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feedme", Name: "action_latency_seconds",
			Help:    "Time between an Action being sent and its completion resolving.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Connects,
			m.Disconnects,
			m.ActionsSent,
			m.FeedOpens,
			m.FeedCloses,
			m.ActionRevelations,
			m.BadServerMessages,
			m.BadClientMessages,
			m.ActionLatency,
		)
	}
	return m
}

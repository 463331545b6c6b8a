package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jukebox",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jukebox",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jukebox",
		Name:      "active_sessions",
		Help:      "Number of users with currently queued packets.",
	})

	VirtualTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jukebox",
		Name:      "virtual_time_seconds",
		Help:      "Current GPS virtual time.",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jukebox",
		Name:      "queue_depth",
		Help:      "Number of queued packets.",
	})

	VotesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jukebox",
		Name:      "votes_total",
		Help:      "Total accepted votes, including enqueueing submissions.",
	})

	PlaysTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jukebox",
		Name:      "plays_total",
		Help:      "Total items handed to the player by kind.",
	}, []string{"kind"})

	RandomPicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jukebox",
		Name:      "random_picks_total",
		Help:      "Total random-fallback songs enqueued on an empty queue.",
	})

	DiscardPileSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jukebox",
		Name:      "discard_pile_size",
		Help:      "Number of recently played songs held back from random selection.",
	})

	LibrarySongs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jukebox",
		Name:      "library_songs",
		Help:      "Number of songs in the local library.",
	})

	MetadataLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jukebox",
		Name:      "metadata_lookups_total",
		Help:      "Total remote metadata lookups by outcome.",
	}, []string{"outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		VirtualTime,
		QueueDepth,
		VotesTotal,
		PlaysTotal,
		RandomPicksTotal,
		DiscardPileSize,
		LibrarySongs,
		MetadataLookupsTotal,
	)
}

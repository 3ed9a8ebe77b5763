package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoriesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_submitted_total",
			Help: "Total number of accepted story submissions by initial status.",
		},
		[]string{"status"},
	)

	StoryReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_reviews_total",
			Help: "Total number of moderation decisions by decision.",
		},
		[]string{"decision"},
	)

	EventsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_tracked_total",
			Help: "Total number of analytics events accepted by type.",
		},
		[]string{"type"},
	)

	TrackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_track_failures_total",
		Help: "Total number of analytics events that could not be stored or published.",
	})

	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_evicted_total",
		Help: "Total number of analytics events dropped by in-memory retention.",
	})

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_consumed_total",
			Help: "Total number of queued analytics events processed by the consumer, by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter, by action.",
		},
		[]string{"action"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// Package telemetry holds the Prometheus metrics of the mixer.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soundscape"

var (
	// DecodesTotal counts decode attempts by outcome (ok, error).
	DecodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decodes_total",
		Help:      "Audio decode attempts by outcome.",
	}, []string{"outcome"})

	// BufferCacheHits counts plays served from a layer's cached buffer.
	BufferCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffer_cache_hits_total",
		Help:      "Plays that reused a cached decoded buffer.",
	})

	// FetchBytes counts encoded audio bytes read from any source.
	FetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_bytes_total",
		Help:      "Encoded audio bytes fetched.",
	})

	// LiveVoices is the number of voices currently connected to the master bus.
	LiveVoices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_voices",
		Help:      "Voices currently playing.",
	})

	// Layers is the number of layers in the mix.
	Layers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "layers",
		Help:      "Layers in the current mix.",
	})

	// StreamListeners is the number of subscribed audio listeners.
	StreamListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_listeners",
		Help:      "Connected stream listeners.",
	})

	// DroppedFrames counts frames dropped for slow listeners.
	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_frames_total",
		Help:      "PCM frames dropped because a listener fell behind.",
	})

	// APIRequestsTotal counts HTTP requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

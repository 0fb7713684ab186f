package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dococr",
			Name:      "extractions_total",
			Help:      "Total extraction calls by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	extractionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dococr",
			Name:      "extraction_duration_seconds",
			Help:      "Duration of provider calls by provider and model",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider", "model"},
	)

	uploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dococr",
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected before extraction, by reason",
		},
		[]string{"reason"},
	)

	payloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dococr",
			Name:      "payload_bytes",
			Help:      "Size of base64 image payloads sent to the provider",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(extractions, extractionLatency, uploadsRejected, payloadBytes)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveExtraction(provider, model, result string, dur time.Duration) {
	extractions.WithLabelValues(provider, model, result).Inc()
	extractionLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncRejected(reason string) { uploadsRejected.WithLabelValues(reason).Inc() }

func ObservePayload(n int) { payloadBytes.Observe(float64(n)) }

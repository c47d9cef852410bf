// Package metrics exposes deck activity as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapedeck_capture_start_total",
		Help: "Total number of capture start attempts by result",
	}, []string{"result"})

	captureActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tapedeck_capture_active",
		Help: "1 while a capture is in progress",
	})

	// CaptureDuration tracks the length of finished takes.
	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tapedeck_capture_duration_seconds",
		Help:    "Length of finished captures",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	recordingsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tapedeck_recordings_stored",
		Help: "Number of recordings currently held in memory",
	})

	recordingBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tapedeck_recording_bytes",
		Help: "Total encoded bytes currently held in memory",
	})

	playbackStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapedeck_playback_start_total",
		Help: "Total number of playback intents by result",
	}, []string{"result"})

	deletionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapedeck_deletion_total",
		Help: "Total number of deletion prompts by outcome",
	}, []string{"outcome"})

	editTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapedeck_edit_total",
		Help: "Total number of finished metadata edits by field and outcome",
	}, []string{"field", "outcome"})
)

// IncCaptureStart records a capture start attempt. result is one of
// started, unavailable, error.
func IncCaptureStart(result string) {
	captureStartTotal.WithLabelValues(result).Inc()
}

func SetCaptureActive(active bool) {
	if active {
		captureActive.Set(1)
		return
	}
	captureActive.Set(0)
}

func ObserveCaptureDuration(d time.Duration) {
	CaptureDuration.Observe(d.Seconds())
}

// SetStored publishes the store size.
func SetStored(count int, bytes int) {
	recordingsStored.Set(float64(count))
	recordingBytes.Set(float64(bytes))
}

// IncPlaybackStart records a play intent. result is one of started,
// refused, superseded, error.
func IncPlaybackStart(result string) {
	playbackStartTotal.WithLabelValues(result).Inc()
}

// IncDeletion records how a deletion prompt ended: confirmed or cancelled.
func IncDeletion(outcome string) {
	deletionTotal.WithLabelValues(outcome).Inc()
}

// IncEdit records how an edit ended: committed or cancelled.
func IncEdit(field, outcome string) {
	editTotal.WithLabelValues(field, outcome).Inc()
}

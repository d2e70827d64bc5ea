package metrics

import (
	"errors"
	"net/http"

	"captionkit/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the caption pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	UtterancesSealed    *prometheus.CounterVec
	UtterancesDiscarded prometheus.Counter
	UtteranceDuration   prometheus.Histogram

	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	TranscriptsLost  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Broadcast metrics
	MessagesSent    *prometheus.CounterVec
	MessagesIgnored *prometheus.CounterVec
	SendFailures    prometheus.Counter

	// Playback metrics
	PlaybackQueueDepth prometheus.Gauge
	CaptionsShown      *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		UtterancesSealed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_utterances_sealed_total",
			Help: "Utterances sealed and forwarded for transcription",
		}, []string{"reason"}),
		UtterancesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "captionkit_utterances_discarded_total",
			Help: "Utterances dropped for being below the minimum size",
		}),
		UtteranceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "captionkit_utterance_duration_seconds",
			Help:    "Duration of forwarded utterances",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 20),
		}),

		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_provider_calls_total",
			Help: "Calls made to external providers",
		}, []string{"stage", "provider"}),
		ProviderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_provider_failures_total",
			Help: "Failed provider calls, by cause",
		}, []string{"stage", "provider", "cause"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "captionkit_provider_duration_seconds",
			Help:    "Latency of provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"stage", "provider"}),
		TranscriptsLost: f.NewCounter(prometheus.CounterOpts{
			Name: "captionkit_transcripts_unavailable_total",
			Help: "Utterances dropped because every transcription provider failed",
		}),

		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "captionkit_cache_hits_total",
			Help: "Utterances answered from the transcription cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "captionkit_cache_misses_total",
			Help: "Utterances that had to be transcribed",
		}),

		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_messages_sent_total",
			Help: "Messages broadcast on the data channel",
		}, []string{"type"}),
		MessagesIgnored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_messages_ignored_total",
			Help: "Received data-channel messages that were skipped",
		}, []string{"reason"}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "captionkit_send_failures_total",
			Help: "Broadcasts that failed to send",
		}),

		PlaybackQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "captionkit_playback_queue_depth",
			Help: "Clips waiting to play",
		}),
		CaptionsShown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "captionkit_captions_total",
			Help: "Captions added to the history",
		}, []string{"origin"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) UtteranceSealed(forced bool, seconds float64) {
	if m == nil {
		return
	}
	reason := "end_of_speech"
	if forced {
		reason = "max_duration"
	}
	m.UtterancesSealed.WithLabelValues(reason).Inc()
	m.UtteranceDuration.Observe(seconds)
}

func (m *Metrics) UtteranceDiscarded() {
	if m == nil {
		return
	}
	m.UtterancesDiscarded.Inc()
}

// ProviderCall records one provider call. cause is empty on success.
func (m *Metrics) ProviderCall(stage, provider string, seconds float64, cause string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(stage, provider).Inc()
	m.ProviderDuration.WithLabelValues(stage, provider).Observe(seconds)
	if cause != "" {
		m.ProviderFailures.WithLabelValues(stage, provider, cause).Inc()
	}
}

func (m *Metrics) TranscriptUnavailable() {
	if m == nil {
		return
	}
	m.TranscriptsLost.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) MessageSent(msgType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendFailures.Inc()
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageIgnored(reason string) {
	if m == nil {
		return
	}
	m.MessagesIgnored.WithLabelValues(reason).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.PlaybackQueueDepth.Set(float64(n))
}

func (m *Metrics) CaptionShown(remote bool) {
	if m == nil {
		return
	}
	origin := "local"
	if remote {
		origin = "remote"
	}
	m.CaptionsShown.WithLabelValues(origin).Inc()
}

// FailureCause labels a provider error for ProviderCall.
func FailureCause(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsProviderTimeout(err):
		return "timeout"
	case errors.Is(err, core.ErrEmptyResult):
		return "empty"
	default:
		return "error"
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the streaming transcription pipeline
type Metrics struct {
	// Audio intake metrics
	FramesReceived prometheus.Counter

	// VAD metrics
	VADFramesProcessed prometheus.Counter
	VADSpeechDetected  prometheus.Counter
	VADErrors          prometheus.Counter

	// Segmentation metrics
	SegmentsEmitted prometheus.Counter
	SegmentDuration prometheus.Histogram

	// Inference queue metrics
	QueueSize      prometheus.Gauge
	QueueEvictions prometheus.Counter

	// Inference metrics
	InferenceRequests prometheus.Counter
	InferenceFailures prometheus.Counter
	InferenceDuration prometheus.Histogram

	// Transcript metrics
	SentencesFinalized prometheus.Counter
	WordsTranscribed   prometheus.Counter
	ContextEvictions   prometheus.Counter
	ResultsDropped     prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on the default registerer
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers all metrics on the given registerer
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Audio intake metrics
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_received_total",
			Help: "Total number of audio frames received from the capture source",
		}),
		// VAD metrics
		VADFramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_vad_frames_processed_total",
			Help: "Total number of frames classified by the VAD",
		}),
		VADSpeechDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_vad_speech_detected_total",
			Help: "Total number of frames classified as speech",
		}),
		VADErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_vad_errors_total",
			Help: "Total number of VAD classification errors",
		}),

		// Segmentation metrics
		SegmentsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_segments_emitted_total",
			Help: "Total number of speech segments emitted for inference",
		}),
		SegmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to ~1 minute
		}),

		// Inference queue metrics
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_inference_queue_size",
			Help: "Current number of segments waiting for inference",
		}),
		QueueEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_inference_queue_evictions_total",
			Help: "Total number of segments evicted from a full inference queue",
		}),

		// Inference metrics
		InferenceRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_inference_requests_total",
			Help: "Total number of inference requests dispatched",
		}),
		InferenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_inference_failures_total",
			Help: "Total number of failed inference requests",
		}),
		InferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_inference_duration_seconds",
			Help:    "Duration of inference requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Transcript metrics
		SentencesFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_sentences_finalized_total",
			Help: "Total number of complete sentences finalized",
		}),
		WordsTranscribed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_words_transcribed_total",
			Help: "Total number of words in finalized sentences",
		}),
		ContextEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_context_evictions_total",
			Help: "Total number of entries evicted from the context log",
		}),
		ResultsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_results_dropped_total",
			Help: "Total number of finalized results dropped from a full result queue",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrameReceived increments the frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordVADFrame increments frames processed and optionally speech detected
func (m *Metrics) RecordVADFrame(isSpeech bool) {
	m.VADFramesProcessed.Inc()
	if isSpeech {
		m.VADSpeechDetected.Inc()
	}
}

// RecordVADError increments the VAD error counter
func (m *Metrics) RecordVADError() {
	m.VADErrors.Inc()
}

// RecordSegmentEmitted records an emitted speech segment
func (m *Metrics) RecordSegmentEmitted(durationSeconds float64) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// SetQueueSize sets the current inference queue depth
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// RecordQueueEviction increments the queue eviction counter
func (m *Metrics) RecordQueueEviction() {
	m.QueueEvictions.Inc()
}

// RecordInferenceRequest increments the inference requests counter
func (m *Metrics) RecordInferenceRequest() {
	m.InferenceRequests.Inc()
}

// RecordInferenceSuccess records a successful inference request
func (m *Metrics) RecordInferenceSuccess(durationSeconds float64) {
	m.InferenceDuration.Observe(durationSeconds)
}

// RecordInferenceFailure records a failed inference request
func (m *Metrics) RecordInferenceFailure(durationSeconds float64) {
	m.InferenceFailures.Inc()
	m.InferenceDuration.Observe(durationSeconds)
}

// RecordSentenceFinalized records a finalized sentence and its word count
func (m *Metrics) RecordSentenceFinalized(words int) {
	m.SentencesFinalized.Inc()
	m.WordsTranscribed.Add(float64(words))
}

// RecordContextEviction increments the context eviction counter
func (m *Metrics) RecordContextEviction() {
	m.ContextEvictions.Inc()
}

// RecordResultDropped increments the dropped results counter
func (m *Metrics) RecordResultDropped() {
	m.ResultsDropped.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

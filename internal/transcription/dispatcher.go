package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vkovalenko/streamscribe/internal/metrics"
)

// modelWindowSeconds is the fixed input window of the inference model.
// Segments are zero-padded or truncated to this length before decoding.
const modelWindowSeconds = 30

// DispatcherConfig contains configuration for the inference dispatcher.
type DispatcherConfig struct {
	SampleRate int
	QueueSize  int // Work queue capacity; oldest segment evicted when full
	// Language pins the session language up front. When empty, the
	// language is detected on the first segment and cached for the rest
	// of the stream.
	Language string
}

// Sink receives each TranscriptionResult on the worker goroutine, in the
// order segments were dequeued.
type Sink func(Result)

// Dispatcher serializes work to the inference engine. Enqueue never blocks:
// when the bounded queue is full the oldest pending segment is dropped to
// admit the newest, preferring bounded staleness over backpressure onto the
// audio intake. A single worker decodes segments one at a time, so no two
// segments are ever transcribed concurrently within a session.
type Dispatcher struct {
	engine  Engine
	cfg     DispatcherConfig
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	windowSamples int

	work chan Segment
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	pinned   string
	evicted  uint64
	decoded  uint64
	failures uint64
}

// NewDispatcher creates a dispatcher. The sink is invoked on the worker
// goroutine for every successful transcription.
func NewDispatcher(engine Engine, cfg DispatcherConfig, sink Sink, logger *slog.Logger, m *metrics.Metrics) (*Dispatcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}

	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		engine:        engine,
		cfg:           cfg,
		sink:          sink,
		logger:        logger,
		metrics:       m,
		windowSamples: cfg.SampleRate * modelWindowSeconds,
		work:          make(chan Segment, cfg.QueueSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		pinned:        cfg.Language,
	}, nil
}

// Start launches the inference worker.
func (d *Dispatcher) Start() {
	go d.workerLoop()
}

// Enqueue submits a segment without blocking. On a full queue the oldest
// pending segment is evicted so the newest is admitted.
func (d *Dispatcher) Enqueue(seg Segment) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	for {
		select {
		case d.work <- seg:
			d.metrics.SetQueueSize(len(d.work))
			return
		default:
		}

		select {
		case <-d.work:
			d.evicted++
			d.metrics.RecordQueueEviction()
			d.logger.Warn("Work queue full, evicting oldest segment",
				slog.Uint64("evicted_total", d.evicted),
			)
		default:
		}
	}
}

// Stop closes the work queue and waits for the worker to drain it, up to
// joinTimeout. On timeout the in-flight inference is cancelled and shutdown
// proceeds; the leak is logged, not fatal. Returns false on timeout.
func (d *Dispatcher) Stop(joinTimeout time.Duration) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return true
	}
	d.closed = true
	close(d.work)
	d.mu.Unlock()

	select {
	case <-d.done:
		return true
	case <-time.After(joinTimeout):
		d.cancel()
		d.logger.Warn("Inference worker did not stop in time, proceeding with shutdown",
			slog.Duration("join_timeout", joinTimeout),
		)
		return false
	}
}

// workerLoop dequeues segments sequentially until the queue closes.
func (d *Dispatcher) workerLoop() {
	defer close(d.done)

	for seg := range d.work {
		d.metrics.SetQueueSize(len(d.work))
		d.process(seg)
	}
}

// process pads the segment to the model window, resolves the session
// language, decodes, and hands the result to the sink. Any inference error
// drops the segment; one bad segment must not halt the stream.
func (d *Dispatcher) process(seg Segment) {
	d.metrics.RecordInferenceRequest()
	window := d.padOrTrim(seg.Samples)
	start := time.Now()

	language, err := d.resolveLanguage(window)
	if err != nil {
		d.recordFailure()
		d.metrics.RecordInferenceFailure(time.Since(start).Seconds())
		d.logger.Error("Language detection failed, dropping segment",
			slog.Int("samples", len(seg.Samples)),
			slog.String("error", err.Error()),
		)
		return
	}

	text, err := d.engine.Decode(d.ctx, window, language)
	if err != nil {
		d.recordFailure()
		d.metrics.RecordInferenceFailure(time.Since(start).Seconds())
		d.logger.Error("Decode failed, dropping segment",
			slog.Int("samples", len(seg.Samples)),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return
	}

	d.mu.Lock()
	d.decoded++
	d.mu.Unlock()
	d.metrics.RecordInferenceSuccess(time.Since(start).Seconds())

	d.sink(Result{
		Text:      text,
		Language:  language,
		Timestamp: seg.Captured,
	})
}

// resolveLanguage returns the pinned session language, detecting it from
// the first segment when the caller did not supply one. First detection
// wins for the remainder of the stream.
func (d *Dispatcher) resolveLanguage(window []float32) (string, error) {
	d.mu.Lock()
	pinned := d.pinned
	d.mu.Unlock()

	if pinned != "" {
		return pinned, nil
	}

	probs, err := d.engine.DetectLanguage(d.ctx, window)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}

	detected := maxLanguage(probs)
	if detected == "" {
		return "", fmt.Errorf("detect language: empty probability set")
	}

	d.mu.Lock()
	// Another path may have pinned meanwhile (user override after start).
	if d.pinned == "" {
		d.pinned = detected
	}
	pinned = d.pinned
	d.mu.Unlock()

	d.logger.Info("Session language pinned",
		slog.String("language", pinned),
	)

	return pinned, nil
}

// padOrTrim zero-pads or truncates samples to the model's input window.
func (d *Dispatcher) padOrTrim(samples []float32) []float32 {
	if len(samples) == d.windowSamples {
		return samples
	}

	window := make([]float32, d.windowSamples)
	copy(window, samples)
	return window
}

// Language returns the currently pinned language, or "" before detection.
func (d *Dispatcher) Language() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pinned
}

// QueueDepth returns the number of segments waiting for inference.
func (d *Dispatcher) QueueDepth() int {
	return len(d.work)
}

// Stats returns dispatcher counters for monitoring.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DispatcherStats{
		Decoded:  d.decoded,
		Failures: d.failures,
		Evicted:  d.evicted,
		Language: d.pinned,
	}
}

func (d *Dispatcher) recordFailure() {
	d.mu.Lock()
	d.failures++
	d.mu.Unlock()
}

// DispatcherStats describes dispatcher activity for monitoring.
type DispatcherStats struct {
	Decoded  uint64 `json:"decoded"`
	Failures uint64 `json:"failures"`
	Evicted  uint64 `json:"evicted"`
	Language string `json:"language,omitempty"`
}

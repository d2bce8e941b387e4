package stream

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vkovalenko/streamscribe/internal/audio"
	"github.com/vkovalenko/streamscribe/internal/config"
	"github.com/vkovalenko/streamscribe/internal/metrics"
	"github.com/vkovalenko/streamscribe/internal/transcript"
	"github.com/vkovalenko/streamscribe/internal/transcription"
	"github.com/vkovalenko/streamscribe/internal/vad"
)

// Pipeline connects an audio source to the inference dispatcher and the
// transcript assembly stages. One goroutine (intake) consumes frames and
// performs segmentation; the dispatcher's worker goroutine delivers decoded
// fragments back through handleResult, so reconciliation, assembly and the
// context log are only ever touched from the worker.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	source audio.Source
	frames <-chan audio.Frame

	segmenter *vad.Segmenter
	chunker   *audio.Chunker

	dispatcher *transcription.Dispatcher
	reconciler *transcript.Reconciler
	assembler  *transcript.Assembler
	contextLog *transcript.Context

	audioWriter *audio.Writer
	textWriter  *transcript.FileWriter

	results      chan string
	sessionStart time.Time
	intakeDone   chan struct{}

	running bool
	mu      sync.Mutex

	// Statistics, updated from the intake and worker goroutines
	framesReceived  uint64
	segmentsEmitted uint64
	resultsDropped  uint64
	lastCtxEvicted  uint64
	statsMu         sync.RWMutex
}

// PipelineStats is a point-in-time snapshot of pipeline activity.
type PipelineStats struct {
	FramesReceived  uint64  `json:"frames_received"`
	SegmentsEmitted uint64  `json:"segments_emitted"`
	QueueDepth      int     `json:"queue_depth"`
	QueueEvicted    uint64  `json:"queue_evicted"`
	Decoded         uint64  `json:"decoded"`
	Failures        uint64  `json:"failures"`
	ResultsDropped  uint64  `json:"results_dropped"`
	ContextWords    int     `json:"context_words"`
	Language        string  `json:"language"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewPipeline creates a pipeline from the given configuration and
// collaborators. The classifier is only consulted when VAD segmentation is
// enabled; with VAD disabled, fixed-window chunking with overlap
// reconciliation is used instead.
func NewPipeline(cfg *config.Config, source audio.Source, classifier vad.Classifier, engine transcription.Engine, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	p := &Pipeline{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		source:     source,
		assembler:  transcript.NewAssembler(cfg.Pipeline.MinSentenceLen),
		contextLog: transcript.NewContext(cfg.Pipeline.MaxContextWords),
		results:    make(chan string, cfg.Pipeline.ResultQueueSize),
	}

	if cfg.VAD.Enabled {
		seg, err := vad.NewSegmenter(vad.SegmenterConfig{
			SampleRate:       cfg.Audio.SampleRate,
			FrameDuration:    cfg.Audio.GetFrameDuration(),
			SilenceThreshold: cfg.VAD.GetSilenceThreshold(),
			MaxDuration:      cfg.VAD.GetMaxSegmentDuration(),
		}, classifier)
		if err != nil {
			return nil, fmt.Errorf("failed to create segmenter: %w", err)
		}
		p.segmenter = seg
	} else {
		ch, err := audio.NewChunker(audio.ChunkerConfig{
			SampleRate:    cfg.Audio.SampleRate,
			ChunkDuration: cfg.Chunking.GetChunkDuration(),
			Overlap:       cfg.Chunking.GetOverlap(),
			MinDuration:   cfg.Chunking.GetMinChunkDuration(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chunker: %w", err)
		}
		p.chunker = ch
		p.reconciler = transcript.NewReconciler()
	}

	dispatcher, err := transcription.NewDispatcher(engine, transcription.DispatcherConfig{
		SampleRate: cfg.Audio.SampleRate,
		QueueSize:  cfg.Pipeline.QueueSize,
		Language:   cfg.Engine.Language,
	}, p.handleResult, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	p.dispatcher = dispatcher

	return p, nil
}

// Start opens the audio source and launches the intake and inference
// goroutines. Output writers are best-effort: a failure to open one is
// logged and the pipeline runs without it.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline already running")
	}

	p.sessionStart = time.Now()
	p.intakeDone = make(chan struct{})
	p.openWriters()

	frameSamples := audio.FrameSamples(p.cfg.Audio.SampleRate, p.cfg.Audio.GetFrameDuration())

	frames, err := p.source.Open(p.cfg.Audio.SampleRate, frameSamples)
	if err != nil {
		p.closeWriters()
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	p.frames = frames

	p.dispatcher.Start()
	go p.intake()

	p.running = true
	p.logger.Info("Pipeline started",
		"sample_rate", p.cfg.Audio.SampleRate,
		"frame_samples", frameSamples,
		"vad_enabled", p.cfg.VAD.Enabled)

	return nil
}

// openWriters opens the session WAV and transcript files when configured.
func (p *Pipeline) openWriters() {
	stamp := p.sessionStart.Format("20060102_150405")

	if p.cfg.Output.SaveAudio || p.cfg.Output.SaveTranscript {
		if err := os.MkdirAll(p.cfg.Output.Directory, 0o755); err != nil {
			p.logger.Warn("Failed to create output directory, disabling capture",
				"directory", p.cfg.Output.Directory, "error", err)
			return
		}
	}

	if p.cfg.Output.SaveAudio {
		path := filepath.Join(p.cfg.Output.Directory, fmt.Sprintf("session_%s.wav", stamp))
		w, err := audio.NewWriter(path, p.cfg.Audio.SampleRate)
		if err != nil {
			p.logger.Warn("Failed to open audio capture file", "path", path, "error", err)
		} else {
			p.audioWriter = w
			p.logger.Info("Recording audio", "path", path)
		}
	}

	if p.cfg.Output.SaveTranscript {
		path := filepath.Join(p.cfg.Output.Directory, fmt.Sprintf("session_%s.txt", stamp))
		w, err := transcript.NewFileWriter(path, true, p.sessionStart)
		if err != nil {
			p.logger.Warn("Failed to open transcript file", "path", path, "error", err)
		} else {
			p.textWriter = w
			p.logger.Info("Writing transcript", "path", path)
		}
	}
}

// intake consumes frames from the source until its channel closes.
func (p *Pipeline) intake() {
	defer close(p.intakeDone)

	var lastSpeech, lastFails uint64

	for frame := range p.frames {
		p.statsMu.Lock()
		p.framesReceived++
		p.statsMu.Unlock()
		p.metrics.RecordFrameReceived()

		if p.audioWriter != nil {
			if err := p.audioWriter.WriteFrame(frame); err != nil {
				p.logger.Warn("Audio capture write failed, disabling capture", "error", err)
				p.audioWriter.Close()
				p.audioWriter = nil
			}
		}

		var segment audio.Frame
		if p.segmenter != nil {
			segment = p.segmenter.Push(frame)

			st := p.segmenter.Stats()
			p.metrics.RecordVADFrame(st.SpeechFrames > lastSpeech)
			lastSpeech = st.SpeechFrames
			if st.ClassifierFails > lastFails {
				lastFails = st.ClassifierFails
				p.metrics.RecordVADError()
			}
		} else {
			segment = p.chunker.Push(frame)
		}

		if len(segment) > 0 {
			p.emitSegment(segment)
		}
	}
}

// emitSegment hands a segment to the dispatcher.
func (p *Pipeline) emitSegment(samples audio.Frame) {
	p.statsMu.Lock()
	p.segmentsEmitted++
	p.statsMu.Unlock()

	p.metrics.RecordSegmentEmitted(samples.Duration(p.cfg.Audio.SampleRate).Seconds())

	p.dispatcher.Enqueue(transcription.Segment{
		Samples:  samples,
		Captured: time.Now(),
	})
}

// handleResult runs on the dispatcher's worker goroutine for every decoded
// segment, in capture order.
func (p *Pipeline) handleResult(res transcription.Result) {
	text := transcript.CleanText(res.Text)

	if p.reconciler != nil {
		text = p.reconciler.Reconcile(text)
	}

	if text == "" {
		return
	}

	if res.Language != "" {
		p.assembler.SetLanguage(res.Language)
	}

	sentence, finalized := p.assembler.Add(text)
	if !finalized {
		return
	}

	p.finalize(sentence, res.Timestamp)
}

// finalize records a completed sentence in the context log, the transcript
// file and the consumer result queue.
func (p *Pipeline) finalize(sentence string, timestamp time.Time) {
	p.contextLog.Append(sentence, timestamp)
	p.metrics.RecordSentenceFinalized(transcript.WordCount(sentence))

	evicted := p.contextLog.Evictions()
	p.statsMu.Lock()
	for p.lastCtxEvicted < evicted {
		p.lastCtxEvicted++
		p.metrics.RecordContextEviction()
	}
	p.statsMu.Unlock()

	if p.textWriter != nil {
		if err := p.textWriter.WriteFragment(sentence, timestamp); err != nil {
			p.logger.Warn("Transcript write failed", "error", err)
		}
	}

	// Deliver to the consumer queue; a slow consumer loses the oldest
	// result rather than stalling the worker.
	for {
		select {
		case p.results <- sentence:
			return
		default:
		}

		select {
		case <-p.results:
			p.statsMu.Lock()
			p.resultsDropped++
			p.statsMu.Unlock()
			p.metrics.RecordResultDropped()
		default:
		}
	}
}

// Done returns a channel that closes when the audio source is exhausted
// and the intake goroutine has exited. Valid after Start.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intakeDone
}

// Next returns the oldest undelivered sentence, waiting up to timeout for
// one to arrive. A non-positive timeout polls without blocking.
func (p *Pipeline) Next(timeout time.Duration) (string, bool) {
	if timeout <= 0 {
		select {
		case s := <-p.results:
			return s, true
		default:
			return "", false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-p.results:
		return s, true
	case <-timer.C:
		return "", false
	}
}

// Stop shuts the pipeline down in dependency order: source first, then the
// intake goroutine, then buffered audio, then the inference worker, then
// the output files. Waits are bounded; a stuck stage is logged and skipped.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return fmt.Errorf("pipeline not running")
	}

	joinTimeout := p.cfg.Pipeline.GetJoinTimeout()

	if err := p.source.Close(); err != nil {
		p.logger.Warn("Audio source close failed", "error", err)
	}

	intakeStopped := true
	select {
	case <-p.intakeDone:
	case <-time.After(joinTimeout):
		intakeStopped = false
		p.logger.Warn("Intake goroutine did not stop in time", "timeout", joinTimeout)
	}

	// Flush whatever audio is still buffered so trailing speech is not
	// lost, then drain the inference queue. A stuck intake goroutine still
	// owns the segmenter, so the flush must be skipped then.
	if intakeStopped {
		var remainder audio.Frame
		if p.segmenter != nil {
			remainder = p.segmenter.Flush()
		} else {
			remainder = p.chunker.Flush()
		}
		if len(remainder) > 0 {
			p.emitSegment(remainder)
		}
	}

	if !p.dispatcher.Stop(joinTimeout) {
		p.logger.Warn("Inference worker did not stop in time", "timeout", joinTimeout)
	}

	// Pending partial fragments become the final transcript line even
	// without terminal punctuation.
	if pending := p.assembler.Flush(); pending != "" {
		p.finalize(pending, time.Now())
	}

	p.closeWriters()

	p.running = false
	p.logger.Info("Pipeline stopped",
		"frames", p.framesReceived,
		"segments", p.segmentsEmitted,
		"sentences", p.contextLog.Len())

	return nil
}

func (p *Pipeline) closeWriters() {
	if p.audioWriter != nil {
		if err := p.audioWriter.Close(); err != nil {
			p.logger.Warn("Audio capture close failed", "error", err)
		}
		p.audioWriter = nil
	}

	if p.textWriter != nil {
		if err := p.textWriter.Close(); err != nil {
			p.logger.Warn("Transcript close failed", "error", err)
		}
		p.textWriter = nil
	}
}

// FullTranscript returns the retained transcript, optionally with
// per-sentence session offsets.
func (p *Pipeline) FullTranscript(withTimestamps bool) string {
	if withTimestamps {
		return p.contextLog.Timestamped(p.sessionStart)
	}
	return p.contextLog.FullText()
}

// PartialText returns fragments accumulated toward the next sentence.
func (p *Pipeline) PartialText() string {
	return p.assembler.Pending()
}

// Entries returns a copy of the retained context log.
func (p *Pipeline) Entries() []transcript.Entry {
	return p.contextLog.Entries()
}

// Language returns the detected or configured transcription language.
func (p *Pipeline) Language() string {
	return p.dispatcher.Language()
}

// Running reports whether the pipeline has been started and not stopped.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns a snapshot of pipeline statistics.
func (p *Pipeline) Stats() PipelineStats {
	dstats := p.dispatcher.Stats()

	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	return PipelineStats{
		FramesReceived:  p.framesReceived,
		SegmentsEmitted: p.segmentsEmitted,
		QueueDepth:      p.dispatcher.QueueDepth(),
		QueueEvicted:    dstats.Evicted,
		Decoded:         dstats.Decoded,
		Failures:        dstats.Failures,
		ResultsDropped:  p.resultsDropped,
		ContextWords:    p.contextLog.Words(),
		Language:        dstats.Language,
		UptimeSeconds:   time.Since(p.sessionStart).Seconds(),
	}
}

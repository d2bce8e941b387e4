package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vkovalenko/streamscribe/internal/audio"
	"github.com/vkovalenko/streamscribe/internal/config"
	"github.com/vkovalenko/streamscribe/internal/metrics"
	"github.com/vkovalenko/streamscribe/internal/vad"
)

// stubSource feeds frames from the test into the pipeline.
type stubSource struct {
	frames    chan audio.Frame
	closeOnce sync.Once
}

func newStubSource() *stubSource {
	return &stubSource{frames: make(chan audio.Frame, 1024)}
}

func (s *stubSource) Open(sampleRate, frameSamples int) (<-chan audio.Frame, error) {
	return s.frames, nil
}

func (s *stubSource) Close() error {
	s.closeOnce.Do(func() { close(s.frames) })
	return nil
}

// push sends n frames filled with the given amplitude.
func (s *stubSource) push(n int, amplitude float32) {
	for i := 0; i < n; i++ {
		frame := make(audio.Frame, 160)
		for j := range frame {
			frame[j] = amplitude
		}
		s.frames <- frame
	}
}

// stubEngine returns a numbered complete sentence per decode.
type stubEngine struct {
	mu      sync.Mutex
	decodes int
}

func (e *stubEngine) DetectLanguage(ctx context.Context, samples []float32) (map[string]float64, error) {
	return map[string]float64{"en": 1.0}, nil
}

func (e *stubEngine) Decode(ctx context.Context, samples []float32, language string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decodes++
	return fmt.Sprintf("This is sentence number %d.", e.decodes), nil
}

func testConfig(outputDir string) *config.Config {
	return &config.Config{
		Audio: config.AudioConfig{
			SampleRate:    16000,
			FrameDuration: 0.01,
		},
		VAD: config.VADConfig{
			Enabled:            true,
			Sensitivity:        2,
			SilenceThreshold:   0.15,
			MaxSegmentDuration: 30.0,
		},
		Chunking: config.ChunkingConfig{
			ChunkDuration:    3.0,
			Overlap:          0.5,
			MinChunkDuration: 1.0,
		},
		Engine: config.EngineConfig{
			Endpoint:   "http://localhost:9",
			Timeout:    5,
			MaxRetries: 0,
		},
		Pipeline: config.PipelineConfig{
			QueueSize:       10,
			ResultQueueSize: 32,
			MinSentenceLen:  1,
			MaxContextWords: 100,
			JoinTimeout:     2.0,
		},
		Output: config.OutputConfig{
			Directory:      outputDir,
			SaveAudio:      outputDir != "",
			SaveTranscript: outputDir != "",
		},
		Logging: config.LoggingConfig{
			Level:  "error",
			Format: "text",
			Output: "stderr",
		},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, source audio.Source, engine *stubEngine) *Pipeline {
	t.Helper()

	classifier, err := vad.NewEnergyClassifier(cfg.VAD.Sensitivity)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetricsWith(prometheus.NewRegistry())

	p, err := NewPipeline(cfg, source, classifier, engine, logger, m)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestPipelineEndToEnd(t *testing.T) {
	source := newStubSource()
	engine := &stubEngine{}
	p := newTestPipeline(t, testConfig(""), source, engine)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !p.Running() {
		t.Error("Running() = false after Start")
	}

	// One second of speech followed by enough silence to close the
	// segment at the 150ms threshold.
	source.push(100, 0.5)
	source.push(30, 0.0)

	sentence, ok := p.Next(5 * time.Second)
	if !ok {
		t.Fatal("No sentence arrived within the timeout")
	}
	if sentence != "This is sentence number 1." {
		t.Errorf("Sentence = %q", sentence)
	}

	if got := p.Language(); got != "en" {
		t.Errorf("Language() = %q, want en", got)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if p.Running() {
		t.Error("Running() = true after Stop")
	}

	stats := p.Stats()
	if stats.FramesReceived != 130 {
		t.Errorf("FramesReceived = %d, want 130", stats.FramesReceived)
	}
	if stats.SegmentsEmitted != 1 {
		t.Errorf("SegmentsEmitted = %d, want 1", stats.SegmentsEmitted)
	}
	if stats.Decoded != 1 {
		t.Errorf("Decoded = %d, want 1", stats.Decoded)
	}

	if got := p.FullTranscript(false); got != "This is sentence number 1." {
		t.Errorf("FullTranscript = %q", got)
	}
}

func TestPipelineFlushesBufferedSpeechOnStop(t *testing.T) {
	source := newStubSource()
	engine := &stubEngine{}
	p := newTestPipeline(t, testConfig(""), source, engine)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Speech with no closing silence: the segment is still open when
	// Stop arrives and must be flushed, not dropped.
	source.push(100, 0.5)

	waitFor(t, func() bool { return p.Stats().FramesReceived == 100 })

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	sentence, ok := p.Next(0)
	if !ok {
		t.Fatal("Buffered speech was dropped at Stop")
	}
	if sentence != "This is sentence number 1." {
		t.Errorf("Sentence = %q", sentence)
	}
}

func TestPipelineMultipleSegmentsInOrder(t *testing.T) {
	source := newStubSource()
	engine := &stubEngine{}
	p := newTestPipeline(t, testConfig(""), source, engine)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		source.push(60, 0.5)
		source.push(30, 0.0)
	}

	for i := 1; i <= 3; i++ {
		sentence, ok := p.Next(5 * time.Second)
		if !ok {
			t.Fatalf("Sentence %d never arrived", i)
		}
		want := fmt.Sprintf("This is sentence number %d.", i)
		if sentence != want {
			t.Errorf("Sentence %d = %q, want %q", i, sentence, want)
		}
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if p.Stats().ContextWords == 0 {
		t.Error("Context log is empty after three sentences")
	}
}

func TestPipelineWritesSessionFiles(t *testing.T) {
	dir := t.TempDir()
	source := newStubSource()
	engine := &stubEngine{}
	p := newTestPipeline(t, testConfig(dir), source, engine)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	source.push(100, 0.5)
	source.push(30, 0.0)

	if _, ok := p.Next(5 * time.Second); !ok {
		t.Fatal("No sentence arrived within the timeout")
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	wavs, _ := filepath.Glob(filepath.Join(dir, "session_*.wav"))
	if len(wavs) != 1 {
		t.Fatalf("Found %d session WAV files, want 1", len(wavs))
	}

	data, err := os.ReadFile(wavs[0])
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("Captured WAV is not decodable: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Captured sample rate = %d, want 16000", rate)
	}
	if len(samples) != 130*160 {
		t.Errorf("Captured %d samples, want %d", len(samples), 130*160)
	}

	txts, _ := filepath.Glob(filepath.Join(dir, "session_*.txt"))
	if len(txts) != 1 {
		t.Fatalf("Found %d transcript files, want 1", len(txts))
	}

	content, err := os.ReadFile(txts[0])
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(content), "This is sentence number 1.") {
		t.Errorf("Transcript missing sentence, got:\n%s", content)
	}
	if !strings.Contains(string(content), "COMPLETE TRANSCRIPTION:") {
		t.Errorf("Transcript missing trailer, got:\n%s", content)
	}
}

func TestPipelineDoneSignalsSourceExhaustion(t *testing.T) {
	source := newStubSource()
	p := newTestPipeline(t, testConfig(""), source, &stubEngine{})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-p.Done():
		t.Fatal("Done() fired while the source is still open")
	default:
	}

	source.Close()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done() did not fire after the source closed")
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// stuckSource never closes its frame channel on Close, so the intake
// goroutine outlives the shutdown join.
type stuckSource struct {
	frames chan audio.Frame
}

func (s *stuckSource) Open(sampleRate, frameSamples int) (<-chan audio.Frame, error) {
	return s.frames, nil
}

func (s *stuckSource) Close() error { return nil }

func TestPipelineStopSkipsFlushWhenIntakeIsStuck(t *testing.T) {
	source := &stuckSource{frames: make(chan audio.Frame, 1024)}
	defer close(source.frames)

	cfg := testConfig("")
	cfg.Pipeline.JoinTimeout = 0.05
	p := newTestPipeline(t, cfg, source, &stubEngine{})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Buffer open speech in the segmenter, then stop while the intake
	// goroutine is still alive. The buffered audio stays with the intake
	// goroutine rather than being flushed underneath it.
	for i := 0; i < 50; i++ {
		frame := make(audio.Frame, 160)
		for j := range frame {
			frame[j] = 0.5
		}
		source.frames <- frame
	}
	waitFor(t, func() bool { return p.Stats().FramesReceived == 50 })

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := p.Stats().SegmentsEmitted; got != 0 {
		t.Errorf("SegmentsEmitted = %d, want 0 when the intake join timed out", got)
	}
}

func TestPipelineDoubleStartAndStop(t *testing.T) {
	source := newStubSource()
	p := newTestPipeline(t, testConfig(""), source, &stubEngine{})

	if err := p.Stop(); err == nil {
		t.Error("Stop before Start should fail")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(); err == nil {
		t.Error("Second Start should fail while running")
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Stop(); err == nil {
		t.Error("Second Stop should fail when not running")
	}
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

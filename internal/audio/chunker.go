package audio

import (
	"fmt"
	"time"
)

// ChunkerConfig contains configuration for fixed-window chunking.
type ChunkerConfig struct {
	SampleRate    int
	ChunkDuration time.Duration // Full window length
	Overlap       time.Duration // Trailing samples carried into the next window
	MinDuration   time.Duration // Smallest window emitted opportunistically
}

// Chunker accumulates frames into fixed-size overlapping windows. It is the
// deterministic fallback used when no voice classifier is available: windows
// are cut by sample count rather than speech boundaries, and the configured
// overlap lets the text reconciler drop words duplicated across the seam.
//
// A Chunker is owned by the audio intake goroutine and is not safe for
// concurrent use.
type Chunker struct {
	samplesPerChunk int
	samplesOverlap  int
	minChunkSamples int

	buf []float32

	chunksEmitted uint64
	shortChunks   uint64
}

// NewChunker creates a fixed-window chunker.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", cfg.ChunkDuration)
	}

	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkDuration {
		return nil, fmt.Errorf("overlap must be in [0, chunk duration), got %s", cfg.Overlap)
	}

	if cfg.MinDuration <= 0 || cfg.MinDuration > cfg.ChunkDuration {
		return nil, fmt.Errorf("min duration must be in (0, chunk duration], got %s", cfg.MinDuration)
	}

	return &Chunker{
		samplesPerChunk: FrameSamples(cfg.SampleRate, cfg.ChunkDuration),
		samplesOverlap:  FrameSamples(cfg.SampleRate, cfg.Overlap),
		minChunkSamples: FrameSamples(cfg.SampleRate, cfg.MinDuration),
	}, nil
}

// Push appends one frame and returns a completed window, or nil if more
// audio is needed. A full window retains the trailing overlap samples as the
// seed of the next window; a short window (at least the minimum size but
// below the full size) is emitted without overlap retention so tail latency
// stays bounded under slow input.
func (c *Chunker) Push(frame Frame) Frame {
	c.buf = append(c.buf, frame...)

	if len(c.buf) >= c.samplesPerChunk {
		chunk := make(Frame, c.samplesPerChunk)
		copy(chunk, c.buf[:c.samplesPerChunk])

		// Keep the overlap tail as the start of the next window.
		keep := c.buf[c.samplesPerChunk-c.samplesOverlap:]
		next := make([]float32, len(keep))
		copy(next, keep)
		c.buf = next

		c.chunksEmitted++
		return chunk
	}

	if len(c.buf) >= c.minChunkSamples {
		chunk := make(Frame, len(c.buf))
		copy(chunk, c.buf)
		c.buf = c.buf[:0]

		c.chunksEmitted++
		c.shortChunks++
		return chunk
	}

	return nil
}

// Flush returns any buffered samples as a final window, or nil if the
// buffer is empty. Called when the stream stops.
func (c *Chunker) Flush() Frame {
	if len(c.buf) == 0 {
		return nil
	}

	chunk := make(Frame, len(c.buf))
	copy(chunk, c.buf)
	c.buf = c.buf[:0]

	c.chunksEmitted++
	return chunk
}

// Reset discards buffered audio and statistics for a new session.
func (c *Chunker) Reset() {
	c.buf = c.buf[:0]
	c.chunksEmitted = 0
	c.shortChunks = 0
}

// Buffered returns the number of samples currently waiting for a window.
func (c *Chunker) Buffered() int {
	return len(c.buf)
}

// ChunksEmitted returns the number of windows produced so far.
func (c *Chunker) ChunksEmitted() uint64 {
	return c.chunksEmitted
}

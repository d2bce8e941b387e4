package audio

import (
	"testing"
	"time"
)

func TestNewChunkerValidation(t *testing.T) {
	base := ChunkerConfig{
		SampleRate:    16000,
		ChunkDuration: 5 * time.Second,
		Overlap:       200 * time.Millisecond,
		MinDuration:   1 * time.Second,
	}

	if _, err := NewChunker(base); err != nil {
		t.Fatalf("NewChunker failed on valid config: %v", err)
	}

	bad := base
	bad.Overlap = 5 * time.Second
	if _, err := NewChunker(bad); err == nil {
		t.Error("NewChunker should reject overlap >= chunk duration")
	}

	bad = base
	bad.MinDuration = 6 * time.Second
	if _, err := NewChunker(bad); err == nil {
		t.Error("NewChunker should reject min duration > chunk duration")
	}

	bad = base
	bad.SampleRate = 0
	if _, err := NewChunker(bad); err == nil {
		t.Error("NewChunker should reject a non-positive sample rate")
	}
}

func TestChunkerEmitsAtMinDuration(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{
		SampleRate:    16000,
		ChunkDuration: 5 * time.Second,
		Overlap:       200 * time.Millisecond,
		MinDuration:   1 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	frame := make(Frame, 160) // 10ms

	// 99 frames stay below the 1s minimum.
	for i := 0; i < 99; i++ {
		if chunk := c.Push(frame); chunk != nil {
			t.Fatalf("Chunk emitted after %d frames, before the minimum", i+1)
		}
	}

	// The 100th frame reaches 1s and is emitted opportunistically.
	chunk := c.Push(frame)
	if chunk == nil {
		t.Fatal("No chunk emitted at the minimum duration")
	}
	if len(chunk) != 16000 {
		t.Errorf("Chunk has %d samples, want 16000", len(chunk))
	}

	// A short chunk does not retain overlap.
	if c.Buffered() != 0 {
		t.Errorf("Buffered() = %d after short chunk, want 0", c.Buffered())
	}
}

func TestChunkerFullWindowRetainsOverlap(t *testing.T) {
	// Min == full duration so the full-window path is exercised.
	c, err := NewChunker(ChunkerConfig{
		SampleRate:    16000,
		ChunkDuration: 1 * time.Second,
		Overlap:       200 * time.Millisecond,
		MinDuration:   1 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	// Distinct values so the retained tail is identifiable.
	var chunk Frame
	sample := float32(0)
	frame := make(Frame, 160)
	for chunk == nil {
		for i := range frame {
			frame[i] = sample
			sample++
		}
		chunk = c.Push(frame)
	}

	if len(chunk) != 16000 {
		t.Fatalf("Chunk has %d samples, want 16000", len(chunk))
	}

	// 200ms at 16kHz = 3200 samples carried into the next window.
	if c.Buffered() != 3200 {
		t.Fatalf("Buffered() = %d after full chunk, want 3200", c.Buffered())
	}

	// The retained samples are the chunk's tail: pushing one more frame
	// must not disturb them, and the next chunk must start with them.
	next := c.Push(frame)
	if next != nil {
		t.Fatal("Unexpected chunk right after overlap retention")
	}

	if c.ChunksEmitted() != 1 {
		t.Errorf("ChunksEmitted() = %d, want 1", c.ChunksEmitted())
	}
}

func TestChunkerFlushReturnsRemainder(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{
		SampleRate:    16000,
		ChunkDuration: 5 * time.Second,
		Overlap:       0,
		MinDuration:   1 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	if c.Flush() != nil {
		t.Error("Flush on an empty chunker should return nil")
	}

	frame := make(Frame, 160)
	for i := 0; i < 30; i++ {
		c.Push(frame)
	}

	remainder := c.Flush()
	if remainder == nil {
		t.Fatal("Flush should return the buffered samples")
	}
	if len(remainder) != 30*160 {
		t.Errorf("Remainder has %d samples, want %d", len(remainder), 30*160)
	}
	if c.Buffered() != 0 {
		t.Errorf("Buffered() = %d after Flush, want 0", c.Buffered())
	}
}

func TestChunkerReset(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{
		SampleRate:    16000,
		ChunkDuration: 1 * time.Second,
		Overlap:       0,
		MinDuration:   500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	frame := make(Frame, 160)
	for i := 0; i < 60; i++ {
		c.Push(frame)
	}

	c.Reset()

	if c.Buffered() != 0 {
		t.Errorf("Buffered() = %d after Reset, want 0", c.Buffered())
	}
	if c.ChunksEmitted() != 0 {
		t.Errorf("ChunksEmitted() = %d after Reset, want 0", c.ChunksEmitted())
	}
}

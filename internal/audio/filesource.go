package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileSource replays a WAV file as a live frame stream, paced at real time.
// It exists so the pipeline can be driven without a capture device; the
// file's sample rate must match the rate requested on Open.
type FileSource struct {
	path string

	mu     sync.Mutex
	opened bool
	done   chan struct{}
}

// NewFileSource creates a source that reads the given WAV file on Open.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Open decodes the file and starts a goroutine delivering one frame per
// frame interval. The channel closes at end of file or on Close.
func (s *FileSource) Open(sampleRate, frameSamples int) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil, fmt.Errorf("source already open")
	}

	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %s: %w", s.path, err)
	}

	samples, fileRate, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio file %s: %w", s.path, err)
	}

	if fileRate != sampleRate {
		return nil, fmt.Errorf("sample rate mismatch: file is %d Hz, pipeline expects %d Hz", fileRate, sampleRate)
	}

	frames := make(chan Frame, sourceChannelDepth)
	s.done = make(chan struct{})
	s.opened = true

	interval := time.Duration(frameSamples) * time.Second / time.Duration(sampleRate)

	go func() {
		defer close(frames)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for offset := 0; offset+frameSamples <= len(samples); offset += frameSamples {
			frame := make(Frame, frameSamples)
			copy(frame, samples[offset:offset+frameSamples])

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}

			select {
			case frames <- frame:
			case <-s.done:
				return
			}
		}
	}()

	return frames, nil
}

// Close stops playback; the frame channel closes shortly after.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}

	select {
	case <-s.done:
	default:
		close(s.done)
	}

	return nil
}

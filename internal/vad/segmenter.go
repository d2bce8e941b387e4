package vad

import (
	"fmt"
	"time"

	"github.com/vkovalenko/streamscribe/internal/audio"
)

// SegmenterConfig contains configuration for voice-activity segmentation.
type SegmenterConfig struct {
	SampleRate       int
	FrameDuration    time.Duration // Duration of one input frame (e.g. 10ms)
	SilenceThreshold time.Duration // Silence run that ends an utterance
	MaxDuration      time.Duration // Force-emit cap for continuous speech
}

// Segmenter converts a raw frame stream into silence-bounded speech
// segments. Speech frames accumulate in a buffer; once the run of silent
// frames reaches the silence threshold the buffer is emitted as one
// segment. A maximum-duration safety valve bounds latency and memory when
// the speaker never pauses.
//
// The silence threshold is the most important tuning knob: too low cuts
// mid-word, too high merges distinct utterances.
//
// A Segmenter is owned by the audio intake goroutine and is not safe for
// concurrent use.
type Segmenter struct {
	classifier Classifier
	cfg        SegmenterConfig

	maxSamples int

	speechBuf     []float32
	silenceFrames int

	framesSeen      uint64
	speechFrames    uint64
	classifierFails uint64
	segmentsEmitted uint64
}

// NewSegmenter creates a segmenter using the given frame classifier.
func NewSegmenter(cfg SegmenterConfig, classifier Classifier) (*Segmenter, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.FrameDuration <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %s", cfg.FrameDuration)
	}

	if cfg.SilenceThreshold < cfg.FrameDuration {
		return nil, fmt.Errorf("silence threshold %s must be at least one frame duration %s",
			cfg.SilenceThreshold, cfg.FrameDuration)
	}

	if cfg.MaxDuration <= 0 {
		return nil, fmt.Errorf("max duration must be positive, got %s", cfg.MaxDuration)
	}

	return &Segmenter{
		classifier: classifier,
		cfg:        cfg,
		maxSamples: audio.FrameSamples(cfg.SampleRate, cfg.MaxDuration),
	}, nil
}

// Push classifies one frame and returns a completed segment, or nil if the
// utterance is still open. A classifier error counts the frame as silence.
func (s *Segmenter) Push(frame audio.Frame) audio.Frame {
	s.framesSeen++

	isSpeech, err := s.classifier.Classify(frame, s.cfg.SampleRate)
	if err != nil {
		s.classifierFails++
		isSpeech = false
	}

	if isSpeech {
		s.speechFrames++
		s.speechBuf = append(s.speechBuf, frame...)
		s.silenceFrames = 0

		// Safety valve: continuous speech must not grow unbounded.
		if len(s.speechBuf) >= s.maxSamples {
			return s.emit()
		}

		return nil
	}

	s.silenceFrames++

	silence := time.Duration(s.silenceFrames) * s.cfg.FrameDuration
	if silence >= s.cfg.SilenceThreshold && len(s.speechBuf) > 0 {
		s.silenceFrames = 0
		return s.emit()
	}

	return nil
}

// Flush returns any buffered speech as a final segment, or nil if no speech
// is pending. Called on stream stop so trailing speech is never dropped.
func (s *Segmenter) Flush() audio.Frame {
	if len(s.speechBuf) == 0 {
		return nil
	}
	return s.emit()
}

func (s *Segmenter) emit() audio.Frame {
	segment := make(audio.Frame, len(s.speechBuf))
	copy(segment, s.speechBuf)
	s.speechBuf = s.speechBuf[:0]
	s.segmentsEmitted++
	return segment
}

// Reset clears buffered speech and statistics for a new session.
func (s *Segmenter) Reset() {
	s.speechBuf = s.speechBuf[:0]
	s.silenceFrames = 0
	s.framesSeen = 0
	s.speechFrames = 0
	s.classifierFails = 0
	s.segmentsEmitted = 0
}

// Buffered returns the number of speech samples awaiting a boundary.
func (s *Segmenter) Buffered() int {
	return len(s.speechBuf)
}

// Stats returns counters describing the session so far.
func (s *Segmenter) Stats() SegmenterStats {
	return SegmenterStats{
		FramesSeen:      s.framesSeen,
		SpeechFrames:    s.speechFrames,
		ClassifierFails: s.classifierFails,
		SegmentsEmitted: s.segmentsEmitted,
	}
}

// SegmenterStats describes segmenter activity for monitoring.
type SegmenterStats struct {
	FramesSeen      uint64 `json:"frames_seen"`
	SpeechFrames    uint64 `json:"speech_frames"`
	ClassifierFails uint64 `json:"classifier_fails"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
}

package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.05))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Errorf("Encoded size = %d, want %d", len(data), wavHeaderSize+len(samples)*2)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Decoded sample rate = %d, want 16000", rate)
	}

	if len(decoded) != len(samples) {
		t.Fatalf("Decoded %d samples, want %d", len(decoded), len(samples))
	}

	// PCM-16 quantization loses precision but stays within one step.
	for i := range samples {
		if diff := math.Abs(float64(decoded[i] - samples[i])); diff > 1.0/32767 {
			t.Fatalf("Sample %d differs by %f after round trip", i, diff)
		}
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("EncodeWAV should fail on empty samples")
	}

	if _, err := EncodeWAV([]float32{0.1}, 0); err == nil {
		t.Error("EncodeWAV should fail on a non-positive sample rate")
	}
}

func TestDecodeWAVRejectsCorruptData(t *testing.T) {
	valid, err := EncodeWAV([]float32{0.1, 0.2, 0.3, 0.4}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{"truncated header", func(d []byte) []byte { return d[:20] }},
		{"bad RIFF magic", func(d []byte) []byte { d[0] = 'X'; return d }},
		{"bad WAVE format", func(d []byte) []byte { d[8] = 'X'; return d }},
		{"non-PCM format", func(d []byte) []byte { d[20] = 3; return d }},
		{"stereo channels", func(d []byte) []byte { d[22] = 2; return d }},
		{"8-bit depth", func(d []byte) []byte { d[34] = 8; return d }},
	}

	for _, tt := range tests {
		data := make([]byte, len(valid))
		copy(data, valid)

		if _, _, err := DecodeWAV(tt.corrupt(data)); err == nil {
			t.Errorf("DecodeWAV should reject %s", tt.name)
		}
	}
}

func TestWriterProducesValidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.wav")

	w, err := NewWriter(path, 16000)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	frame := make(Frame, 160)
	for i := range frame {
		frame[i] = 0.25
	}

	for i := 0; i < 10; i++ {
		if err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame %d failed: %v", i, err)
		}
	}

	if w.DataBytes() != 10*160*2 {
		t.Errorf("DataBytes() = %d, want %d", w.DataBytes(), 10*160*2)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The patched header must make the file decodable.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	samples, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV of written file failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Sample rate = %d, want 16000", rate)
	}
	if len(samples) != 10*160 {
		t.Errorf("Decoded %d samples, want %d", len(samples), 10*160)
	}
}

func TestWriterAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")

	w, err := NewWriter(path, 8000)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := w.WriteFrame(make(Frame, 80)); err == nil {
		t.Error("WriteFrame after Close should fail")
	}

	// Close is idempotent.
	if err := w.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestFrameDuration(t *testing.T) {
	frame := make(Frame, 160)
	if d := frame.Duration(16000); d.Milliseconds() != 10 {
		t.Errorf("Duration = %s, want 10ms", d)
	}

	if n := FrameSamples(16000, frame.Duration(16000)); n != 160 {
		t.Errorf("FrameSamples = %d, want 160", n)
	}
}

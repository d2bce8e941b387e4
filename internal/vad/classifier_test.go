package vad

import (
	"testing"
)

func TestNewEnergyClassifier(t *testing.T) {
	for level := 0; level <= 3; level++ {
		c, err := NewEnergyClassifier(level)
		if err != nil {
			t.Fatalf("NewEnergyClassifier(%d) failed: %v", level, err)
		}
		if c.Aggressiveness() != level {
			t.Errorf("Aggressiveness() = %d, want %d", c.Aggressiveness(), level)
		}
	}
}

func TestNewEnergyClassifierInvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 4, 100} {
		if _, err := NewEnergyClassifier(level); err == nil {
			t.Errorf("NewEnergyClassifier(%d) should have failed", level)
		}
	}
}

func TestEnergyClassifierLoudFrameIsSpeech(t *testing.T) {
	c, err := NewEnergyClassifier(2)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.5
	}

	isSpeech, err := c.Classify(loud, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !isSpeech {
		t.Error("Loud frame should be classified as speech")
	}
}

func TestEnergyClassifierQuietFrameIsSilence(t *testing.T) {
	c, err := NewEnergyClassifier(2)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	quiet := make([]float32, 160)
	for i := range quiet {
		quiet[i] = 0.001
	}

	isSpeech, err := c.Classify(quiet, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if isSpeech {
		t.Error("Quiet frame should be classified as silence")
	}
}

func TestEnergyClassifierAggressivenessOrdering(t *testing.T) {
	// A frame just above the permissive threshold must be speech at
	// level 0 but silence at level 3.
	frame := make([]float32, 160)
	for i := range frame {
		frame[i] = 0.007
	}

	permissive, _ := NewEnergyClassifier(0)
	aggressive, _ := NewEnergyClassifier(3)

	isSpeech, err := permissive.Classify(frame, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !isSpeech {
		t.Error("Level 0 should accept the frame as speech")
	}

	isSpeech, err = aggressive.Classify(frame, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if isSpeech {
		t.Error("Level 3 should reject the frame as silence")
	}
}

func TestEnergyClassifierInvalidInput(t *testing.T) {
	c, _ := NewEnergyClassifier(1)

	if _, err := c.Classify(nil, 16000); err == nil {
		t.Error("Classify should fail on an empty frame")
	}

	if _, err := c.Classify([]float32{0.1}, 0); err == nil {
		t.Error("Classify should fail on a non-positive sample rate")
	}
}

package vad

import (
	"fmt"
	"math"
)

// Classifier decides whether a single audio frame contains speech.
// Implementations may fail on a frame; the segmenter treats a failed
// classification as silence for that frame only.
type Classifier interface {
	Classify(samples []float32, sampleRate int) (bool, error)
}

// energyThresholds maps aggressiveness 0-3 to an RMS energy floor.
// Higher aggressiveness requires louder audio to count as speech, so it
// cuts segments more eagerly.
var energyThresholds = [4]float64{0.005, 0.010, 0.020, 0.040}

// EnergyClassifier is an RMS-energy voice detector. It is a deliberately
// simple stand-in for a model-based classifier behind the same interface.
type EnergyClassifier struct {
	aggressiveness int
	threshold      float64
}

// NewEnergyClassifier creates a classifier with the given aggressiveness
// (0 = most permissive, 3 = most aggressive).
func NewEnergyClassifier(aggressiveness int) (*EnergyClassifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", aggressiveness)
	}

	return &EnergyClassifier{
		aggressiveness: aggressiveness,
		threshold:      energyThresholds[aggressiveness],
	}, nil
}

// Classify reports whether the frame's RMS energy crosses the threshold.
func (c *EnergyClassifier) Classify(samples []float32, sampleRate int) (bool, error) {
	if len(samples) == 0 {
		return false, fmt.Errorf("cannot classify empty frame")
	}

	if sampleRate <= 0 {
		return false, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(samples)))

	return rms >= c.threshold, nil
}

// Aggressiveness returns the configured aggressiveness level.
func (c *EnergyClassifier) Aggressiveness() int {
	return c.aggressiveness
}

package transcription

import (
	"context"
	"time"

	"github.com/vkovalenko/streamscribe/internal/audio"
)

// Engine is the opaque inference capability behind the pipeline: it
// consumes a fixed-length mono audio window at a known sample rate and
// returns decoded text, plus per-language probabilities on request.
// Implementations must be safe for use from a single worker goroutine.
type Engine interface {
	// DetectLanguage returns probabilities per language code for the
	// given audio window.
	DetectLanguage(ctx context.Context, samples []float32) (map[string]float64, error)

	// Decode transcribes the given audio window. language may be empty,
	// leaving the choice to the engine.
	Decode(ctx context.Context, samples []float32, language string) (string, error)
}

// Result is the outcome of transcribing one segment. Results are immutable
// once created; downstream stages that rewrite the text produce a new
// Result rather than mutating this one.
type Result struct {
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// Segment is one bounded span of audio submitted as a unit to the engine.
type Segment struct {
	Samples  audio.Frame
	Captured time.Time
}

// maxLanguage returns the language code with the highest probability.
func maxLanguage(probs map[string]float64) string {
	best := ""
	bestProb := -1.0
	for lang, p := range probs {
		if p > bestProb {
			best = lang
			bestProb = p
		}
	}
	return best
}

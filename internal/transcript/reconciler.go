package transcript

import (
	"strings"
)

// trailingWordCount is how many words of the previous chunk are kept for
// prefix comparison against the next chunk.
const trailingWordCount = 3

// Reconciler removes text duplicated by the fixed-window chunker's sample
// overlap. It keeps the trailing words of the previous chunk's text and
// strips them when the next chunk starts with the same words.
//
// This is a heuristic, not exact alignment: a missed overlap produces minor
// duplication, an over-eager match loses a word or two. Segments produced
// by the voice-activity segmenter do not overlap, so no reconciler is used
// in that mode.
//
// A Reconciler is owned by the inference worker and is not safe for
// concurrent use.
type Reconciler struct {
	trailing string
}

// NewReconciler creates a reconciler with no prior chunk.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile strips the previous chunk's trailing words from the start of
// text and returns the remainder. A chunk that consists entirely of the
// trailing words yields an empty string (fully redundant). The trailing
// words are re-derived from what remains.
func (r *Reconciler) Reconcile(text string) string {
	current := strings.TrimSpace(text)
	if current == "" {
		return ""
	}

	if r.trailing != "" {
		if current == r.trailing {
			// Fully redundant chunk; keep the existing trailing words so
			// the next chunk is still compared against real text.
			return ""
		}
		// Match on a word boundary so "on the mat" does not strip into
		// "on the mattress".
		if strings.HasPrefix(current, r.trailing+" ") {
			current = strings.TrimSpace(current[len(r.trailing):])
			if current == "" {
				return ""
			}
		}
	}

	words := strings.Fields(current)
	if len(words) > trailingWordCount {
		r.trailing = strings.Join(words[len(words)-trailingWordCount:], " ")
	} else {
		r.trailing = strings.Join(words, " ")
	}

	return current
}

// Reset clears the remembered trailing words for a new session.
func (r *Reconciler) Reset() {
	r.trailing = ""
}

// Trailing returns the words the next chunk will be compared against.
func (r *Reconciler) Trailing() string {
	return r.trailing
}

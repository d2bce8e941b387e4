package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Terminal punctuation per language family. Languages without an entry use
// the combined set, as does an unpinned (empty) language.
var (
	latinTerminals    = ".!?"
	cjkTerminals      = "。！？"
	combinedTerminals = latinTerminals + cjkTerminals

	terminalsByLanguage = map[string]string{
		"en": latinTerminals,
		"ko": latinTerminals,
		"zh": cjkTerminals,
		"ja": cjkTerminals,
	}
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	ellipsisRe   = regexp.MustCompile(`\.{2,}`)

	// Non-speech markers the model emits: [Music], (background noise),
	// <INAUDIBLE>.
	annotationRes = []*regexp.Regexp{
		regexp.MustCompile(`\[[^\]]*\]`),
		regexp.MustCompile(`\([^)]*\)`),
		regexp.MustCompile(`<[^>]*>`),
	}
)

// CleanText collapses whitespace, strips bracketed non-speech annotations,
// and squashes runs of dots into an ellipsis.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	for _, re := range annotationRes {
		text = re.ReplaceAllString(text, "")
	}
	text = ellipsisRe.ReplaceAllString(text, "...")

	return strings.TrimSpace(text)
}

// Assembler decides when accumulated text becomes settled output. A
// fragment that is a complete sentence on its own is finalized immediately;
// otherwise fragments collect as pending partials until their concatenation
// completes a sentence. Pending text is exposed separately so a live
// display can distinguish provisional from settled transcript.
type Assembler struct {
	minWords int

	mu       sync.Mutex
	language string
	partials []string
}

// NewAssembler creates an assembler requiring at least minWords words for a
// sentence (values below 1 fall back to 1).
func NewAssembler(minWords int) *Assembler {
	if minWords < 1 {
		minWords = 1
	}
	return &Assembler{minWords: minWords}
}

// SetLanguage pins the language used for punctuation matching.
func (a *Assembler) SetLanguage(language string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.language = language
}

// Add feeds one cleaned fragment into the assembler. It returns the
// finalized text and true when the fragment (or the pending concatenation
// it completes) forms a full sentence, otherwise "" and false.
func (a *Assembler) Add(fragment string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fragment = CleanText(fragment)
	if fragment == "" {
		return "", false
	}

	if a.isCompleteSentence(fragment) {
		a.partials = a.partials[:0]
		return fragment, true
	}

	a.partials = append(a.partials, fragment)

	combined := strings.Join(a.partials, " ")
	if a.isCompleteSentence(combined) {
		a.partials = a.partials[:0]
		return combined, true
	}

	return "", false
}

// Pending returns the concatenation of fragments not yet finalized.
func (a *Assembler) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.partials, " ")
}

// Flush returns and clears any pending partial text. Called at stream stop
// so unfinished speech still reaches the transcript.
func (a *Assembler) Flush() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	combined := strings.Join(a.partials, " ")
	a.partials = a.partials[:0]
	return combined
}

// Reset clears pending partials and the pinned language for a new session.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partials = a.partials[:0]
	a.language = ""
}

// isCompleteSentence reports whether text has enough words and ends with
// terminal punctuation appropriate for the pinned language.
func (a *Assembler) isCompleteSentence(text string) bool {
	if text == "" {
		return false
	}

	if len(strings.Fields(text)) < a.minWords {
		return false
	}

	terminals, ok := terminalsByLanguage[a.language]
	if !ok {
		terminals = combinedTerminals
	}

	runes := []rune(text)
	last := runes[len(runes)-1]

	return strings.ContainsRune(terminals, last)
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// FormatOffset renders a duration as the "[12.3s]" prefix used in
// timestamped transcript lines.
func FormatOffset(seconds float64) string {
	return fmt.Sprintf("[%.1fs]", seconds)
}

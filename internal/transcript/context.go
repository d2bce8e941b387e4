package transcript

import (
	"strings"
	"sync"
	"time"
)

// Entry is one finalized transcript fragment.
type Entry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	WordCount int       `json:"word_count"`
}

// Context is the bounded ordered log of finalized fragments for a session.
// The total word count across entries never exceeds the configured maximum;
// oldest entries are evicted first. Eviction is FIFO rather than LRU
// because arrival order is the only relevance signal for a transcript.
type Context struct {
	mu         sync.RWMutex
	entries    []Entry
	totalWords int
	maxWords   int
	evictions  uint64
}

// NewContext creates a context log holding at most maxWords words
// (values below 1 fall back to 100).
func NewContext(maxWords int) *Context {
	if maxWords < 1 {
		maxWords = 100
	}
	return &Context{maxWords: maxWords}
}

// Append adds a finalized fragment, evicting the oldest entries until the
// word budget holds. Empty text is ignored.
func (c *Context) Append(text string, timestamp time.Time) {
	words := WordCount(text)
	if words == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, Entry{
		Text:      text,
		Timestamp: timestamp,
		WordCount: words,
	})
	c.totalWords += words

	// Strict budget: an entry that alone exceeds the maximum empties
	// the log entirely, including itself.
	for c.totalWords > c.maxWords && len(c.entries) > 0 {
		c.totalWords -= c.entries[0].WordCount
		c.entries = c.entries[1:]
		c.evictions++
	}
}

// FullText returns all retained fragments joined in arrival order.
func (c *Context) FullText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parts := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}

// Timestamped returns one line per fragment prefixed with its offset from
// the session start.
func (c *Context) Timestamped(sessionStart time.Time) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		offset := e.Timestamp.Sub(sessionStart).Seconds()
		lines = append(lines, FormatOffset(offset)+" "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// Entries returns a copy of the retained entries in arrival order.
func (c *Context) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Words returns the current total word count.
func (c *Context) Words() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalWords
}

// Len returns the number of retained entries.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evictions returns how many entries were evicted to hold the budget.
func (c *Context) Evictions() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictions
}

// Reset clears the log for a new session.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.totalWords = 0
	c.evictions = 0
}

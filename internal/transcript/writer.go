package transcript

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// FileWriter writes finalized fragments to a plain-text transcript file as
// they arrive, one line each, optionally prefixed with the offset from the
// session start. Close appends a trailer with the complete session text.
type FileWriter struct {
	file        *os.File
	buf         *bufio.Writer
	withOffsets bool
	start       time.Time
	full        strings.Builder
	closed      bool
}

// NewFileWriter creates the transcript file. sessionStart anchors the
// offset prefixes when withOffsets is set.
func NewFileWriter(path string, withOffsets bool, sessionStart time.Time) (*FileWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file %s: %w", path, err)
	}

	return &FileWriter{
		file:        file,
		buf:         bufio.NewWriter(file),
		withOffsets: withOffsets,
		start:       sessionStart,
	}, nil
}

// WriteFragment appends one finalized fragment and flushes, so the file
// stays current if the process dies mid-session.
func (w *FileWriter) WriteFragment(text string, timestamp time.Time) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	if text == "" {
		return nil
	}

	var line string
	if w.withOffsets {
		offset := timestamp.Sub(w.start).Seconds()
		line = FormatOffset(offset) + " " + text + "\n"
	} else {
		line = text + "\n"
	}

	if _, err := w.buf.WriteString(line); err != nil {
		return fmt.Errorf("failed to write transcript line: %w", err)
	}

	w.full.WriteString(text)
	w.full.WriteString(" ")

	return w.buf.Flush()
}

// Close writes the complete-transcription trailer and closes the file.
func (w *FileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	full := strings.TrimSpace(w.full.String())
	if full != "" {
		sep := strings.Repeat("=", 60)
		fmt.Fprintf(w.buf, "\n%s\nCOMPLETE TRANSCRIPTION:\n%s\n%s\n", sep, sep, full)
	}

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush transcript file: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript file: %w", err)
	}

	return nil
}

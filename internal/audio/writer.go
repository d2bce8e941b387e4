package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Writer writes a mono PCM-16 WAV file incrementally as frames arrive.
// The header is written with zero sizes on creation and patched with the
// final counts on Close, so a crash mid-session leaves a recoverable file
// with raw PCM after the standard 44-byte header.
type Writer struct {
	file       *os.File
	buf        *bufio.Writer
	sampleRate int
	dataBytes  uint32
	closed     bool
}

// NewWriter creates the output file and writes a placeholder WAV header.
func NewWriter(path string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file %s: %w", path, err)
	}

	w := &Writer{
		file:       file,
		buf:        bufio.NewWriter(file),
		sampleRate: sampleRate,
	}

	header := newWAVHeader(sampleRate, 0)
	if err := binary.Write(w.buf, binary.LittleEndian, header); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return w, nil
}

// WriteFrame appends one frame of samples to the file.
func (w *Writer) WriteFrame(frame Frame) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	pcm := FloatToPCM16(frame)
	if _, err := w.buf.Write(pcm); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	w.dataBytes += uint32(len(pcm))
	return nil
}

// Close flushes buffered samples and patches the header sizes.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush audio data: %w", err)
	}

	header := newWAVHeader(w.sampleRate, w.dataBytes)
	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to seek to WAV header: %w", err)
	}

	if err := binary.Write(w.file, binary.LittleEndian, header); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audio file: %w", err)
	}

	return nil
}

// DataBytes returns the number of PCM bytes written so far.
func (w *Writer) DataBytes() uint32 {
	return w.dataBytes
}

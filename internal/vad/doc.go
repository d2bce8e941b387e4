// Package vad provides per-frame voice activity classification and the
// silence-bounded segmenter that groups contiguous speech frames into
// utterance segments for transcription.
package vad

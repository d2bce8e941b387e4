// Package stream coordinates the transcription pipeline: it pulls frames
// from an audio source, segments them, dispatches segments for inference
// and assembles decoded fragments into a running transcript.
package stream

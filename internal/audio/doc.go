// Package audio handles audio frames, chunking, and format conversion.
// It implements the fixed-window chunker used when voice activity detection
// is disabled, PCM-16/float32 conversion, WAV encoding and incremental WAV
// recording, and the frame sources that push live audio into the pipeline.
package audio

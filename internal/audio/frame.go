package audio

import (
	"time"
)

// Frame is a fixed-duration buffer of mono samples with float amplitude
// in [-1, 1]. Ownership transfers to the consumer when a frame crosses the
// source channel; frames are never mutated after creation.
type Frame []float32

// Duration returns the play time of the frame at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f)) * time.Second / time.Duration(sampleRate)
}

// FramesPerSecond returns how many frames of the given duration fit in one
// second of audio.
func FramesPerSecond(frameDuration time.Duration) int {
	if frameDuration <= 0 {
		return 0
	}
	return int(time.Second / frameDuration)
}

// FrameSamples returns the number of samples in one frame of the given
// duration at the given sample rate (e.g. 10ms at 16kHz = 160 samples).
func FrameSamples(sampleRate int, frameDuration time.Duration) int {
	return int(int64(sampleRate) * int64(frameDuration) / int64(time.Second))
}

// FloatToPCM16 converts float32 samples in [-1, 1] to little-endian PCM-16
// bytes. Values outside the range are clipped.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clampSample(s) * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat converts little-endian PCM-16 bytes to float32 samples in
// [-1, 1]. A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

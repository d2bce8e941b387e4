package audio

// Source supplies a continuous sequence of fixed-size audio frames from a
// capture device or transport. Open starts delivery and returns the frame
// channel; the channel is closed when the source ends or Close is called.
//
// Implementations must never block on a slow consumer: the channel is
// buffered and frames are dropped (and counted) when it fills, preserving
// the real-time producer contract.
type Source interface {
	Open(sampleRate, frameSamples int) (<-chan Frame, error)
	Close() error
}

// sourceChannelDepth is the buffer size of the frame channel. At 10ms
// frames this absorbs ~0.6s of consumer stall before frames are dropped.
const sourceChannelDepth = 64

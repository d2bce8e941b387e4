package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketSource receives live audio from a capture agent over a WebSocket
// connection. Each binary message carries little-endian PCM-16 mono samples
// at the agreed sample rate; messages are re-sliced into fixed-size frames
// before delivery, with any residue carried into the next message.
type WebsocketSource struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	frames  chan Frame
	opened  bool
	closed  bool
	dropped uint64
}

// NewWebsocketSource creates a source that dials the given ws:// or wss://
// URL on Open.
func NewWebsocketSource(url string, logger *slog.Logger) *WebsocketSource {
	return &WebsocketSource{
		url:    url,
		logger: logger,
	}
}

// Open dials the capture endpoint and starts the reader goroutine.
func (s *WebsocketSource) Open(sampleRate, frameSamples int) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil, fmt.Errorf("source already open")
	}

	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to capture endpoint %s: %w", s.url, err)
	}

	s.conn = conn
	s.frames = make(chan Frame, sourceChannelDepth)
	s.opened = true

	go s.readLoop(conn, frameSamples)

	return s.frames, nil
}

// readLoop converts incoming PCM messages to frames until the connection
// closes. It never blocks on the frame channel. The connection is passed in
// rather than read from the struct so Close never races the reader.
func (s *WebsocketSource) readLoop(conn *websocket.Conn, frameSamples int) {
	defer close(s.frames)

	var pending []float32

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Capture connection closed unexpectedly",
					slog.String("url", s.url),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			continue
		}

		pending = append(pending, PCM16ToFloat(data)...)

		for len(pending) >= frameSamples {
			frame := make(Frame, frameSamples)
			copy(frame, pending[:frameSamples])
			pending = pending[frameSamples:]

			select {
			case s.frames <- frame:
			default:
				// Consumer stalled; shed the frame rather than block capture.
				s.mu.Lock()
				s.dropped++
				dropped := s.dropped
				s.mu.Unlock()

				if dropped%100 == 1 {
					s.logger.Warn("Dropping audio frames, consumer too slow",
						slog.Uint64("dropped_total", dropped),
					)
				}
			}
		}
	}
}

// Close shuts the connection, which ends the reader goroutine and closes
// the frame channel.
func (s *WebsocketSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened || s.closed {
		return nil
	}
	s.closed = true

	// Best effort close handshake before tearing down the connection.
	// Closing unblocks the pending ReadMessage, which ends the reader.
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return s.conn.Close()
}

// Dropped returns the number of frames shed due to consumer backpressure.
func (s *WebsocketSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

package broadcast

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WebsocketSink adapts a gorilla/websocket connection to io.Writer so a
// Broadcaster can publish frames straight onto a socket. Write is the only
// method the drain goroutine calls, so the mutex here is purely defensive
// against a caller sharing the sink across more than one Broadcaster.
type WebsocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketSink wraps an already-established connection.
func NewWebsocketSink(conn *websocket.Conn) *WebsocketSink {
	return &WebsocketSink{conn: conn}
}

// Write sends p as a single binary websocket message.
func (s *WebsocketSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close closes the underlying connection.
func (s *WebsocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.Close()
}

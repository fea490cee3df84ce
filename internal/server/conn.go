package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// frameConn adapts a raw upgraded connection to JSON-frame-at-a-time I/O.
// Writes are serialized so the streaming goroutine and pong replies do not
// interleave frames.
type frameConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func newFrameConn(conn net.Conn) *frameConn {
	return &frameConn{conn: conn}
}

// ReadRaw returns the next data payload, replying to control frames along
// the way. io.EOF means the peer closed.
func (c *frameConn) ReadRaw() ([]byte, error) {
	for {
		data, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return nil, err
		}
		switch op {
		case ws.OpText, ws.OpBinary:
			return data, nil
		case ws.OpClose:
			return nil, io.EOF
		default:
			continue
		}
	}
}

// WriteJSON marshals v and sends it as one text frame.
func (c *frameConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsutil.WriteServerText(c.conn, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *frameConn) Close() error {
	return c.conn.Close()
}

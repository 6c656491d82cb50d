package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var _ service.Conn = (*Conn)(nil)

// Conn adapts a gorilla websocket connection to service.Conn.
// Writes are serialized by a mutex so the broadcast loop and the
// connection's own loop can send concurrently.
type Conn struct {
	id string
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps ws with the given connection id
func NewConn(id string, ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{id: id, ws: ws}
}

func (c *Conn) ID() string { return c.id }

// SendText writes a text frame
func (c *Conn) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

// SendBinary writes a binary frame
func (c *Conn) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Receive blocks until the next data frame arrives. ReadMessage only
// returns text or binary frames; control frames are handled internally.
func (c *Conn) Receive() (service.Frame, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return service.Frame{}, err
	}

	switch messageType {
	case websocket.TextMessage:
		return service.Frame{Kind: service.FrameText, Data: data}, nil
	case websocket.BinaryMessage:
		return service.Frame{Kind: service.FrameBinary, Data: data}, nil
	default:
		return service.Frame{}, fmt.Errorf("unexpected websocket message type %d", messageType)
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

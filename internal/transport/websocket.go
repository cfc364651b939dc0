package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket connects to the backend room endpoint
// ws(s)://host/ws/room/{roomId} and exchanges JSON text frames.
type WebSocket struct {
	baseURL string
	log     zerolog.Logger
}

// NewWebSocket returns a transport dialing baseURL, e.g. ws://host:8080.
func NewWebSocket(baseURL string, log zerolog.Logger) *WebSocket {
	return &WebSocket{
		baseURL: baseURL,
		log:     log.With().Str("component", "ws-transport").Logger(),
	}
}

var _ Transport = (*WebSocket)(nil)

func (w *WebSocket) Connect(ctx context.Context, roomID string) (Conn, error) {
	url := fmt.Sprintf("%s/ws/room/%s", w.baseURL, roomID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &wsConn{
		ws:   ws,
		in:   make(chan Envelope, 64),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
		log:  w.log.With().Str("room", roomID).Logger(),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

type wsConn struct {
	ws        *websocket.Conn
	in        chan Envelope
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

func (c *wsConn) Send(e Envelope) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		// Disconnected; the contract is silent failure.
		return nil
	case c.out <- data:
	default:
		c.log.Debug().Str("type", string(e.Type)).Msg("send buffer full, dropping frame")
	}
	return nil
}

func (c *wsConn) Receive() <-chan Envelope {
	return c.in
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
	return nil
}

func (c *wsConn) readPump() {
	defer close(c.in)
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn().Err(err).Msg("room channel closed")
			}
			return
		}
		e, err := Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		select {
		case c.in <- e:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("write failed")
				c.Close()
				return
			}
		}
	}
}

// Package transport abstracts the real-time room channels the session
// consumes: the backend WebSocket, the same-device redis bus, and an
// in-memory pipe for tests. Delivery is at-most-once and unordered; Send is
// best effort and fails silently once a connection is gone.
package transport

import (
	"context"
	"sync"
)

// Conn is one attached room channel. The first envelope delivered on
// Receive is CONNECTED, after which the session announces itself with JOIN.
type Conn interface {
	// Send transmits an envelope. It never blocks on a slow or dead
	// channel; frames may be dropped.
	Send(e Envelope) error

	// Receive delivers incoming envelopes. The channel is closed when the
	// connection dies or Close is called.
	Receive() <-chan Envelope

	Close() error
}

// Transport opens room channels.
type Transport interface {
	Connect(ctx context.Context, roomID string) (Conn, error)
}

// Pipe returns two connected in-memory ends: envelopes sent on one arrive
// on the other. Each end receives CONNECTED first, like a real channel.
func Pipe() (Conn, Conn) {
	a := &pipeConn{in: make(chan Envelope, 64), done: make(chan struct{})}
	b := &pipeConn{in: make(chan Envelope, 64), done: make(chan struct{})}
	a.peer, b.peer = b, a
	a.in <- Envelope{Type: KindConnected}
	b.in <- Envelope{Type: KindConnected}
	return a, b
}

type pipeConn struct {
	mu     sync.Mutex
	in     chan Envelope
	peer   *pipeConn
	done   chan struct{}
	closed bool
}

func (p *pipeConn) Send(e Envelope) error {
	p.peer.deliver(e)
	return nil
}

func (p *pipeConn) deliver(e Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.in <- e:
	default:
		// drop on slow peer
	}
}

func (p *pipeConn) Receive() <-chan Envelope {
	return p.in
}

func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	close(p.in)
	return nil
}

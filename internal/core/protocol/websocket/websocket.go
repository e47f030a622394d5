// Package websocket sends snapshot frames as binary WebSocket messages.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	closeGrace          = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

var _ protocol.Peer = (*Peer)(nil)

// Peer is the server side of a WebSocket connection.
type Peer struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	logger log.Log
}

// Upgrade turns an HTTP request into a peer. The connection is read in the background so
// control frames are answered and a client disconnect is noticed.
func Upgrade(w http.ResponseWriter, r *http.Request, logger log.Log) (*Peer, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, protocol.WrapError(err, protocol.ErrTransportFailed, "upgrade", "")
	}
	id := uuid.NewString()
	p := &Peer{
		id:     id,
		conn:   conn,
		done:   make(chan struct{}),
		logger: logger.With(log.String("transport", "websocket"), log.String("peer", id), log.String("remote_addr", conn.RemoteAddr().String())),
	}
	go p.drain()
	return p, nil
}

func (p *Peer) drain() {
	defer close(p.done)
	for {
		if _, _, err := p.conn.NextReader(); err != nil {
			p.logger.Debug("websocket peer gone", log.Error(err))
			_ = p.Close()
			return
		}
	}
}

func (p *Peer) ID() string        { return p.id }
func (p *Peer) Transport() string { return "websocket" }

// Done is closed once the remote side has gone away.
func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) Send(ctx context.Context, frame []byte) error {
	if p.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(deadline)
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return protocol.WrapError(err, protocol.ErrTransportFailed, "write frame", p.id)
	}
	return nil
}

func (p *Peer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
	p.mu.Unlock()
	return p.conn.Close()
}

var _ protocol.Receiver = (*Conn)(nil)

// Conn is the client side of a WebSocket snapshot connection.
type Conn struct {
	conn *websocket.Conn
}

// Dial connects to a ws:// or wss:// snapshot endpoint.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, protocol.WrapError(err, protocol.ErrDialFailed, "dial "+url, "")
	}
	conn.SetReadLimit(protocol.DefaultMaxFrameSize)
	return &Conn{conn: conn}, nil
}

// Receive blocks for the next binary message. Cancelling ctx closes the connection.
func (c *Conn) Receive(ctx context.Context) (protocol.Frame, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return protocol.Frame{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return protocol.Frame{}, protocol.WrapError(err, protocol.ErrConnectionClosed, "read frame", "")
			}
			return protocol.Frame{}, protocol.WrapError(err, protocol.ErrTransportFailed, "read frame", "")
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		var frame protocol.Frame
		if err = frame.UnmarshalBinary(data); err != nil {
			return protocol.Frame{}, err
		}
		return frame, nil
	}
}

func (c *Conn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
	return c.conn.Close()
}

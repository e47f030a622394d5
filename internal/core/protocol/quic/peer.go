package quic

import (
	"context"
	"crypto/tls"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol"
)

const (
	codeNormal    quic.ApplicationErrorCode = 0
	streamDone    quic.StreamErrorCode      = 0
	streamAborted quic.StreamErrorCode      = 1
)

var _ protocol.Peer = (*Peer)(nil)

// Peer is the server side of a QUIC connection.
type Peer struct {
	id     string
	conn   *quic.Conn
	closed atomic.Bool
	logger log.Log
}

func newPeer(conn *quic.Conn, logger log.Log) *Peer {
	id := uuid.NewString()
	return &Peer{
		id:     id,
		conn:   conn,
		logger: logger.With(log.String("peer", id), log.String("remote_addr", conn.RemoteAddr().String())),
	}
}

func (p *Peer) ID() string        { return p.id }
func (p *Peer) Transport() string { return "quic" }

// Send writes frame on a new stream and closes it.
func (p *Peer) Send(ctx context.Context, frame []byte) error {
	if p.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	stream, err := p.conn.OpenStreamSync(ctx)
	if err != nil {
		return protocol.WrapError(err, protocol.ErrTransportFailed, "open stream", p.id)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}
	if _, err = stream.Write(frame); err != nil {
		stream.CancelWrite(streamAborted)
		return protocol.WrapError(err, protocol.ErrTransportFailed, "write frame", p.id)
	}
	// the peer never writes back on snapshot streams
	stream.CancelRead(streamDone)
	if err = stream.Close(); err != nil {
		return protocol.WrapError(err, protocol.ErrTransportFailed, "close stream", p.id)
	}
	p.logger.Debug("frame sent", log.Int("bytes", len(frame)))
	return nil
}

func (p *Peer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.conn.CloseWithError(codeNormal, "closed")
}

// Conn is the client side of a QUIC snapshot connection.
type Conn struct {
	conn     *quic.Conn
	maxFrame int64
	closed   atomic.Bool
}

var _ protocol.Receiver = (*Conn)(nil)

// Dial connects to a snapshot server. tlsConfig may be nil to use the system roots.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, ClientTLS(tlsConfig, addr), defaultConfig())
	if err != nil {
		return nil, protocol.WrapError(err, protocol.ErrDialFailed, "dial quic "+addr, "")
	}
	return &Conn{conn: conn, maxFrame: protocol.DefaultMaxFrameSize}, nil
}

// Receive waits for the next frame stream and reads it to the end.
func (c *Conn) Receive(ctx context.Context) (protocol.Frame, error) {
	if c.closed.Load() {
		return protocol.Frame{}, protocol.ErrConnectionClosed
	}
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return protocol.Frame{}, protocol.WrapError(err, protocol.ErrTransportFailed, "accept stream", "")
	}
	defer stream.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	} else {
		_ = stream.SetReadDeadline(time.Time{})
	}

	data, err := io.ReadAll(io.LimitReader(stream, c.maxFrame+1))
	if err != nil {
		return protocol.Frame{}, protocol.WrapError(err, protocol.ErrTransportFailed, "read frame", "")
	}
	if int64(len(data)) > c.maxFrame {
		stream.CancelRead(streamAborted)
		return protocol.Frame{}, protocol.ErrFrameTooLarge
	}

	var frame protocol.Frame
	if err = frame.UnmarshalBinary(data); err != nil {
		return protocol.Frame{}, err
	}
	return frame, nil
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.CloseWithError(codeNormal, "closed")
}

// Package quic sends snapshot frames over QUIC, one stream per frame.
package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol"
)

const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 15 * time.Second
)

func defaultConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	}
}

// Listener accepts snapshot peers.
type Listener struct {
	listener *quic.Listener
	closed   atomic.Bool
	logger   log.Log
}

func Listen(addr string, tlsConfig *tls.Config, logger log.Log) (*Listener, error) {
	listener, err := quic.ListenAddr(addr, tlsConfig, defaultConfig())
	if err != nil {
		return nil, protocol.WrapError(err, protocol.ErrListenFailed, "listen quic "+addr, "")
	}

	l := &Listener{
		listener: listener,
		logger:   logger.With(log.String("transport", "quic"), log.String("listener_addr", listener.Addr().String())),
	}
	l.logger.Info("QUIC listener created")
	return l, nil
}

// Accept waits for the next peer.
func (l *Listener) Accept(ctx context.Context) (*Peer, error) {
	if l.closed.Load() {
		return nil, protocol.ErrConnectionClosed
	}
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, protocol.WrapError(err, protocol.ErrTransportFailed, "accept quic connection", "")
	}

	l.logger.Debug("QUIC connection accepted", log.String("remote_addr", conn.RemoteAddr().String()))
	return newPeer(conn, l.logger), nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.logger.Info("Closing QUIC listener")
	return l.listener.Close()
}

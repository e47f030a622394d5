// Package server replicates a scene to remote peers. Every publish encodes the whole scene
// once and pushes the same frame to all WebSocket and QUIC peers.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenekit/internal/config"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol"
	"github.com/zeusync/scenekit/internal/core/protocol/quic"
	"github.com/zeusync/scenekit/internal/core/protocol/websocket"
	"github.com/zeusync/scenekit/internal/core/scene"
	"github.com/zeusync/scenekit/pkg/generic"
)

const (
	SnapshotPath = "/snapshot"
	HealthPath   = "/healthz"
)

// Server owns a scene and its peers. Once the server runs, touch the scene only through
// Update.
type Server struct {
	config config.ServerConfig
	logger log.Log

	sceneMu sync.Mutex
	scene   *scene.Scene

	peersMu sync.RWMutex
	peers   map[string]protocol.Peer
	// newest published frame, sent to peers on connect
	last    []byte
	lastSeq uint64
	seq     atomic.Uint64

	buffers *generic.BufferPool
	running atomic.Bool
	closed  atomic.Bool

	httpServer   *http.Server
	httpListener net.Listener
	quicListener *quic.Listener
}

func New(cfg config.ServerConfig, sc *scene.Scene, logger log.Log) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Server{
		config:  cfg,
		logger:  logger.With(log.String("component", "server")),
		scene:   sc,
		peers:   make(map[string]protocol.Peer),
		buffers: generic.NewBufferPool(),
	}
}

// Update runs fn with exclusive access to the scene.
func (s *Server) Update(fn func(sc *scene.Scene) error) error {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()
	return fn(s.scene)
}

// Handler serves the WebSocket snapshot endpoint and a health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+SnapshotPath, s.handleSnapshot)
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	peer, err := websocket.Upgrade(w, r, s.logger)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	s.addPeer(r.Context(), peer)
	go func() {
		<-peer.Done()
		s.removePeer(peer)
	}()
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

func (s *Server) addPeer(ctx context.Context, peer protocol.Peer) {
	s.peersMu.Lock()
	last := s.last
	s.peers[peer.ID()] = peer
	s.peersMu.Unlock()

	s.logger.Info("peer connected", log.String("peer", peer.ID()), log.String("transport", peer.Transport()))
	if last == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.WriteTimeout)
	defer cancel()
	if err := peer.Send(sendCtx, last); err != nil {
		s.logger.Warn("initial snapshot failed", log.String("peer", peer.ID()), log.Error(err))
		s.removePeer(peer)
	}
}

func (s *Server) removePeer(peer protocol.Peer) {
	s.peersMu.Lock()
	_, known := s.peers[peer.ID()]
	delete(s.peers, peer.ID())
	s.peersMu.Unlock()

	_ = peer.Close()
	if known {
		s.logger.Info("peer disconnected", log.String("peer", peer.ID()))
	}
}

// Publish encodes the scene and pushes the frame to every peer. Peers that fail are
// dropped. It returns the sequence number of the frame.
func (s *Server) Publish(ctx context.Context) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrServerClosed
	}

	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	// seq is taken with the scene locked so frame order follows scene state
	s.sceneMu.Lock()
	err := s.scene.SerializeAll(buf)
	format := s.scene.Format().Name()
	seq := s.seq.Add(1)
	s.sceneMu.Unlock()
	if err != nil {
		return 0, errors.Wrap(err, "encode scene")
	}

	frame, err := protocol.Frame{Seq: seq, Format: format, Payload: buf.Bytes()}.MarshalBinary()
	if err != nil {
		return 0, err
	}

	s.peersMu.Lock()
	if seq > s.lastSeq {
		s.last, s.lastSeq = frame, seq
	}
	peers := make([]protocol.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peersMu.Unlock()

	var failed atomic.Int64
	g := new(errgroup.Group)
	for _, peer := range peers {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
			defer cancel()
			if err := peer.Send(sendCtx, frame); err != nil {
				failed.Add(1)
				s.logger.Warn("dropping peer", log.String("peer", peer.ID()), log.Error(err))
				s.removePeer(peer)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("snapshot published",
		log.Uint64("seq", seq),
		log.Int("bytes", len(frame)),
		log.Int("peers", len(peers)),
		log.Int64("failed", failed.Load()))
	return seq, nil
}

// Run listens on the configured addresses and publishes on every interval tick until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, tlsConfig *tls.Config) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	if err := s.listen(tlsConfig); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.httpListener != nil {
		g.Go(func() error {
			s.logger.Info("websocket endpoint listening", log.String("addr", s.httpListener.Addr().String()))
			if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
	}
	if s.quicListener != nil {
		g.Go(func() error { return s.acceptQUIC(gctx) })
	}
	if s.config.PublishInterval > 0 {
		g.Go(func() error { return s.publishLoop(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Addrs returns the bound WebSocket and QUIC addresses once Run is listening.
func (s *Server) Addrs() (httpAddr, quicAddr net.Addr) {
	if s.httpListener != nil {
		httpAddr = s.httpListener.Addr()
	}
	if s.quicListener != nil {
		quicAddr = s.quicListener.Addr()
	}
	return httpAddr, quicAddr
}

func (s *Server) listen(tlsConfig *tls.Config) error {
	if s.config.HTTPAddr != "" {
		ln, err := net.Listen("tcp", s.config.HTTPAddr)
		if err != nil {
			return protocol.WrapError(err, protocol.ErrListenFailed, "listen "+s.config.HTTPAddr, "")
		}
		s.httpListener = ln
		s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	}
	if s.config.QUICAddr != "" {
		if tlsConfig == nil {
			return errors.New("quic listener needs a tls config")
		}
		ln, err := quic.Listen(s.config.QUICAddr, tlsConfig, s.logger)
		if err != nil {
			if s.httpListener != nil {
				_ = s.httpListener.Close()
			}
			return err
		}
		s.quicListener = ln
	}
	return nil
}

func (s *Server) acceptQUIC(ctx context.Context) error {
	for {
		peer, err := s.quicListener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || s.closed.Load() {
				return nil
			}
			s.logger.Warn("quic accept failed", log.Error(err))
			continue
		}
		go s.addPeer(ctx, peer)
	}
}

func (s *Server) publishLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.scene.Clock().Advance()
			if _, err := s.Publish(ctx); err != nil && !errors.Is(err, ErrServerClosed) {
				s.logger.Error("publish failed", log.Error(err))
			}
		}
	}
}

func (s *Server) shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("shutting down", log.Int("peers", s.Peers()))

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		err = s.httpServer.Shutdown(ctx)
		cancel()
	}
	if s.quicListener != nil {
		if cerr := s.quicListener.Close(); err == nil {
			err = cerr
		}
	}

	s.peersMu.Lock()
	peers := s.peers
	s.peers = make(map[string]protocol.Peer)
	s.peersMu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}
	return err
}

// Package client receives replicated scene snapshots and loads them into a local scene.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"sync"

	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol"
	"github.com/zeusync/scenekit/internal/core/protocol/quic"
	"github.com/zeusync/scenekit/internal/core/protocol/websocket"
	"github.com/zeusync/scenekit/internal/core/scene"
)

type Config struct {
	// Replace drops the entities of the previous frame after each received frame, so the
	// local scene mirrors the server. Without it every frame adds an independent copy.
	Replace bool
	Logger  log.Log
}

// Client is a connection to a snapshot server plus the scene frames are loaded into.
type Client struct {
	recv   protocol.Receiver
	scene  *scene.Scene
	config Config
	logger log.Log

	mu       sync.Mutex
	lastSeq  uint64
	previous []ecs.Entity
	closed   bool
}

// DialWebSocket connects to the WebSocket endpoint at url, e.g. ws://host:8080/snapshot.
func DialWebSocket(ctx context.Context, url string, sc *scene.Scene, cfg Config) (*Client, error) {
	conn, err := websocket.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return newClient(conn, sc, cfg, "websocket"), nil
}

// DialQUIC connects to the QUIC listener at addr.
func DialQUIC(ctx context.Context, addr string, tlsConfig *tls.Config, sc *scene.Scene, cfg Config) (*Client, error) {
	conn, err := quic.Dial(ctx, addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	return newClient(conn, sc, cfg, "quic"), nil
}

func newClient(recv protocol.Receiver, sc *scene.Scene, cfg Config, transport string) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Client{
		recv:   recv,
		scene:  sc,
		config: cfg,
		logger: cfg.Logger.With(log.String("component", "client"), log.String("transport", transport)),
	}
}

func (c *Client) Scene() *scene.Scene { return c.scene }

// Receive waits for the next frame and loads it into the local scene, returning the
// entities it created. Frames older than one already loaded are skipped with ErrStaleFrame.
// A frame that fails to load leaves the scene as it was.
func (c *Client) Receive(ctx context.Context) ([]ecs.Entity, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.mu.Unlock()

	frame, err := c.recv.Receive(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.Seq <= c.lastSeq {
		return nil, errors.Wrapf(ErrStaleFrame, "seq %d after %d", frame.Seq, c.lastSeq)
	}
	if frame.Format != c.scene.Format().Name() {
		return nil, errors.Wrapf(ErrUnknownFormat, "got %q, scene uses %q", frame.Format, c.scene.Format().Name())
	}

	created, err := c.scene.Deserialize(bytes.NewReader(frame.Payload))
	if err != nil {
		c.destroy(created)
		c.logger.Warn("frame rejected", log.Uint64("seq", frame.Seq), log.Error(err))
		return nil, errors.Wrapf(err, "load frame %d", frame.Seq)
	}
	c.lastSeq = frame.Seq

	if c.config.Replace {
		c.destroy(c.previous)
	}
	c.previous = created

	c.logger.Debug("frame loaded", log.Uint64("seq", frame.Seq), log.Entities("created", created))
	return created, nil
}

// destroy removes exactly ents, leaving other entities flagged for deletion alone.
func (c *Client) destroy(ents []ecs.Entity) {
	reg := c.scene.Registry()
	for _, e := range ents {
		reg.Destroy(e)
	}
}

// LastSeq returns the sequence number of the last loaded frame.
func (c *Client) LastSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.recv.Close()
}

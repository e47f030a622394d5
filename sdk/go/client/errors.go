package client

import "github.com/pkg/errors"

var (
	ErrClientClosed  = errors.New("client is closed")
	ErrStaleFrame    = errors.New("stale snapshot frame")
	ErrUnknownFormat = errors.New("frame format does not match the local scene")
)

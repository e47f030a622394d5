// Package protocol carries encoded scene snapshots between a server and its peers.
package protocol

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	frameMagic   = "SKF1"
	headerSize   = len(frameMagic) + 8 + 1
	maxFormatLen = 32

	// DefaultMaxFrameSize bounds a single snapshot frame.
	DefaultMaxFrameSize = 16 << 20
)

// Frame is one encoded snapshot. Seq increases by one per publish on a server.
type Frame struct {
	Seq     uint64
	Format  string
	Payload []byte
}

// MarshalBinary lays the frame out as magic, big-endian seq, format length, format, payload.
func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Format) == 0 || len(f.Format) > maxFormatLen {
		return nil, errors.Wrapf(ErrInvalidFrame, "format %q", f.Format)
	}
	out := make([]byte, 0, headerSize+len(f.Format)+len(f.Payload))
	out = append(out, frameMagic...)
	out = binary.BigEndian.AppendUint64(out, f.Seq)
	out = append(out, byte(len(f.Format)))
	out = append(out, f.Format...)
	return append(out, f.Payload...), nil
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize || string(data[:len(frameMagic)]) != frameMagic {
		return errors.Wrap(ErrInvalidFrame, "bad header")
	}
	rest := data[len(frameMagic):]
	seq := binary.BigEndian.Uint64(rest)
	n := int(rest[8])
	rest = rest[9:]
	if n == 0 || n > maxFormatLen || len(rest) < n {
		return errors.Wrap(ErrInvalidFrame, "bad format length")
	}
	f.Seq = seq
	f.Format = string(rest[:n])
	f.Payload = append([]byte(nil), rest[n:]...)
	return nil
}

// Peer is a connected receiver of snapshot frames.
type Peer interface {
	ID() string
	Transport() string
	// Send delivers one already-marshaled frame.
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Receiver yields frames on the client side.
type Receiver interface {
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

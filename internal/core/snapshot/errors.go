package snapshot

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/pkg/encoding"
)

var (
	// ErrStreamIO matches failures of the underlying byte stream.
	ErrStreamIO = errors.New("snapshot stream i/o failed")
	// ErrDecode matches malformed sections, missing required sections and values that do
	// not fit their declared component type.
	ErrDecode = errors.New("snapshot decode failed")
	// ErrUnknownEntity matches references to entities absent from the stream's entities
	// section. Every such error also matches ErrDecode.
	ErrUnknownEntity = errors.New("unknown entity reference")
	// ErrMisuse matches precondition violations by the caller.
	ErrMisuse = errors.New("snapshot archive misuse")

	errMissingSection  = errors.New("section missing")
	errNullEntity      = errors.New("null entity in entities section")
	errDuplicate       = errors.New("entity listed twice")
	errIncompleteEntry = errors.New("entry without entity or value")
)

// StreamError reports a failure of the stream a snapshot is written to or read from.
// The original error is kept unchanged behind Unwrap.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return "snapshot: " + e.Op + ": " + e.Err.Error()
}

func (e *StreamError) Unwrap() error        { return e.Err }
func (e *StreamError) Is(target error) bool { return target == ErrStreamIO }

// DecodeError reports a section that could not be decoded. Index is the entry position
// inside the section, or -1 when the section as a whole is at fault.
type DecodeError struct {
	Section string
	Index   int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("snapshot: decode section %q: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("snapshot: decode section %q entry %d: %v", e.Section, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnknownEntityError reports an entity id that cannot be resolved.
type UnknownEntityError struct {
	Section string
	Index   int
	Entity  ecs.Entity
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("snapshot: section %q entry %d: unknown entity %s", e.Section, e.Index, e.Entity)
}

func (e *UnknownEntityError) Is(target error) bool {
	return target == ErrUnknownEntity || target == ErrDecode
}

func misuse(format string, args ...any) error {
	return errors.Wrapf(ErrMisuse, format, args...)
}

func streamErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{Op: op, Err: err}
}

// Open decodes the document behind r with format f. Malformed input is reported as a
// DecodeError, everything else as a StreamError.
func Open(f encoding.Format, r io.Reader) (encoding.SectionReader, error) {
	src, err := f.NewReader(r)
	if err == nil {
		return src, nil
	}
	if errors.Is(err, encoding.ErrMalformed) {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	return nil, streamErr("read "+f.Name(), err)
}

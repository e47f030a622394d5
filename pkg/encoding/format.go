// Package encoding provides the self-describing structured streams snapshots are written to
// and read from. A stream is an ordered set of named sections, each holding a list of values.
package encoding

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownFormat   = errors.New("unknown encoding format")
	ErrNoOpenSection   = errors.New("no open section")
	ErrSectionOpen     = errors.New("section already open")
	ErrDuplicateName   = errors.New("duplicate section name")
	ErrWriterClosed    = errors.New("writer is closed")
	ErrIndexOutOfRange = errors.New("section index out of range")
	ErrMalformed       = errors.New("malformed document")
)

// Format creates writers and readers for one concrete encoding.
type Format interface {
	Name() string
	Extension() string
	NewWriter(w io.Writer) SectionWriter
	NewReader(r io.Reader) (SectionReader, error)
}

// SectionWriter emits named sections in call order.
type SectionWriter interface {
	BeginSection(name string) error
	Value(v any) error
	EndSection() error
	// Close finishes the document. It does not close the underlying io.Writer.
	Close() error
}

// SectionReader gives random access to the sections of a decoded document.
type SectionReader interface {
	Section(name string) (Section, bool)
	Names() []string
}

// Section is one named list of encoded values.
type Section interface {
	Len() int
	Decode(i int, v any) error
}

// Lookup returns the built-in format registered under name ("json" or "yaml").
func Lookup(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", name)
	}
}

// ForPath picks the format matching the extension of path.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "extension %q", ext)
	}
}

// sectionState tracks the begin/value/end protocol shared by the writers.
type sectionState struct {
	names  map[string]struct{}
	open   bool
	closed bool
}

func (s *sectionState) begin(name string) error {
	switch {
	case s.closed:
		return ErrWriterClosed
	case s.open:
		return ErrSectionOpen
	}
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	if _, ok := s.names[name]; ok {
		return ErrDuplicateName
	}
	s.names[name] = struct{}{}
	s.open = true
	return nil
}

func (s *sectionState) value() error {
	if s.closed {
		return ErrWriterClosed
	}
	if !s.open {
		return ErrNoOpenSection
	}
	return nil
}

func (s *sectionState) end() error {
	if err := s.value(); err != nil {
		return err
	}
	s.open = false
	return nil
}

func (s *sectionState) close() error {
	if s.closed {
		return ErrWriterClosed
	}
	if s.open {
		return ErrSectionOpen
	}
	s.closed = true
	return nil
}

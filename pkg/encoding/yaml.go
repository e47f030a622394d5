package encoding

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YAML encodes a stream as a YAML mapping of section names to sequences. Unlike JSON it
// keeps section order on read.
var YAML Format = yamlFormat{}

type yamlFormat struct{}

func (yamlFormat) Name() string      { return "yaml" }
func (yamlFormat) Extension() string { return ".yaml" }

func (yamlFormat) NewWriter(w io.Writer) SectionWriter {
	return &yamlWriter{
		w:   w,
		doc: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"},
	}
}

func (yamlFormat) NewReader(r io.Reader) (SectionReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, errors.Wrap(ErrMalformed, "empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrMalformed, "top level is not a mapping")
	}

	reader := &yamlReader{sections: make(map[string]*yaml.Node, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, errors.Wrapf(ErrMalformed, "non-scalar section name at line %d", key.Line)
		}
		if value.Kind != yaml.SequenceNode {
			return nil, errors.Wrapf(ErrMalformed, "section %q is not a sequence", key.Value)
		}
		if _, dup := reader.sections[key.Value]; dup {
			return nil, errors.Wrapf(ErrMalformed, "section %q repeated", key.Value)
		}
		reader.sections[key.Value] = value
		reader.order = append(reader.order, key.Value)
	}
	return reader, nil
}

type yamlWriter struct {
	w     io.Writer
	doc   *yaml.Node
	cur   *yaml.Node
	state sectionState
}

func (y *yamlWriter) BeginSection(name string) error {
	if err := y.state.begin(name); err != nil {
		return err
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
	y.cur = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	y.doc.Content = append(y.doc.Content, key, y.cur)
	return nil
}

func (y *yamlWriter) Value(v any) error {
	if err := y.state.value(); err != nil {
		return err
	}
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return err
	}
	y.cur.Content = append(y.cur.Content, &n)
	return nil
}

func (y *yamlWriter) EndSection() error {
	if err := y.state.end(); err != nil {
		return err
	}
	y.cur = nil
	return nil
}

func (y *yamlWriter) Close() error {
	if err := y.state.close(); err != nil {
		return err
	}
	// encode to memory first: the yaml emitter flattens writer errors into strings
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(y.doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := buf.WriteTo(y.w)
	return err
}

type yamlReader struct {
	sections map[string]*yaml.Node
	order    []string
}

func (r *yamlReader) Section(name string) (Section, bool) {
	n, ok := r.sections[name]
	if !ok {
		return nil, false
	}
	return yamlSection{n}, true
}

func (r *yamlReader) Names() []string {
	return append([]string(nil), r.order...)
}

type yamlSection struct{ seq *yaml.Node }

func (s yamlSection) Len() int { return len(s.seq.Content) }

func (s yamlSection) Decode(i int, v any) error {
	if i < 0 || i >= len(s.seq.Content) {
		return ErrIndexOutOfRange
	}
	n := s.seq.Content[i]
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return errors.Wrapf(ErrMalformed, "null value at line %d", n.Line)
	}
	if err := n.Decode(v); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

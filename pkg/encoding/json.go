package encoding

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// JSON encodes a stream as one JSON object whose keys are section names and whose
// values are arrays.
var JSON Format = jsonFormat{}

type jsonFormat struct{}

func (jsonFormat) Name() string      { return "json" }
func (jsonFormat) Extension() string { return ".json" }

func (jsonFormat) NewWriter(w io.Writer) SectionWriter {
	return &jsonWriter{w: bufio.NewWriter(w)}
}

func (jsonFormat) NewReader(r io.Reader) (SectionReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc map[string][]json.RawMessage
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return jsonReader(doc), nil
}

type jsonWriter struct {
	w        *bufio.Writer
	state    sectionState
	sections int
	values   int
}

func (j *jsonWriter) BeginSection(name string) error {
	if err := j.state.begin(name); err != nil {
		return err
	}
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	open := ","
	if j.sections == 0 {
		open = "{"
	}
	j.sections++
	j.values = 0
	return j.write([]byte(open), key, []byte(":["))
}

func (j *jsonWriter) Value(v any) error {
	if err := j.state.value(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if j.values > 0 {
		if err = j.write([]byte(",")); err != nil {
			return err
		}
	}
	j.values++
	return j.write(data)
}

func (j *jsonWriter) EndSection() error {
	if err := j.state.end(); err != nil {
		return err
	}
	return j.write([]byte("]"))
}

func (j *jsonWriter) Close() error {
	if err := j.state.close(); err != nil {
		return err
	}
	if j.sections == 0 {
		if err := j.write([]byte("{")); err != nil {
			return err
		}
	}
	if err := j.write([]byte("}\n")); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *jsonWriter) write(parts ...[]byte) error {
	for _, p := range parts {
		if _, err := j.w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

type jsonReader map[string][]json.RawMessage

func (r jsonReader) Section(name string) (Section, bool) {
	values, ok := r[name]
	if !ok {
		return nil, false
	}
	return jsonSection(values), true
}

// Names returns the section names sorted; JSON objects carry no key order.
func (r jsonReader) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var jsonNull = []byte("null")

type jsonSection []json.RawMessage

func (s jsonSection) Len() int { return len(s) }

func (s jsonSection) Decode(i int, v any) error {
	if i < 0 || i >= len(s) {
		return ErrIndexOutOfRange
	}
	if bytes.Equal(bytes.TrimSpace(s[i]), jsonNull) {
		return errors.Wrapf(ErrMalformed, "null value at index %d", i)
	}
	if err := json.Unmarshal(s[i], v); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

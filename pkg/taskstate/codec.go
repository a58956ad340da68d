package taskstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// jobMap is the job-state mapping. Keys keep their first-insertion order.
type jobMap struct {
	names  []string
	values map[string]json.RawMessage
}

func newJobMap() jobMap {
	return jobMap{values: make(map[string]json.RawMessage)}
}

func (m *jobMap) get(name string) (json.RawMessage, bool) {
	v, ok := m.values[name]

	return v, ok
}

func (m *jobMap) set(name string, v json.RawMessage) {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}

	m.values[name] = v
}

func (m *jobMap) remove(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}

	delete(m.values, name)

	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)

			break
		}
	}
}

func (m *jobMap) len() int {
	return len(m.names)
}

// encode renders the mapping as an indented JSON object with a trailing
// newline. An empty mapping encodes to "{}\n".
func (m *jobMap) encode(indent string) ([]byte, error) {
	var compact bytes.Buffer

	compact.WriteByte('{')

	for i, name := range m.names {
		if i > 0 {
			compact.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		compact.Write(key)
		compact.WriteByte(':')
		compact.Write(m.values[name])
	}

	compact.WriteByte('}')

	var out bytes.Buffer

	err := json.Indent(&out, compact.Bytes(), "", indent)
	if err != nil {
		return nil, err
	}

	out.WriteByte('\n')

	return out.Bytes(), nil
}

var errNotObject = errors.New("root is not a JSON object")

// decodeJobMap parses a state document. The root must be a JSON object and
// nothing but whitespace may follow it. Duplicate keys keep their first
// position and their last value.
func decodeJobMap(data []byte) (jobMap, error) {
	m := newJobMap()
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return jobMap{}, err
	}

	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return jobMap{}, errNotObject
	}

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return jobMap{}, err
		}

		name, ok := tok.(string)
		if !ok {
			return jobMap{}, fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage

		err = dec.Decode(&raw)
		if err != nil {
			return jobMap{}, fmt.Errorf("job %q: %w", name, err)
		}

		var compact bytes.Buffer

		err = json.Compact(&compact, raw)
		if err != nil {
			return jobMap{}, fmt.Errorf("job %q: %w", name, err)
		}

		m.set(name, compact.Bytes())
	}

	// closing '}'
	_, err = dec.Token()
	if err != nil {
		return jobMap{}, err
	}

	_, err = dec.Token()
	if !errors.Is(err, io.EOF) {
		return jobMap{}, errors.New("trailing data after root object")
	}

	return m, nil
}

// encodeJobState marshals v and reports whether the result counts as absent:
// null, false, zero or the empty string.
func encodeJobState(v any) (json.RawMessage, bool, error) {
	if v == nil {
		return nil, true, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}

	return raw, isFalsy(raw), nil
}

func isFalsy(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))

	switch s {
	case "null", "false", `""`:
		return true
	}

	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}

	f, err := strconv.ParseFloat(s, 64)

	return err == nil && f == 0
}

package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Row is one table row keyed by column name. Values are kept as raw JSON so
// numbers, timestamps and nested documents survive a round trip untouched,
// and column order is preserved so exported files read like the table.
type Row struct {
	cols   []string
	values map[string]json.RawMessage

	// invalid is set when the row came from a snapshot element that was
	// not a JSON object.
	invalid error
}

var jsonNull = json.RawMessage("null")

// Set assigns a column value. json.RawMessage values are stored verbatim;
// anything else is marshalled first. Setting an existing column keeps its
// position.
func (r *Row) Set(col string, v any) error {
	raw, ok := v.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		raw = b
	}
	r.setRaw(col, raw)
	return nil
}

func (r *Row) setRaw(col string, raw json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	if _, exists := r.values[col]; !exists {
		r.cols = append(r.cols, col)
	}
	r.values[col] = raw
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Raw returns the JSON value of col.
func (r Row) Raw(col string) (json.RawMessage, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.cols) }

// Err reports why a decoded snapshot row could not be read as an object.
func (r Row) Err() error { return r.invalid }

// MarshalJSON writes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.invalid != nil {
		return nil, r.invalid
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := r.values[col]
		if len(v) == 0 {
			v = jsonNull
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, recording keys in document order. A
// repeated key keeps its first position and its last value.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("row must be a JSON object")
	}

	r.cols = nil
	r.values = make(map[string]json.RawMessage)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in row", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("column %s: %w", key, err)
		}
		r.setRaw(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Package json reads JSON record files into a header row and value records.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"mapsync/internal/value"
)

// ArrayJoinSeparator joins arrays of scalars into one text cell.
const ArrayJoinSeparator = ","

// Read decodes records from r.
//
// Accepted shapes:
//   - a root array of objects
//   - a root object whose first array of objects holds the records (envelope)
//   - a single root object, read as one record
//   - any of the above followed by newline-delimited objects
//
// Headers are the object keys in first-seen order. Numbers and booleans keep
// their native kind; nested objects are stored as their JSON text.
// Empty input returns nil headers and no error.
func Read(r io.Reader) ([]string, [][]value.Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	c := &collector{index: map[string]int{}}

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("json: read first token: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := readArrayOfObjects(dec, c); err != nil {
			return nil, nil, err
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, nil, err
		}
	case json.Delim('{'):
		if err := readEnvelopeOrSingle(dec, c); err != nil {
			return nil, nil, err
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
	}

	if err := readTrailingObjects(dec, c); err != nil {
		return nil, nil, err
	}
	return c.headers, c.records(), nil
}

// collector aligns objects with first-seen key order.
type collector struct {
	headers []string
	index   map[string]int
	rows    []map[int]value.Value
}

func (c *collector) add(keys []string, vals []value.Value) {
	row := make(map[int]value.Value, len(keys))
	for i, k := range keys {
		ix, ok := c.index[k]
		if !ok {
			ix = len(c.headers)
			c.index[k] = ix
			c.headers = append(c.headers, k)
		}
		row[ix] = vals[i]
	}
	c.rows = append(c.rows, row)
}

func (c *collector) records() [][]value.Value {
	out := make([][]value.Value, len(c.rows))
	for i, row := range c.rows {
		rec := make([]value.Value, len(c.headers))
		for ix, v := range row {
			rec[ix] = v
		}
		out[i] = rec
	}
	return out
}

func readTrailingObjects(dec *json.Decoder, c *collector) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("json: decode trailing object: %w", err)
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("json: trailing value is not an object (got %v)", tok)
		}
		keys, vals, err := readObjectBody(dec)
		if err != nil {
			return err
		}
		c.add(keys, vals)
	}
}

// readArrayOfObjects reads elements after '[' has been consumed. Null
// elements are skipped; any other non-object element is an error.
func readArrayOfObjects(dec *json.Decoder, c *collector) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: decode array element: %w", err)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("json: array element not an object (got %v)", tok)
		}
		keys, vals, err := readObjectBody(dec)
		if err != nil {
			return err
		}
		c.add(keys, vals)
	}
	return nil
}

// readEnvelopeOrSingle walks a root object after '{'. The first field holding
// an array whose first non-null element is an object is read as the record
// list and the remaining fields are skipped. Without such a field the object
// itself is one record, with scalar arrays joined into cells.
func readEnvelopeOrSingle(dec *json.Decoder, c *collector) error {
	var keys []string
	var vals []value.Value

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read value of %q: %w", key, err)
		}
		if tok != json.Delim('[') {
			v, err := cellFromToken(dec, tok)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			vals = append(vals, v)
			continue
		}

		elems, err := readRawElements(dec)
		if err != nil {
			return fmt.Errorf("json: read value of %q: %w", key, err)
		}
		if !holdsObjects(elems) {
			v, err := cellFromElements(elems)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			vals = append(vals, v)
			continue
		}

		for _, raw := range elems {
			if err := addRawObject(raw, c); err != nil {
				return err
			}
		}
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("json: skip envelope key: %w", err)
			}
			if _, err := materialize(dec, nil, true); err != nil {
				return err
			}
		}
		return nil
	}

	c.add(keys, vals)
	return nil
}

// readRawElements reads the elements of an array after '[' through ']'.
func readRawElements(dec *json.Decoder) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		elems = append(elems, raw)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return elems, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// holdsObjects reports whether the first non-null element is an object.
func holdsObjects(elems []json.RawMessage) bool {
	for _, raw := range elems {
		if isNull(raw) {
			continue
		}
		return strings.HasPrefix(strings.TrimSpace(string(raw)), "{")
	}
	return false
}

func addRawObject(raw json.RawMessage, c *collector) error {
	if isNull(raw) {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: decode array element: %w", err)
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("json: array element not an object (got %v)", tok)
	}
	keys, vals, err := readObjectBody(dec)
	if err != nil {
		return err
	}
	c.add(keys, vals)
	return nil
}

// cellFromElements builds one cell from array elements the way cellFromToken
// does for an inline array.
func cellFromElements(elems []json.RawMessage) (value.Value, error) {
	arr := make([]any, 0, len(elems))
	for _, raw := range elems {
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		v, err := materialize(dec, nil, false)
		if err != nil {
			return value.Null(), err
		}
		arr = append(arr, v)
	}
	if s, ok := joinScalars(arr); ok {
		return value.Text(s), nil
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return value.Null(), fmt.Errorf("json: re-encode nested value: %w", err)
	}
	return value.Text(string(b)), nil
}

// readObjectBody reads key/value pairs after '{' through the closing '}'.
func readObjectBody(dec *json.Decoder) ([]string, []value.Value, error) {
	var keys []string
	var vals []value.Value
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("json: read value of %q: %w", key, err)
		}
		v, err := cellFromToken(dec, tok)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, err
	}
	return keys, vals, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("json: read object key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("json: object key not a string (got %T)", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: read %q: %w", want, err)
	}
	if tok != want {
		return fmt.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}

// cellFromToken converts the value starting at tok into a cell. Scalar arrays
// are joined; objects and mixed arrays become their JSON text.
func cellFromToken(dec *json.Decoder, tok json.Token) (value.Value, error) {
	if _, ok := tok.(json.Delim); !ok {
		return value.FromAny(tok), nil
	}
	v, err := materialize(dec, tok, false)
	if err != nil {
		return value.Null(), err
	}
	if arr, ok := v.([]any); ok {
		if s, ok := joinScalars(arr); ok {
			return value.Text(s), nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return value.Null(), fmt.Errorf("json: re-encode nested value: %w", err)
	}
	return value.Text(string(b)), nil
}

var errUnexpectedDelim = errors.New("json: unexpected delimiter")

// materialize builds a Go value for the JSON value beginning with tok. When
// tok is nil the first token is read from dec.
func materialize(dec *json.Decoder, tok json.Token, discard bool) (any, error) {
	if tok == nil {
		t, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: read value: %w", err)
		}
		tok = t
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		m := map[string]any{}
		for dec.More() {
			k, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			v, err := materialize(dec, nil, discard)
			if err != nil {
				return nil, err
			}
			if !discard {
				m[k] = v
			}
		}
		return m, expectDelim(dec, '}')
	case '[':
		var arr []any
		for dec.More() {
			v, err := materialize(dec, nil, discard)
			if err != nil {
				return nil, err
			}
			if !discard {
				arr = append(arr, v)
			}
		}
		return arr, expectDelim(dec, ']')
	default:
		return nil, fmt.Errorf("%w %q", errUnexpectedDelim, d)
	}
}

func joinScalars(arr []any) (string, bool) {
	parts := make([]string, 0, len(arr))
	for _, it := range arr {
		switch t := it.(type) {
		case nil:
			continue
		case string:
			parts = append(parts, t)
		case json.Number:
			parts = append(parts, t.String())
		case bool:
			parts = append(parts, fmt.Sprint(t))
		default:
			return "", false
		}
	}
	return strings.Join(parts, ArrayJoinSeparator), true
}

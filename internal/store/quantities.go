package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Quantities is the productQuantities map: product-id string to quantity.
// JSON key order is preserved because insertion order is the recency signal
// the optimizer truncates by.
type Quantities struct {
	keys   []string
	values map[string]int64
}

// NewQuantities returns an empty quantities map.
func NewQuantities() *Quantities {
	return &Quantities{values: make(map[string]int64)}
}

// Len returns the number of entries.
func (q *Quantities) Len() int {
	return len(q.keys)
}

// Get returns the quantity for a product id.
func (q *Quantities) Get(key string) (int64, bool) {
	v, ok := q.values[key]
	return v, ok
}

// Set stores a quantity, appending the key if it was not present.
func (q *Quantities) Set(key string, value int64) {
	if q.values == nil {
		q.values = make(map[string]int64)
	}
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
}

// Keys returns the product ids in insertion order.
func (q *Quantities) Keys() []string {
	out := make([]string, len(q.keys))
	copy(out, q.keys)
	return out
}

// Tail returns a new map holding only the n most recently inserted entries.
func (q *Quantities) Tail(n int) *Quantities {
	out := NewQuantities()
	start := len(q.keys) - n
	if start < 0 {
		start = 0
	}
	for _, key := range q.keys[start:] {
		out.Set(key, q.values[key])
	}
	return out
}

func (q *Quantities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("product quantities: expected object, got %v", tok)
	}

	q.keys = nil
	q.values = make(map[string]int64)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("product quantities: unexpected key token %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("product quantities: value for %q is not a number", key)
		}
		n, err := num.Int64()
		if err != nil {
			return fmt.Errorf("product quantities: value for %q is not an integer: %w", key, err)
		}
		q.Set(key, n)
	}
	_, err = dec.Token() // consume closing brace
	return err
}

func (q *Quantities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range q.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", q.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

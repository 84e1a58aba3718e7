// Package record provides an insertion-ordered string map with explicit
// conflict rules, used for raw label/value records and overflow buckets.
package record

import (
	"bytes"
	"encoding/json"
)

// Record is an ordered label -> value mapping.
// The zero value is ready to use.
type Record struct {
	keys   []string
	values map[string]string
}

// New returns an empty record
func New() *Record {
	return &Record{values: make(map[string]string)}
}

func (r *Record) init() {
	if r.values == nil {
		r.values = make(map[string]string)
	}
}

// Add stores value under key only if key is not present yet (first wins).
// It reports whether the value was stored.
func (r *Record) Add(key, value string) bool {
	r.init()
	if _, ok := r.values[key]; ok {
		return false
	}
	r.keys = append(r.keys, key)
	r.values[key] = value
	return true
}

// Set stores value under key, overwriting any previous value (last wins).
// An overwritten key keeps its original position.
func (r *Record) Set(key, value string) {
	r.init()
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Merge applies Set for every pair of other, in other's order
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		r.Set(k, other.values[k])
	}
}

// Get returns the value stored under key
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the keys in insertion order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Record) Len() int {
	return len(r.keys)
}

// Each calls fn for every pair in insertion order
func (r *Record) Each(fn func(key, value string)) {
	for _, k := range r.keys {
		fn(k, r.values[k])
	}
}

// MarshalJSON encodes the record as a JSON object preserving key order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePair(&buf, k, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of strings preserving key order.
// Duplicate keys keep the last value at the first position.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Set(keyTok.(string), value)
	}
	_, err := dec.Token()
	return err
}

func writePair(buf *bytes.Buffer, key, value string) error {
	if err := EncodeString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return EncodeString(buf, value)
}

// EncodeString writes s as a JSON string without HTML escaping
func EncodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

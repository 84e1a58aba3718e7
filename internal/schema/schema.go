// Package schema normalizes raw site records into the canonical job schema.
package schema

import (
	"bytes"

	"sjsage522/harvester/internal/record"
)

// ExtraField holds every raw field no mapping entry consumed
const ExtraField = "_extra"

// Fields is the ordered canonical field list
var Fields = []string{
	"original_id",
	"access",
	"access_label",
	"access_minutes",
	"address",
	"area",
	"bonus",
	"city",
	"contract",
	"dept",
	"detail",
	"facility_name",
	"facility_type",
	"holiday",
	"license",
	"line",
	"name",
	"occupation",
	"position",
	"prefecture",
	"price",
	"price_rule",
	"required_skill",
	"staff_comment",
	"staff_comment_title",
	"station",
	"test_period",
	"title_original",
	"welfare_program",
	"working_hours",
	"working_style",
}

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(Fields))
	for i, f := range Fields {
		m[f] = i
	}
	return m
}()

// IsField reports whether name is a canonical field
func IsField(name string) bool {
	_, ok := fieldIndex[name]
	return ok
}

// Canonical is a normalized record: every canonical field, the overflow
// bucket and run stamps such as capture time and source site.
type Canonical struct {
	values []string
	extra  *record.Record
	stamps *record.Record
}

// Empty returns a canonical record with every field set to ""
func Empty() *Canonical {
	return &Canonical{
		values: make([]string, len(Fields)),
		extra:  record.New(),
		stamps: record.New(),
	}
}

// Normalize maps raw into the canonical schema. mapping goes from canonical
// field to raw label. Entries naming an unknown field or a missing label
// are skipped. Raw labels not consumed by a known-field entry land in _extra.
func Normalize(raw *record.Record, mapping map[string]string) *Canonical {
	c := Empty()
	consumed := make(map[string]struct{}, len(mapping))
	for field, source := range mapping {
		idx, ok := fieldIndex[field]
		if !ok {
			// the source label stays unconsumed so its value survives in _extra
			continue
		}
		consumed[source] = struct{}{}
		if v, ok := raw.Get(source); ok {
			c.values[idx] = v
		}
	}

	raw.Each(func(key, value string) {
		if _, ok := consumed[key]; !ok {
			c.extra.Set(key, value)
		}
	})
	return c
}

// Get returns a canonical field value; unknown fields read as ""
func (c *Canonical) Get(field string) string {
	if idx, ok := fieldIndex[field]; ok {
		return c.values[idx]
	}
	return ""
}

// Extra returns the overflow bucket
func (c *Canonical) Extra() *record.Record {
	return c.extra
}

// Stamp attaches run metadata written after the canonical fields, e.g. _source
func (c *Canonical) Stamp(key, value string) {
	c.stamps.Set(key, value)
}

// MarshalJSON writes the canonical fields in order, then _extra when non-empty, then stamps
func (c *Canonical) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeField(&buf, f, c.values[i]); err != nil {
			return nil, err
		}
	}
	if c.extra.Len() > 0 {
		extra, err := c.extra.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := record.EncodeString(&buf, ExtraField); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		buf.Write(extra)
	}
	var err error
	c.stamps.Each(func(key, value string) {
		if err != nil {
			return
		}
		buf.WriteByte(',')
		err = writeField(&buf, key, value)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string) error {
	if err := record.EncodeString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return record.EncodeString(buf, value)
}

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/harvester/internal/record"
)

func rawRecord(pairs ...string) *record.Record {
	r := record.New()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func decode(t *testing.T, c *Canonical) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(c)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestFieldCount(t *testing.T) {
	assert.Len(t, Fields, 31)
	for _, f := range Fields {
		assert.True(t, IsField(f))
	}
	assert.False(t, IsField("_extra"))
}

func TestNormalizeKeySet(t *testing.T) {
	raw := rawRecord("給与", "30万円", "勤務地", "東京", "備考", "なし")
	mapping := map[string]string{"price": "給与", "address": "勤務地"}

	out := decode(t, Normalize(raw, mapping))
	assert.Len(t, out, 32)
	for _, f := range Fields {
		assert.Contains(t, out, f)
	}
	assert.Equal(t, map[string]interface{}{"備考": "なし"}, out[ExtraField])
}

func TestNormalizeWithoutOverflowOmitsExtra(t *testing.T) {
	raw := rawRecord("給与", "30万円")
	out := decode(t, Normalize(raw, map[string]string{"price": "給与"}))

	assert.Len(t, out, 31)
	assert.NotContains(t, out, ExtraField)
}

func TestNormalizeRoundTrip(t *testing.T) {
	raw := rawRecord("id", "77", "職種", "看護師", "駅", "新宿")
	mapping := map[string]string{"original_id": "id", "occupation": "職種", "station": "駅"}

	c := Normalize(raw, mapping)
	for field, source := range mapping {
		want, _ := raw.Get(source)
		assert.Equal(t, want, c.Get(field))
	}
	assert.Equal(t, "", c.Get("price"))
	assert.Equal(t, 0, c.Extra().Len())
}

func TestNormalizeSkipsUnknownFieldsAndMissingSources(t *testing.T) {
	raw := rawRecord("給与", "30万円", "色", "青")
	mapping := map[string]string{
		"price":     "給与",
		"favourite": "色",
		"holiday":   "休日",
	}

	c := Normalize(raw, mapping)
	assert.Equal(t, "30万円", c.Get("price"))
	assert.Equal(t, "", c.Get("holiday"))
	assert.Equal(t, "", c.Get("favourite"))

	v, ok := c.Extra().Get("色")
	assert.True(t, ok, "source of an unknown target stays in _extra")
	assert.Equal(t, "青", v)
	assert.False(t, c.Extra().Has("給与"))
}

func TestNormalizeExtraKeepsRawOrder(t *testing.T) {
	raw := rawRecord("c", "3", "a", "1", "b", "2")
	c := Normalize(raw, nil)
	assert.Equal(t, []string{"c", "a", "b"}, c.Extra().Keys())
}

func TestMarshalOrderAndStamps(t *testing.T) {
	c := Normalize(rawRecord("x", "y"), map[string]string{"original_id": "missing"})
	c.Stamp("_source", "kango")

	data, err := json.Marshal(c)
	require.NoError(t, err)

	s := string(data)
	assert.Regexp(t, `^\{"original_id":"","access":"",`, s)
	assert.Contains(t, s, `"working_style":"","_extra":{"x":"y"},"_source":"kango"}`)
}

package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFirstWins(t *testing.T) {
	r := New()
	assert.True(t, r.Add("勤務地", "東京"))
	assert.False(t, r.Add("勤務地", "大阪"))

	v, ok := r.Get("勤務地")
	assert.True(t, ok)
	assert.Equal(t, "東京", v)
	assert.Equal(t, 1, r.Len())
}

func TestSetLastWinsKeepsPosition(t *testing.T) {
	var r Record
	r.Set("a", "1")
	r.Set("b", "2")
	r.Set("a", "3")

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	v, _ := r.Get("a")
	assert.Equal(t, "3", v)
}

func TestMergeOverwrites(t *testing.T) {
	base := New()
	base.Add("title", "from dl")
	base.Add("salary", "300k")

	meta := New()
	meta.Set("title", "from meta")
	meta.Set("area", "north")

	base.Merge(meta)
	base.Merge(nil)

	assert.Equal(t, []string{"title", "salary", "area"}, base.Keys())
	v, _ := base.Get("title")
	assert.Equal(t, "from meta", v)
}

func TestJSONPreservesOrder(t *testing.T) {
	r := New()
	r.Set("z", "last letter")
	r.Set("a", "first \"letter\"")
	r.Set("m", "line\nbreak")

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last letter","a":"first \"letter\"","m":"line\nbreak"}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Keys(), back.Keys())
	assert.True(t, back.Has("m"))
}

func TestEmptyRecordJSON(t *testing.T) {
	data, err := json.Marshal(New())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestKeysIsACopy(t *testing.T) {
	r := New()
	r.Set("a", "1")
	keys := r.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a"}, r.Keys())
}

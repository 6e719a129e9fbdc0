package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_KeepsKeyOrder(t *testing.T) {
	v, err := DecodeJSON(strings.NewReader(`{"z": 1, "a": {"y": 2.5, "b": null}, "m": [1, "x", true]}`))
	require.NoError(t, err)

	rec, ok := v.(*Record)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, rec.Keys())

	z, _ := rec.Get("z")
	assert.Equal(t, int64(1), z)

	inner, _ := rec.Get("a")
	require.IsType(t, &Record{}, inner)
	assert.Equal(t, []string{"y", "b"}, inner.(*Record).Keys())
	y, _ := inner.(*Record).Get("y")
	assert.Equal(t, 2.5, y)

	m, _ := rec.Get("m")
	assert.Equal(t, []any{int64(1), "x", true}, m)
}

func TestDecodeJSON_Errors(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)

	_, err = DecodeJSON(strings.NewReader(`{"a": `))
	assert.Error(t, err)
}

func TestRecord_SetKeepsPosition(t *testing.T) {
	r := NewRecord()
	r.Set("b", 1)
	r.Set("a", 2)
	r.Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, r.Keys())
	assert.Equal(t, 2, r.Len())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":3,"a":2}`, string(out))
	assert.Equal(t, `{"b":3,"a":2}`, string(out))
}

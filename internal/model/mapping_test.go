package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRow_UnmarshalJSON(t *testing.T) {
	var rows []RawRow
	err := json.Unmarshal([]byte(`[
		{"name": "Ada", "price": 100, "zip": 62704, "lat": 39.781, "vip": true, "notes": null, "tags": ["a"]},
		{"price": "$50.00", "big": 12345678901234567890}
	]`), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ada", rows[0]["name"])
	assert.Equal(t, "100", rows[0]["price"])
	assert.Equal(t, "62704", rows[0]["zip"])
	assert.Equal(t, "39.781", rows[0]["lat"])
	assert.Equal(t, "true", rows[0]["vip"])
	assert.Equal(t, "", rows[0]["notes"])
	assert.Equal(t, `["a"]`, rows[0]["tags"])

	assert.Equal(t, "$50.00", rows[1]["price"])
	assert.Equal(t, "12345678901234567890", rows[1]["big"])
}

func TestRawRow_UnmarshalJSONRejectsNonObject(t *testing.T) {
	var r RawRow
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))

	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.Nil(t, r)
}

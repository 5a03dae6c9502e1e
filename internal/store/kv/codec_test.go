package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestToItemAndHydrate_RoundTrip(t *testing.T) {
	item, err := toItem(sample{Name: "midterm", Count: 9})
	require.NoError(t, err)
	assert.Equal(t, "midterm", item["name"])
	assert.EqualValues(t, 9, item["count"])

	var out sample
	require.NoError(t, hydrate(item, &out))
	assert.Equal(t, sample{Name: "midterm", Count: 9}, out)
}

func TestJSONItem_ValueAndScanRoundTrip(t *testing.T) {
	item := JSONItem{"a": "b", "n": float64(3)}
	value, err := item.Value()
	require.NoError(t, err)

	var scanned JSONItem
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, "b", scanned["a"])
	assert.EqualValues(t, 3, scanned["n"])
}

func TestJSONItem_ScanNil(t *testing.T) {
	var scanned JSONItem
	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)
}

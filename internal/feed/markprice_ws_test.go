package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkPriceMessage(t *testing.T) {
	msg := []byte(`[
		{"e":"markPriceUpdate","E":1717000000000,"s":"BTCUSDT","p":"65000.10","i":"64990.00","P":"65010.00","r":"0.00010000","T":1717027200000},
		{"e":"markPriceUpdate","E":1717000000000,"s":"ETHUSDT","p":"3000.50","i":"3000.00","P":"3001.00","r":"-0.00005000","T":1717027200000}
	]`)

	updates, err := parseMarkPriceMessage(msg)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, "BTCUSDT", updates[0].Symbol)
	assert.InDelta(t, 65000.10, updates[0].MarkPrice, 1e-9)
	assert.InDelta(t, 0.0001, updates[0].FundingRate, 1e-12)
	assert.Equal(t, time.UnixMilli(1717027200000), updates[0].NextFundingTime)

	assert.Equal(t, "ETHUSDT", updates[1].Symbol)
	assert.InDelta(t, -0.00005, updates[1].FundingRate, 1e-12)
}

func TestParseMarkPriceMessageSkipsOtherEvents(t *testing.T) {
	msg := []byte(`[{"e":"somethingElse","s":"BTCUSDT","p":"1","r":"0","T":0}]`)

	updates, err := parseMarkPriceMessage(msg)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestParseMarkPriceMessageEmptyFundingRate(t *testing.T) {
	msg := []byte(`[{"e":"markPriceUpdate","s":"BTCUSDT_240628","p":"65000","r":"","T":0}]`)

	updates, err := parseMarkPriceMessage(msg)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Zero(t, updates[0].FundingRate)
}

func TestParseMarkPriceMessageMalformed(t *testing.T) {
	_, err := parseMarkPriceMessage([]byte(`{"not":"an array"}`))
	assert.Error(t, err)

	_, err = parseMarkPriceMessage([]byte(`[{"e":"markPriceUpdate","s":"X","p":"abc","r":"0","T":0}]`))
	assert.Error(t, err)
}

package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpflow/fundarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, TakerFee: 0.00035}, testLogger())
	require.NoError(t, err)
	return c
}

func TestFetchOrderBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "l2Book", req["type"])
		assert.Equal(t, "ETH", req["coin"])

		w.Write([]byte(`{
			"coin": "ETH",
			"levels": [
				[{"px": "3000.5", "sz": "2", "n": 3}, {"px": "3000.0", "sz": "5", "n": 1}],
				[{"px": "3001.0", "sz": "1.5", "n": 2}]
			]
		}`))
	})

	ob, err := c.FetchOrderBook(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.VenueHyperliquid, ob.Venue)
	require.Len(t, ob.Bids, 2)
	require.Len(t, ob.Asks, 1)
	assert.Equal(t, domain.PriceLevel{Price: 3000.5, Size: 2}, ob.Bids[0])
	assert.Equal(t, domain.PriceLevel{Price: 3001.0, Size: 1.5}, ob.Asks[0])

	mid, ok := ob.MidPrice()
	require.True(t, ok)
	assert.InDelta(t, 3000.75, mid, 1e-9)
}

func TestFetchHourlyFundingRates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"universe": [
				{"name": "BTC", "szDecimals": 5, "maxLeverage": 50},
				{"name": "ETH", "szDecimals": 4, "maxLeverage": 50}
			]},
			[
				{"funding": "0.0000125", "openInterest": "100", "markPx": "65000"},
				{"funding": "-0.00002", "openInterest": "2000", "markPx": "3000"}
			]
		]`))
	})

	snaps, err := c.FetchHourlyFundingRates(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "BTC", snaps[0].Symbol)
	assert.InDelta(t, 0.0000125, snaps[0].HourlyRate, 1e-12)
	assert.InDelta(t, 6.5e6, snaps[0].OpenInterest, 1e-3, "open interest is normalised to USD")

	assert.Equal(t, "ETH", snaps[1].Symbol)
	assert.InDelta(t, -0.00002, snaps[1].HourlyRate, 1e-12)

	// The universe was cached; lot steps resolve without another meta call.
	step, err := c.LotStepSize(context.Background(), "ETH")
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, step, 1e-12)

	_, err = c.LotStepSize(context.Background(), "DOGE")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestOpenPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"marginSummary": {"accountValue": "12500.5"},
			"withdrawable": "9000",
			"assetPositions": [
				{"position": {"coin": "ETH", "szi": "-2.5", "entryPx": "3100", "unrealizedPnl": "250"}},
				{"position": {"coin": "SOL", "szi": "0", "entryPx": "0", "unrealizedPnl": "0"}}
			]
		}`))
	})

	positions, err := c.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1, "flat positions are dropped")
	assert.Equal(t, domain.DirectionShort, positions[0].Direction)
	assert.Equal(t, 2.5, positions[0].Size)
	assert.Equal(t, 3100.0, positions[0].EntryPrice)

	balance, err := c.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12500.5, balance.Total)
	assert.Equal(t, 9000.0, balance.Available)
}

func TestVenueErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	})

	_, err := c.FetchOrderBook(context.Background(), "ETH")
	require.ErrorIs(t, err, domain.ErrVenueUnavailable)

	c2 := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	_, err = c2.FetchOrderBook(context.Background(), "ETH")
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFormatPrice(t *testing.T) {
	// 5 significant figures, capped by 6 - szDecimals decimals.
	assert.Equal(t, "65001", formatPrice(65001.23, 5))
	assert.Equal(t, "3000.5", formatPrice(3000.52, 4))
	assert.Equal(t, "0.12345", formatPrice(0.1234549, 1))
	assert.Equal(t, "1.2345", formatPrice(1.23454, 2))
}

func TestParseFill(t *testing.T) {
	var res exchangeResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"response": {"type": "order", "data": {"statuses": [
			{"filled": {"totalSz": "2.5", "avgPx": "3001.4", "oid": 77}}
		]}}
	}`), &res))

	fill, err := parseFill(res, "ETH", true)
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.Equal(t, 2.5, fill.Size)
	assert.Equal(t, 3001.4, fill.AvgPrice)

	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"response": {"type": "order", "data": {"statuses": [
			{"error": "Insufficient margin to place order."}
		]}}
	}`), &res))
	_, err = parseFill(res, "ETH", true)
	require.ErrorIs(t, err, domain.ErrOrderRejected)
}

package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpflow/fundarb/internal/domain"
)

func mockBids() domain.BookSide {
	return domain.BookSide{
		{Price: 10, Size: 10},
		{Price: 9, Size: 9},
		{Price: 8, Size: 8},
	}
}

func mockAsks() domain.BookSide {
	return domain.BookSide{
		{Price: 8, Size: 8},
		{Price: 9, Size: 9},
		{Price: 10, Size: 10},
	}
}

func TestQuoteSideSell(t *testing.T) {
	// Selling consumes bids. Total depth is 100+81+64 = 245 USD.
	_, err := QuoteSide(domain.VenueBinance, nil, 246, 10, 0.0005)
	require.ErrorIs(t, err, domain.ErrEmptyOrderBook)

	_, err = QuoteSide(domain.VenueBinance, mockBids(), 246, 10, 0.0005)
	require.ErrorIs(t, err, domain.ErrInsufficientDepth)

	q, err := QuoteSide(domain.VenueBinance, mockBids(), 245, 10, 0.0005)
	require.NoError(t, err)
	assert.InEpsilon(t, 9.07, q.ExpectedExecutionPrice, 0.01)
	assert.InEpsilon(t, 27.0, q.RealizedSize, 1e-9)
	assert.Equal(t, domain.VenueBinance, q.Venue)
	assert.Equal(t, 0.0005, q.PlatformFee)
}

func TestQuoteSideBuy(t *testing.T) {
	// Buying consumes asks: the whole first level and half of the second.
	q, err := QuoteSide(domain.VenueHyperliquid, mockAsks(), 104.5, 8, 0.00035)
	require.NoError(t, err)
	assert.InEpsilon(t, 8.36, q.ExpectedExecutionPrice, 0.01)
	assert.InEpsilon(t, 12.5, q.RealizedSize, 1e-9)
}

func TestQuoteSidePartialLastLevel(t *testing.T) {
	// 244 USD stops partway through the third bid level.
	q, err := QuoteSide(domain.VenueBinance, mockBids(), 244, 10, 0)
	require.NoError(t, err)
	assert.InEpsilon(t, 26.875, q.RealizedSize, 1e-9)
	assert.InEpsilon(t, 9.079, q.ExpectedExecutionPrice, 0.001)
}

func TestQuoteSideConservation(t *testing.T) {
	// For any notional the book covers, size * price must recover it.
	amounts := []float64{1, 50, 99.99, 100, 104.5, 181, 244.999}
	for _, amount := range amounts {
		q, err := QuoteSide(domain.VenueBinance, mockBids(), amount, 10, 0)
		require.NoError(t, err, "amount %v", amount)
		assert.InEpsilon(t, amount, q.RealizedSize*q.ExpectedExecutionPrice, 1e-9, "amount %v", amount)
	}
}

func TestQuoteSideRejectsNonPositiveAmount(t *testing.T) {
	_, err := QuoteSide(domain.VenueBinance, mockBids(), 0, 10, 0)
	require.Error(t, err)
	_, err = QuoteSide(domain.VenueBinance, mockBids(), -5, 10, 0)
	require.Error(t, err)
}

func TestQuoteBookUsesMidReference(t *testing.T) {
	ob := domain.Orderbook{
		Venue:  domain.VenueBinance,
		Symbol: "ETH",
		Bids:   mockBids(),
		Asks:   mockAsks(),
	}
	// Mid is (10+8)/2 = 9.
	q, err := QuoteBook(ob, 100, 0.0005, true)
	require.NoError(t, err)
	assert.Equal(t, 9.0, q.ReferencePrice)
	assert.InEpsilon(t, PctDiff(q.ExpectedExecutionPrice, 9.0), q.Slippage, 1e-12)

	_, err = QuoteBook(domain.Orderbook{Venue: domain.VenueBinance, Asks: mockAsks()}, 100, 0, false)
	require.ErrorIs(t, err, domain.ErrEmptyOrderBook)
}

func TestPctDiff(t *testing.T) {
	assert.InEpsilon(t, 0.02, PctDiff(102, 100), 0.001)
	assert.InEpsilon(t, 0.0196, PctDiff(100, 102), 0.001)
}

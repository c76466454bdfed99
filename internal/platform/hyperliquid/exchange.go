package hyperliquid

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/perpflow/fundarb/internal/domain"
)

// maxPriceDecimals is the protocol cap on perp price precision; the usable
// precision per asset is this minus the asset's size decimals.
const maxPriceDecimals = 6

// SubmitMarketOrder emulates a market order with an IoC limit order priced a
// slippage band through the mid, signed as a Hyperliquid L1 action.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, size float64, isBuy bool) (domain.OrderFill, error) {
	if c.signer == nil {
		return domain.OrderFill{}, fmt.Errorf("hyperliquid: market order %s: no signing key configured", symbol)
	}

	assetIndex, szDecimals, err := c.asset(ctx, symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}
	mid, err := c.midPrice(ctx, symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}

	limitPx := mid * (1 - c.slippage)
	if isBuy {
		limitPx = mid * (1 + c.slippage)
	}

	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      assetIndex,
			IsBuy:      isBuy,
			Price:      formatPrice(limitPx, szDecimals),
			Size:       strconv.FormatFloat(size, 'f', szDecimals, 64),
			ReduceOnly: false,
			Type:       orderTypeWire{Limit: &limitWire{Tif: "Ioc"}},
		}},
		Grouping: "na",
	}

	nonce := time.Now().UnixMilli()
	connectionID, err := actionHash(action, nonce)
	if err != nil {
		return domain.OrderFill{}, err
	}
	signature, err := c.signer.SignAction(connectionID)
	if err != nil {
		return domain.OrderFill{}, err
	}

	var res exchangeResponse
	err = c.post(ctx, "/exchange", exchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: signature,
	}, &res)
	if err != nil {
		return domain.OrderFill{}, err
	}

	fill, err := parseFill(res, symbol, isBuy)
	if err != nil {
		return domain.OrderFill{}, err
	}

	c.logger.InfoContext(ctx, "market order filled",
		slog.String("symbol", symbol),
		slog.String("side", string(fill.Side)),
		slog.Float64("size", fill.Size),
		slog.Float64("avg_price", fill.AvgPrice),
	)
	return fill, nil
}

func (c *Client) midPrice(ctx context.Context, symbol string) (float64, error) {
	var mids map[string]string
	if err := c.info(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return 0, err
	}
	raw, ok := mids[symbol]
	if !ok {
		return 0, fmt.Errorf("hyperliquid: mid price %s: %w", symbol, domain.ErrTokenNotFound)
	}
	mid, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, malformedErr("parse mid price "+symbol, err)
	}
	return mid, nil
}

// actionHash is the keccak of the msgpack-encoded action, the nonce as 8
// big-endian bytes, and a zero byte marking the absent vault address. It
// becomes the connectionId of the signed phantom agent.
func actionHash(action orderAction, nonce int64) ([32]byte, error) {
	packed, err := msgpack.Marshal(action)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hyperliquid: encode action: %w", err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))

	data := append(packed, nonceBytes[:]...)
	data = append(data, 0x00)

	var hash [32]byte
	copy(hash[:], ethcrypto.Keccak256(data))
	return hash, nil
}

func parseFill(res exchangeResponse, symbol string, isBuy bool) (domain.OrderFill, error) {
	if res.Status != "ok" {
		return domain.OrderFill{}, fmt.Errorf("hyperliquid: market order %s: %w: status %q",
			symbol, domain.ErrOrderRejected, res.Status)
	}
	statuses := res.Response.Data.Statuses
	if len(statuses) == 0 {
		return domain.OrderFill{}, malformedErr("market order "+symbol, fmt.Errorf("no order status"))
	}
	st := statuses[0]
	if st.Error != "" {
		return domain.OrderFill{}, fmt.Errorf("hyperliquid: market order %s: %w: %s",
			symbol, domain.ErrOrderRejected, st.Error)
	}
	if st.Filled == nil {
		// An IoC order that rested or lapsed without a fill.
		return domain.OrderFill{}, fmt.Errorf("hyperliquid: market order %s: %w: not filled",
			symbol, domain.ErrOrderRejected)
	}

	filled, err := strconv.ParseFloat(st.Filled.TotalSz, 64)
	if err != nil {
		return domain.OrderFill{}, malformedErr("parse filled size "+symbol, err)
	}
	avgPx, err := strconv.ParseFloat(st.Filled.AvgPx, 64)
	if err != nil {
		return domain.OrderFill{}, malformedErr("parse avg price "+symbol, err)
	}

	return domain.OrderFill{
		Symbol:   symbol,
		Venue:    domain.VenueHyperliquid,
		Side:     domain.SideFor(isBuy),
		Size:     filled,
		AvgPrice: avgPx,
	}, nil
}

// formatPrice renders px with at most 5 significant figures and at most
// (maxPriceDecimals - szDecimals) decimal places, the venue's perp tick rule.
func formatPrice(px float64, szDecimals int) string {
	allowed := maxPriceDecimals - szDecimals
	if allowed < 0 {
		allowed = 0
	}

	decimals := allowed
	if px > 0 {
		integerDigits := int(math.Floor(math.Log10(px))) + 1
		if integerDigits < 0 {
			integerDigits = 0
		}
		if sig := 5 - integerDigits; sig < decimals {
			decimals = sig
		}
		if decimals < 0 {
			decimals = 0
		}
	}

	s := strconv.FormatFloat(px, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

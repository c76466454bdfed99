// Package feed streams real-time mark prices and funding rates from the
// Binance futures WebSocket for the watch view.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/perpflow/fundarb/internal/domain"
)

const (
	// DefaultStreamURL is the all-symbols mark price stream, updated every second.
	DefaultStreamURL = "wss://fstream.binance.com/ws/!markPrice@arr@1s"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the idle read deadline. The stream ticks every second, so
	// anything close to a minute of silence means the connection is dead.
	readWait = 60 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// UpdateHandler is called with each batch of mark-price ticks.
type UpdateHandler func(ctx context.Context, updates []domain.MarkPriceUpdate)

// MarkPriceFeed connects to the Binance futures mark-price stream and invokes
// the handler on each batch. It reconnects with exponential backoff.
type MarkPriceFeed struct {
	url      string
	onUpdate UpdateHandler
	logger   *slog.Logger
}

// NewMarkPriceFeed creates a feed for the given stream URL. An empty url
// selects DefaultStreamURL.
func NewMarkPriceFeed(url string, onUpdate UpdateHandler, logger *slog.Logger) *MarkPriceFeed {
	if url == "" {
		url = DefaultStreamURL
	}
	return &MarkPriceFeed{
		url:      url,
		onUpdate: onUpdate,
		logger:   logger.With(slog.String("component", "markprice_feed")),
	}
}

// Run connects and streams until ctx is cancelled. Disconnects are retried
// with exponential backoff; the only terminal error is context cancellation.
func (f *MarkPriceFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("mark price stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *MarkPriceFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	// Binance pings the client periodically; answer and extend the deadline.
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			conn.Close()
		case <-done:
		}
	}()

	f.logger.Info("mark price stream connected", slog.String("url", f.url))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		updates, err := parseMarkPriceMessage(message)
		if err != nil {
			f.logger.Warn("skipping malformed stream message", slog.String("error", err.Error()))
			continue
		}
		if len(updates) > 0 && f.onUpdate != nil {
			f.onUpdate(ctx, updates)
		}
	}
}

// markPriceEvent is the wire format of one markPriceUpdate event.
type markPriceEvent struct {
	EventType       string `json:"e"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

func parseMarkPriceMessage(message []byte) ([]domain.MarkPriceUpdate, error) {
	var events []markPriceEvent
	if err := json.Unmarshal(message, &events); err != nil {
		return nil, fmt.Errorf("feed: decoding message: %w", err)
	}

	updates := make([]domain.MarkPriceUpdate, 0, len(events))
	for _, ev := range events {
		if ev.EventType != "markPriceUpdate" {
			continue
		}
		mark, err := strconv.ParseFloat(ev.MarkPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("feed: parsing mark price for %s: %w", ev.Symbol, err)
		}
		// Funding rate is empty for symbols in settlement.
		rate := 0.0
		if ev.FundingRate != "" {
			rate, err = strconv.ParseFloat(ev.FundingRate, 64)
			if err != nil {
				return nil, fmt.Errorf("feed: parsing funding rate for %s: %w", ev.Symbol, err)
			}
		}
		updates = append(updates, domain.MarkPriceUpdate{
			Symbol:          ev.Symbol,
			MarkPrice:       mark,
			FundingRate:     rate,
			NextFundingTime: time.UnixMilli(ev.NextFundingTime),
		})
	}
	return updates, nil
}

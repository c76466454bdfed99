package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/perpflow/fundarb/internal/arbitrage"
	"github.com/perpflow/fundarb/internal/domain"
	"golang.org/x/sync/errgroup"
)

// maxHistoryDays caps lookback so both venues' history endpoints stay within
// a single page.
const maxHistoryDays = 7

// VenueHistory is one venue's funding observations over the window, with the
// mean hourly rate across them.
type VenueHistory struct {
	Venue          domain.Venue
	Payments       []domain.FundingPayment
	MeanHourlyRate float64
}

// HistoryReport joins both venues' funding history for one symbol. The
// effective rate is computed from the two mean hourly rates the same way live
// opportunities are ranked.
type HistoryReport struct {
	Symbol              string
	Days                int
	Binance             VenueHistory
	Hyperliquid         VenueHistory
	MeanEffectiveHourly float64
}

// HistoryService fetches and joins funding history from both venues.
type HistoryService struct {
	binance     domain.VenueClient
	hyperliquid domain.VenueClient
	logger      *slog.Logger
}

// NewHistoryService creates a HistoryService over the two venue clients.
func NewHistoryService(binance, hyperliquid domain.VenueClient, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		binance:     binance,
		hyperliquid: hyperliquid,
		logger:      logger.With(slog.String("component", "history")),
	}
}

// FundingHistory returns the joined funding history for symbol over the last
// days days. Lookback beyond the cap is clamped, not rejected.
func (s *HistoryService) FundingHistory(ctx context.Context, symbol string, days int) (*HistoryReport, error) {
	if days <= 0 {
		days = 1
	}
	if days > maxHistoryDays {
		s.logger.Warn("clamping history lookback",
			slog.Int("requested", days),
			slog.Int("max", maxHistoryDays),
		)
		days = maxHistoryDays
	}

	var bHist, hHist []domain.FundingPayment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bHist, err = s.binance.FundingHistory(gctx, symbol, days)
		return err
	})
	g.Go(func() (err error) {
		hHist, err = s.hyperliquid.FundingHistory(gctx, symbol, days)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: fetching funding history for %s: %w", symbol, err)
	}

	rep := &HistoryReport{
		Symbol:      symbol,
		Days:        days,
		Binance:     VenueHistory{Venue: domain.VenueBinance, Payments: bHist, MeanHourlyRate: meanHourly(bHist)},
		Hyperliquid: VenueHistory{Venue: domain.VenueHyperliquid, Payments: hHist, MeanHourlyRate: meanHourly(hHist)},
	}
	rep.MeanEffectiveHourly = arbitrage.EffectiveRate(rep.Binance.MeanHourlyRate, rep.Hyperliquid.MeanHourlyRate)
	return rep, nil
}

func meanHourly(payments []domain.FundingPayment) float64 {
	if len(payments) == 0 {
		return 0
	}
	var sum float64
	for _, p := range payments {
		sum += p.HourlyRate
	}
	return sum / float64(len(payments))
}

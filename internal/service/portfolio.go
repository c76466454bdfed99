// Package service aggregates venue state for the read-only views: open
// positions, account balances, and funding history.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/perpflow/fundarb/internal/domain"
	"golang.org/x/sync/errgroup"
)

const hoursPerYear = 24 * 365

// PortfolioService merges positions and balances from both venues.
type PortfolioService struct {
	binance     domain.VenueClient
	hyperliquid domain.VenueClient
	logger      *slog.Logger
}

// NewPortfolioService creates a PortfolioService over the two venue clients.
func NewPortfolioService(binance, hyperliquid domain.VenueClient, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		binance:     binance,
		hyperliquid: hyperliquid,
		logger:      logger.With(slog.String("component", "portfolio")),
	}
}

// Positions returns all open positions on both venues, Binance first. Each
// position is annotated with the venue's current funding rate annualised from
// hourly terms; positions whose symbol has no current rate are left at zero.
func (s *PortfolioService) Positions(ctx context.Context) ([]domain.Position, error) {
	var (
		bPos, hPos     []domain.Position
		bRates, hRates []domain.FundingSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bPos, err = s.binance.OpenPositions(gctx)
		return err
	})
	g.Go(func() (err error) {
		hPos, err = s.hyperliquid.OpenPositions(gctx)
		return err
	})
	g.Go(func() (err error) {
		bRates, err = s.binance.FetchHourlyFundingRates(gctx)
		return err
	})
	g.Go(func() (err error) {
		hRates, err = s.hyperliquid.FetchHourlyFundingRates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: fetching positions: %w", err)
	}

	annotate(bPos, bRates)
	annotate(hPos, hRates)

	return append(bPos, hPos...), nil
}

func annotate(positions []domain.Position, rates []domain.FundingSnapshot) {
	bySymbol := make(map[string]float64, len(rates))
	for _, r := range rates {
		bySymbol[r.Symbol] = r.HourlyRate
	}
	for i := range positions {
		positions[i].AnnualizedFundingRate = bySymbol[positions[i].Symbol] * hoursPerYear
	}
}

// Balances returns the account balance on both venues, Binance first.
func (s *PortfolioService) Balances(ctx context.Context) ([]domain.Balance, error) {
	var bBal, hBal domain.Balance

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bBal, err = s.binance.AccountBalance(gctx)
		return err
	})
	g.Go(func() (err error) {
		hBal, err = s.hyperliquid.AccountBalance(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: fetching balances: %w", err)
	}

	return []domain.Balance{bBal, hBal}, nil
}

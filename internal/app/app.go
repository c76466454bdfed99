// Package app wires up dependencies and implements the CLI commands on top
// of the executor engine and the read-only services.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/perpflow/fundarb/internal/config"
	"github.com/perpflow/fundarb/internal/crypto"
	"github.com/perpflow/fundarb/internal/domain"
	"github.com/perpflow/fundarb/internal/executor"
	"github.com/perpflow/fundarb/internal/feed"
)

const depthDisplayLevels = 5

// App is the root application object. It owns the configuration, the wired
// dependencies, and the output writer the commands print to.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Dependencies
	out    io.Writer
}

// New wires dependencies from cfg and returns the App together with a
// cleanup function to call on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		deps:   deps,
		out:    os.Stdout,
	}, cleanup, nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

// Rates prints the joined funding-rate table, best opportunities first.
// limit <= 0 prints every joint symbol.
func (a *App) Rates(ctx context.Context, limit int) error {
	joint, err := a.deps.Engine.CompareFundingRates(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(joint) > limit {
		joint = joint[:limit]
	}

	w := a.table()
	fmt.Fprintln(w, "SYMBOL\tBINANCE %/h\tHYPERLIQUID %/h\tEFFECTIVE %/h\tANNUALIZED %\tHL OI (USD)")
	for _, j := range joint {
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.6f\t%.2f\t%.0f\n",
			j.Symbol,
			j.BinanceRate*100,
			j.HyperliquidRate*100,
			j.EffectiveRate*100,
			j.EffectiveRate*24*365*100,
			j.HyperliquidOpenInterest,
		)
	}
	return w.Flush()
}

// Quote prints both legs' depth-weighted quotes for entering notional USD in
// symbol, without trading.
func (a *App) Quote(ctx context.Context, symbol string, notional float64) error {
	lq, err := a.deps.Engine.Quote(ctx, symbol, notional)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s: short %s / long %s (effective rate %.6f%%/h)\n",
		lq.Symbol, lq.ShortVenue, lq.ShortVenue.Other(), lq.Joint.EffectiveRate*100)

	w := a.table()
	fmt.Fprintln(w, "LEG\tVENUE\tEXEC PRICE\tREF PRICE\tSLIPPAGE %\tFEE (USD)\tSIZE")
	printQuote(w, "sell", lq.Short)
	printQuote(w, "buy", lq.Long)
	return w.Flush()
}

func printQuote(w io.Writer, leg string, q domain.Quote) {
	fmt.Fprintf(w, "%s\t%s\t%.6g\t%.6g\t%.4f\t%.2f\t%.6g\n",
		leg, q.Venue, q.ExpectedExecutionPrice, q.ReferencePrice, q.Slippage*100, q.PlatformFee, q.RealizedSize)
}

// Enter opens the hedged pair for notional USD total and prints the report.
func (a *App) Enter(ctx context.Context, symbol string, notional float64) error {
	report, err := a.deps.Engine.Enter(ctx, symbol, notional)
	if err != nil {
		return err
	}
	a.storeReport(ctx, report)
	return a.printReport(report)
}

// Exit closes the hedged pair, up to notional USD (0 closes everything), and
// prints the report.
func (a *App) Exit(ctx context.Context, symbol string, notional float64) error {
	report, err := a.deps.Engine.Exit(ctx, symbol, notional)
	if err != nil {
		return err
	}
	a.storeReport(ctx, report)
	return a.printReport(report)
}

func (a *App) storeReport(ctx context.Context, report *executor.ExecutionReport) {
	if a.deps.Reports == nil {
		return
	}
	if err := a.deps.Reports.Store(ctx, report); err != nil {
		a.logger.WarnContext(ctx, "storing report failed",
			slog.String("id", report.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (a *App) printReport(report *executor.ExecutionReport) error {
	fmt.Fprintf(a.out, "%s %s: size %.6g per leg, %s\n",
		report.Action, report.Symbol, report.Size,
		report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond))

	w := a.table()
	fmt.Fprintln(w, "LEG\tVENUE\tAVG PRICE\tQUOTED PRICE\tREALIZED SLIPPAGE %")
	printLeg(w, "buy", report.Buy)
	printLeg(w, "sell", report.Sell)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "spread: quoted %.2f bps, realized %.2f bps\n",
		report.QuotedSpreadBps, report.RealizedSpreadBps)
	return nil
}

func printLeg(w io.Writer, name string, leg executor.Leg) {
	fmt.Fprintf(w, "%s\t%s\t%.6g\t%.6g\t%.4f\n",
		name, leg.Venue, leg.Fill.AvgPrice, leg.Quote.ExpectedExecutionPrice, leg.RealizedSlippage*100)
}

// Positions prints open positions on both venues.
func (a *App) Positions(ctx context.Context) error {
	positions, err := a.deps.Portfolio.Positions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Fprintln(a.out, "no open positions")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "VENUE\tSYMBOL\tDIRECTION\tSIZE\tENTRY\tUPNL (USD)\tFUNDING APR %")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6g\t%.6g\t%.2f\t%.2f\n",
			p.Venue, p.Symbol, p.Direction, p.Size, p.EntryPrice, p.UnrealizedPnL, p.AnnualizedFundingRate*100)
	}
	return w.Flush()
}

// Balances prints account balances on both venues.
func (a *App) Balances(ctx context.Context) error {
	balances, err := a.deps.Portfolio.Balances(ctx)
	if err != nil {
		return err
	}

	w := a.table()
	fmt.Fprintln(w, "VENUE\tTOTAL (USD)\tAVAILABLE (USD)")
	for _, b := range balances {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", b.Venue, b.Total, b.Available)
	}
	return w.Flush()
}

// Depth prints the top of both venues' books for symbol side by side.
func (a *App) Depth(ctx context.Context, symbol string) error {
	for _, client := range []domain.VenueClient{a.deps.Binance, a.deps.Hyperliquid} {
		ob, err := client.FetchOrderBook(ctx, symbol)
		if err != nil {
			return err
		}

		mid, _ := ob.MidPrice()
		fmt.Fprintf(a.out, "%s %s (mid %.6g)\n", ob.Venue, ob.Symbol, mid)

		w := a.table()
		fmt.Fprintln(w, "BID SIZE\tBID\tASK\tASK SIZE")
		n := max(len(ob.Bids), len(ob.Asks))
		if n > depthDisplayLevels {
			n = depthDisplayLevels
		}
		for i := 0; i < n; i++ {
			bidPx, bidSz, askPx, askSz := "", "", "", ""
			if i < len(ob.Bids) {
				bidPx = fmt.Sprintf("%.6g", ob.Bids[i].Price)
				bidSz = fmt.Sprintf("%.6g", ob.Bids[i].Size)
			}
			if i < len(ob.Asks) {
				askPx = fmt.Sprintf("%.6g", ob.Asks[i].Price)
				askSz = fmt.Sprintf("%.6g", ob.Asks[i].Size)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bidSz, bidPx, askPx, askSz)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// History prints the joined funding history for symbol over the last days
// days.
func (a *App) History(ctx context.Context, symbol string, days int) error {
	rep, err := a.deps.History.FundingHistory(ctx, symbol, days)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s funding, last %dd: binance mean %.6f%%/h, hyperliquid mean %.6f%%/h, effective %.6f%%/h\n",
		rep.Symbol, rep.Days,
		rep.Binance.MeanHourlyRate*100,
		rep.Hyperliquid.MeanHourlyRate*100,
		rep.MeanEffectiveHourly*100)

	w := a.table()
	fmt.Fprintln(w, "TIME\tVENUE\tRATE %/h")
	for _, payments := range [][]domain.FundingPayment{rep.Binance.Payments, rep.Hyperliquid.Payments} {
		for _, p := range payments {
			fmt.Fprintf(w, "%s\t%s\t%.6f\n", p.Time.UTC().Format(time.RFC3339), p.Venue, p.HourlyRate*100)
		}
	}
	return w.Flush()
}

// RecentReports prints the n most recent execution reports from the report
// log.
func (a *App) RecentReports(ctx context.Context, n int) error {
	if a.deps.Reports == nil {
		fmt.Fprintln(a.out, "report log requires redis (set redis.enabled = true)")
		return nil
	}

	reports, err := a.deps.Reports.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(a.out, "no reports recorded")
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "TIME\tACTION\tSYMBOL\tSIZE\tREALIZED SPREAD BPS\tID")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6g\t%.2f\t%s\n",
			r.CompletedAt.UTC().Format(time.RFC3339), r.Action, r.Symbol, r.Size, r.RealizedSpreadBps, r.ID)
	}
	return w.Flush()
}

// Watch streams mark prices from the Binance futures WebSocket and
// periodically prints the symbols with the largest absolute funding rate.
// It blocks until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	var (
		mu     sync.Mutex
		latest = make(map[string]domain.MarkPriceUpdate)
	)

	f := feed.NewMarkPriceFeed(a.cfg.Watch.StreamURL, func(_ context.Context, updates []domain.MarkPriceUpdate) {
		mu.Lock()
		for _, u := range updates {
			latest[u.Symbol] = u
		}
		mu.Unlock()
	}, a.logger)

	go func() {
		ticker := time.NewTicker(a.cfg.Watch.Interval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.printWatchTable(latest, &mu)
			}
		}
	}()

	err := f.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func (a *App) printWatchTable(latest map[string]domain.MarkPriceUpdate, mu *sync.Mutex) {
	mu.Lock()
	rows := make([]domain.MarkPriceUpdate, 0, len(latest))
	for _, u := range latest {
		rows = append(rows, u)
	}
	mu.Unlock()

	if len(rows) == 0 {
		return
	}

	sort.Slice(rows, func(i, j int) bool {
		ai, aj := rows[i].FundingRate, rows[j].FundingRate
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})
	if len(rows) > a.cfg.Watch.Top {
		rows = rows[:a.cfg.Watch.Top]
	}

	w := a.table()
	fmt.Fprintf(w, "--- %s ---\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintln(w, "SYMBOL\tMARK\tFUNDING %\tNEXT FUNDING")
	for _, u := range rows {
		fmt.Fprintf(w, "%s\t%.6g\t%.6f\t%s\n",
			u.Symbol, u.MarkPrice, u.FundingRate*100, u.NextFundingTime.UTC().Format("15:04"))
	}
	_ = w.Flush()
}

// EncryptKey encrypts privateKeyHex with password and writes the blob to
// path. It does not need any wired dependencies beyond the config.
func EncryptKey(privateKeyHex, password, path string) error {
	blob, err := crypto.EncryptKey(privateKeyHex, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("app: writing key file: %w", err)
	}
	return nil
}

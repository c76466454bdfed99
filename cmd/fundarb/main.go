// Command fundarb is the funding-rate arbitrage CLI. It compares perpetual
// funding rates between Binance and Hyperliquid, quotes depth-weighted entry
// prices, and opens or closes the hedged short/long pair.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/perpflow/fundarb/internal/app"
	"github.com/perpflow/fundarb/internal/config"
)

const usage = `usage: fundarb [-config path] <command> [arguments]

commands:
  rates [limit]              joined funding rates, best first
  quote <symbol> <usd>       depth-weighted quotes for both legs
  enter <symbol> <usd>       open the hedged pair for <usd> total notional
  exit <symbol> [usd]        close the hedged pair (omit usd to close all)
  positions                  open positions on both venues
  balance                    account balances on both venues
  depth <symbol>             top of book on both venues
  history <symbol> [days]    joined funding history (up to 7 days)
  reports [n]                recent execution reports (requires redis)
  watch                      live mark prices and funding rates
  encrypt-key <out-path>     encrypt a private key to a key file
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fundarb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]

	configPath := "config.toml"
	if len(args) >= 2 && args[0] == "-config" {
		configPath = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := args[0], args[1:]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// encrypt-key runs before wiring: it must work without venue access.
	if command == "encrypt-key" {
		return encryptKey(args)
	}

	application, cleanup, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	switch command {
	case "rates":
		limit := 0
		if len(args) > 0 {
			if limit, err = parseInt(args[0]); err != nil {
				return err
			}
		}
		return application.Rates(ctx, limit)

	case "quote":
		symbol, notional, err := symbolAndNotional(args, true)
		if err != nil {
			return err
		}
		return application.Quote(ctx, symbol, notional)

	case "enter":
		symbol, notional, err := symbolAndNotional(args, true)
		if err != nil {
			return err
		}
		return application.Enter(ctx, symbol, notional)

	case "exit":
		symbol, notional, err := symbolAndNotional(args, false)
		if err != nil {
			return err
		}
		return application.Exit(ctx, symbol, notional)

	case "positions":
		return application.Positions(ctx)

	case "balance":
		return application.Balances(ctx)

	case "depth":
		if len(args) != 1 {
			return fmt.Errorf("depth: expected <symbol>")
		}
		return application.Depth(ctx, args[0])

	case "history":
		if len(args) < 1 {
			return fmt.Errorf("history: expected <symbol> [days]")
		}
		days := 7
		if len(args) > 1 {
			if days, err = parseInt(args[1]); err != nil {
				return err
			}
		}
		return application.History(ctx, args[0], days)

	case "reports":
		n := 20
		if len(args) > 0 {
			if n, err = parseInt(args[0]); err != nil {
				return err
			}
		}
		return application.RecentReports(ctx, n)

	case "watch":
		return application.Watch(ctx)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func encryptKey(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("encrypt-key: expected <out-path>")
	}

	key := os.Getenv("FUNDARB_ENCRYPT_PRIVATE_KEY")
	password := os.Getenv("FUNDARB_ENCRYPT_PASSWORD")
	if key == "" || password == "" {
		return fmt.Errorf("encrypt-key: set FUNDARB_ENCRYPT_PRIVATE_KEY and FUNDARB_ENCRYPT_PASSWORD")
	}

	if err := app.EncryptKey(key, password, args[0]); err != nil {
		return err
	}
	fmt.Printf("encrypted key written to %s\n", args[0])
	return nil
}

func symbolAndNotional(args []string, notionalRequired bool) (string, float64, error) {
	if len(args) < 1 || (notionalRequired && len(args) < 2) {
		if notionalRequired {
			return "", 0, fmt.Errorf("expected <symbol> <usd>")
		}
		return "", 0, fmt.Errorf("expected <symbol> [usd]")
	}

	notional := 0.0
	if len(args) > 1 {
		var err error
		if notional, err = parseFloat(args[1]); err != nil {
			return "", 0, err
		}
		if notional <= 0 {
			return "", 0, fmt.Errorf("notional must be > 0, got %g", notional)
		}
	}
	return args[0], notional, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

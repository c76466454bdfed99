package app

import (
	"context"
	"fmt"
	"log/slog"

	cacheredis "github.com/perpflow/fundarb/internal/cache/redis"
	"github.com/perpflow/fundarb/internal/config"
	"github.com/perpflow/fundarb/internal/crypto"
	"github.com/perpflow/fundarb/internal/executor"
	"github.com/perpflow/fundarb/internal/notify"
	"github.com/perpflow/fundarb/internal/platform/binance"
	"github.com/perpflow/fundarb/internal/platform/hyperliquid"
	"github.com/perpflow/fundarb/internal/service"
)

// Dependencies bundles everything the commands need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Binance     *binance.Client
	Hyperliquid *hyperliquid.Client
	Engine      *executor.Engine
	Portfolio   *service.PortfolioService
	History     *service.HistoryService
	Notifier    *notify.Notifier

	// Reports is nil when Redis is disabled.
	Reports *cacheredis.ReportLog
}

// Wire constructs all concrete dependencies from the given configuration and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Venue clients ---
	deps.Binance = binance.New(binance.Config{
		APIKey:    cfg.Binance.APIKey,
		APISecret: cfg.Binance.APISecret,
		TakerFee:  cfg.Binance.TakerFee,
	}, logger)

	// The Hyperliquid key is optional: without it the client is read-only.
	hlKey := ""
	if cfg.Hyperliquid.PrivateKey != "" || cfg.Hyperliquid.EncryptedKeyPath != "" {
		key, err := crypto.LoadKey(crypto.KeySource{
			RawPrivateKey:    cfg.Hyperliquid.PrivateKey,
			EncryptedKeyPath: cfg.Hyperliquid.EncryptedKeyPath,
			KeyPassword:      cfg.Hyperliquid.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: hyperliquid key: %w", err)
		}
		hlKey = key
	}

	hl, err := hyperliquid.New(hyperliquid.Config{
		BaseURL:        cfg.Hyperliquid.BaseURL,
		PrivateKey:     hlKey,
		WalletAddress:  cfg.Hyperliquid.WalletAddress,
		TakerFee:       cfg.Hyperliquid.TakerFee,
		MarketSlippage: cfg.Hyperliquid.MarketSlippage,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: hyperliquid: %w", err)
	}
	deps.Hyperliquid = hl

	// --- Engine and read-only services ---
	deps.Engine = executor.New(deps.Binance, deps.Hyperliquid, executor.Config{
		MaxSlippageBps: cfg.Trade.MaxSlippageBps,
		QuoteTimeout:   cfg.Trade.QuoteTimeout.Duration,
		SubmitTimeout:  cfg.Trade.SubmitTimeout.Duration,
		LockTTL:        cfg.Trade.LockTTL.Duration,
	}, logger)
	deps.Portfolio = service.NewPortfolioService(deps.Binance, deps.Hyperliquid, logger)
	deps.History = service.NewHistoryService(deps.Binance, deps.Hyperliquid, logger)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Engine.SetLockManager(cacheredis.NewLockManager(redisClient))
		deps.Reports = cacheredis.NewReportLog(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if len(senders) > 0 {
		deps.Engine.SetAlerter(deps.Notifier)
	}

	return deps, cleanup, nil
}

// internal/bot/runner.go
package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-autotrader/internal/config"
	"github.com/rovshanmuradov/solana-autotrader/internal/dashboard"
	"github.com/rovshanmuradov/solana-autotrader/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-autotrader/internal/events"
	"github.com/rovshanmuradov/solana-autotrader/internal/export"
	"github.com/rovshanmuradov/solana-autotrader/internal/license"
	"github.com/rovshanmuradov/solana-autotrader/internal/logger"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/monitor"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/price"
	botsignal "github.com/rovshanmuradov/solana-autotrader/internal/signal"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/jsonfile"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/sqlstore"
	"github.com/rovshanmuradov/solana-autotrader/internal/strategy"
	"github.com/rovshanmuradov/solana-autotrader/internal/trader"
	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
	"github.com/rovshanmuradov/solana-autotrader/internal/wallet"
)

// Runner собирает компоненты бота и держит их до сигнала остановки
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	forwarder *logger.Forwarder
	shutdown  *ShutdownHandler
}

func NewRunner(cfg *config.Config, log *zap.Logger, fw *logger.Forwarder) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    log,
		forwarder: fw,
		shutdown:  NewShutdownHandler(log, DefaultShutdownTimeout),
	}
}

// Run работает до SIGINT/SIGTERM. Ошибка возвращается только при старте
// (лицензия, кошелек, ни одного живого RPC узла, хранилище).
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	cfg := r.cfg

	var validator *license.Validator
	lic := license.Config{
		Key:          cfg.License,
		AccountID:    cfg.KeygenAccountID,
		ProductID:    cfg.KeygenProductID,
		ProductToken: cfg.KeygenProductToken,
	}
	if lic.Enabled() {
		validator = license.NewValidator(lic, r.logger)
		if err := validator.Validate(ctx); err != nil {
			return fmt.Errorf("license validation failed: %w", err)
		}
	}

	w, err := wallet.NewWallet(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	r.logger.Info("Starting trader", zap.String("wallet", w.PublicKey.String()))

	pool, err := rpc.NewNodePool(cfg.RPCList, r.logger)
	if err != nil {
		return err
	}
	if _, err := rpc.Connect(ctx, pool, rpc.WithRateLimitBackoff(cfg.RateLimitBackoff())); err != nil {
		return fmt.Errorf("failed to connect to any RPC endpoint: %w", err)
	}
	chain := solbc.NewClient(pool, solbc.ClientConfig{
		RateLimitBackoff: cfg.RateLimitBackoff(),
		SubmitAttempts:   cfg.SubmitAttempts,
	}, r.logger)

	st, err := r.openStorage()
	if err != nil {
		return err
	}
	r.shutdown.Add("storage", st)

	store := position.NewStore(st, r.logger)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	httpClient := rpc.NewHTTPClient()
	apiOpts := []rpc.ExecuteOption{rpc.WithRateLimitBackoff(cfg.RateLimitBackoff())}

	oracle := price.NewOracle(price.DefaultSources(httpClient), r.logger,
		price.WithTTL(cfg.PriceTTL()),
		price.WithFallback(cfg.DefaultSOLPrice))
	dex, err := market.NewDexScreener(cfg.DexScreenerURLs, httpClient, r.logger,
		market.WithExecuteOptions(apiOpts...))
	if err != nil {
		return err
	}
	r.shutdown.Add("dexscreener", dex)
	tokens, err := market.NewTokenList(cfg.JupiterTokenAPIURL, httpClient, r.logger, apiOpts...)
	if err != nil {
		return err
	}
	jup, err := jupiter.NewClient(cfg.JupiterAPIURL, httpClient, r.logger, apiOpts...)
	if err != nil {
		return err
	}

	executor := trader.NewExecutor(trader.Deps{
		Chain:     chain,
		Swapper:   jup,
		Market:    dex,
		Metadata:  tokens,
		Positions: store,
		Journal:   st,
		Wallet:    w,
	}, trader.Config{
		AmountSOL:       cfg.AmountSOL,
		SlippageBps:     cfg.SlippageBps,
		SellSlippageBps: cfg.SellSlippageBps,
		PriorityFeeSOL:  cfg.PriorityFeeSOL,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		VerifyInterval:  cfg.VerifyPollInterval(),
		VerifyAttempts:  cfg.VerifyAttempts,
	}, r.logger)

	bus := events.NewBus(r.logger, events.DefaultBufferSize)
	r.shutdown.AddFunc("event_bus", func() error {
		return bus.Shutdown(context.Background())
	})
	subscribeAudit(bus, r.logger)

	dash := dashboard.NewClient(cfg.DashboardURL, r.logger)
	if r.forwarder != nil {
		r.forwarder.Attach(dash)
		r.shutdown.AddFunc("log_forwarder", func() error {
			r.forwarder.Attach(nil)
			return nil
		})
	}

	reconciler := monitor.NewReconciler(monitor.Deps{
		Store:     store,
		Trader:    executor,
		Chain:     chain,
		Oracle:    oracle,
		Market:    dex,
		Metadata:  tokens,
		Signals:   botsignal.NewFileSource(cfg.DataDir, r.logger),
		Publisher: dash,
		Bus:       bus,
	}, monitor.Config{
		Owner: w.PublicKey,
		Thresholds: strategy.Thresholds{
			TakeProfitPercentage:    cfg.TakeProfitPercentage,
			StopLossPercentage:      cfg.StopLossPercentage,
			LiquidityDropPercentage: cfg.LiquidityDropPercentage,
		},
		CycleInterval:  cfg.CycleInterval(),
		DebounceWindow: cfg.DebounceDuration(),
	}, r.logger)

	r.logger.Info("Monitoring positions",
		zap.Int("active", len(store.All())),
		zap.Int("sold", len(store.AllSold())),
		zap.Float64("take_profit", cfg.TakeProfitPercentage),
		zap.Float64("stop_loss", cfg.StopLossPercentage))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dash.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return r.serveMetrics(gctx, cfg.MetricsAddr) })
	}
	if validator != nil {
		g.Go(func() error { return validator.KeepAlive(gctx, license.DefaultHeartbeatInterval) })
	}

	err = g.Wait()
	executor.Wait()
	return err
}

// ExportHistory выгружает историю продаж из настроенного хранилища и завершает работу
func (r *Runner) ExportHistory(ctx context.Context, opts export.Options) (string, error) {
	st, err := r.openStorage()
	if err != nil {
		return "", err
	}
	defer st.Close()

	store := position.NewStore(st, r.logger)
	if err := store.Load(ctx); err != nil {
		return "", fmt.Errorf("failed to load positions: %w", err)
	}
	return export.NewExporter(r.logger).Export(store.AllSold(), opts)
}

func (r *Runner) openStorage() (storage.Storage, error) {
	switch r.cfg.StorageDriver {
	case "", "json":
		return jsonfile.NewStorage(r.cfg.DataDir, r.logger)
	default:
		return sqlstore.NewStorage(r.cfg.StorageDriver, r.cfg.StorageDSN, r.logger)
	}
}

// serveMetrics держит /metrics; сбой endpoint-а только логируется и не отменяет торговлю
func (r *Runner) serveMetrics(ctx context.Context, addr string) error {
	if err := metrics.Serve(ctx, addr, r.logger); err != nil {
		r.logger.Error("Metrics endpoint stopped", zap.String("addr", addr), zap.Error(err))
	}
	return nil
}

func (r *Runner) close() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := r.shutdown.Shutdown(ctx); err != nil {
		r.logger.Error("Shutdown completed with errors", zap.Error(err))
	}
	r.logger.Info("Bot shutting down gracefully")
}

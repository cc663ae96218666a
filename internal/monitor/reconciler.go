// internal/monitor/reconciler.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/domain"
	"github.com/rovshanmuradov/solana-autotrader/internal/events"
	"github.com/rovshanmuradov/solana-autotrader/internal/logger"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/signal"
	"github.com/rovshanmuradov/solana-autotrader/internal/strategy"
	"github.com/rovshanmuradov/solana-autotrader/internal/trader"
	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
)

const (
	DefaultCycleInterval  = 10 * time.Second
	DefaultDebounceWindow = 30 * time.Second
	DefaultErrorDelay     = time.Second
)

// Trader - исполнитель сделок
type Trader interface {
	Buy(ctx context.Context, c signal.Candidate) (solana.Signature, error)
	Sell(ctx context.Context, pos position.Position, trigger bool) (bool, error)
	Confirmations() <-chan trader.Confirmation
}

// PriceOracle отдает цену SOL в USD и никогда не падает
type PriceOracle interface {
	GetPrice(ctx context.Context) float64
}

// Publisher получает снимок портфеля после каждого цикла (дашборд)
type Publisher interface {
	PublishSnapshot(s *domain.Snapshot) error
}

// Config - параметры цикла сверки
type Config struct {
	Owner          solana.PublicKey
	Thresholds     strategy.Thresholds
	CycleInterval  time.Duration
	DebounceWindow time.Duration
	ErrorDelay     time.Duration
}

// Deps - зависимости цикла сверки. Publisher, Bus, Signals и Metadata необязательны.
type Deps struct {
	Store     *position.Store
	Trader    Trader
	Chain     blockchain.Client
	Oracle    PriceOracle
	Market    market.Service
	Metadata  market.MetadataService
	Signals   signal.Source
	Publisher Publisher
	Bus       *events.Bus
}

// Reconciler сверяет кошелек с хранилищем позиций и принимает решения о продаже.
// Все мутации хранилища выполняются из горутины Run.
type Reconciler struct {
	store     *position.Store
	trader    Trader
	chain     blockchain.Client
	oracle    PriceOracle
	market    market.Service
	metadata  market.MetadataService
	signals   signal.Source
	publisher Publisher
	bus       *events.Bus

	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	// адрес -> момент, когда токен впервые не нашелся в кошельке
	candidates map[string]time.Time
	last       *domain.Snapshot
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(deps Deps, cfg Config, logger *zap.Logger, opts ...Option) *Reconciler {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = DefaultCycleInterval
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}

	r := &Reconciler{
		store:      deps.Store,
		trader:     deps.Trader,
		chain:      deps.Chain,
		oracle:     deps.Oracle,
		market:     deps.Market,
		metadata:   deps.Metadata,
		signals:    deps.Signals,
		publisher:  deps.Publisher,
		bus:        deps.Bus,
		cfg:        cfg,
		logger:     logger.Named("monitor"),
		now:        time.Now,
		candidates: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run выполняет цикл сразу и затем каждые CycleInterval до отмены контекста.
// Циклы не перекрываются; между ними применяются подтверждения покупок.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting position monitoring",
		zap.Duration("interval", r.cfg.CycleInterval),
		zap.Duration("debounce", r.cfg.DebounceWindow))

	ticker := time.NewTicker(r.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Error in monitoring loop", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.ErrorDelay):
			}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Position monitoring stopped")
				return nil
			case c := <-r.trader.Confirmations():
				r.Apply(ctx, c)
			case <-ticker.C:
				break wait
			}
		}
	}
}

// Apply применяет результат фоновой проверки покупки
func (r *Reconciler) Apply(ctx context.Context, c trader.Confirmation) {
	log := r.logger.With(
		zap.String("token", c.Candidate.Address),
		zap.String("symbol", c.Candidate.Symbol),
		zap.String("signature", c.Signature.String()))

	if c.Err != nil || c.Position == nil {
		log.Warn("Purchase not confirmed", zap.Error(c.Err))
		r.emit(events.NewBuyFailed(c.Candidate.Address, c.Candidate.Symbol, c.Err))
		return
	}

	pos := *c.Position
	now := r.now().UTC()
	pos.LastSeen = &now
	if err := r.store.Upsert(ctx, pos); err != nil {
		log.Error("Failed to save purchased position", zap.Error(err))
		return
	}
	delete(r.candidates, pos.Address)
	log.Info("Position opened",
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("amount", pos.PurchaseAmount))
	r.emit(events.NewPositionOpened(pos.Address, pos.Symbol, pos.EntryPrice, pos.PurchaseAmount, false, c.Signature.String()))

	if r.last != nil {
		snap := r.last.WithPosition(viewOf(pos, &market.Info{PriceUSD: pos.EntryPrice}, pos.PurchaseAmount))
		snap.LastUpdateTime = now
		r.publish(snap)
	}
}

// RunCycle выполняет один цикл сверки и возвращает опубликованный снимок
func (r *Reconciler) RunCycle(ctx context.Context) (snap *domain.Snapshot, err error) {
	start := r.now()
	log, done := logger.TrackPerformance(r.logger, "reconcile")
	defer done()
	defer func() {
		metrics.ObserveCycle(r.now().Sub(start), err)
	}()

	r.handleSignal(ctx, log)

	solPrice := r.oracle.GetPrice(ctx)
	lamports, err := r.chain.GetBalance(ctx, r.cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	holdings, err := r.chain.GetTokenHoldings(ctx, r.cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get token holdings: %w", err)
	}
	balances := aggregate(holdings)
	log.Debug("Wallet scanned",
		zap.Int("token_accounts", len(holdings)),
		zap.Int("tracked", len(r.store.All())))

	now := r.now().UTC()
	views := make(map[string]domain.PositionView)
	infos := make(map[string]*market.Info)

	for _, mint := range sortedKeys(balances) {
		balance := balances[mint]
		delete(r.candidates, mint)

		if pos, ok := r.store.Get(mint); ok {
			info := r.marketInfo(ctx, log, mint)
			infos[mint] = info
			views[mint] = viewOf(pos, info, balance)

			pos.LastSeen = &now
			pos.RemovalPending = false
			pos.RemovalStartTime = nil
			if err := r.store.Upsert(ctx, pos); err != nil {
				log.Warn("Failed to refresh position", zap.String("token", mint), zap.Error(err))
			}
			continue
		}

		if r.store.IsSold(mint) {
			continue
		}
		if pos, info, ok := r.adopt(ctx, log, mint, balance, now); ok {
			infos[mint] = info
			views[mint] = viewOf(pos, info, balance)
		}
	}

	for _, pos := range r.store.All() {
		if _, held := balances[pos.Address]; held {
			continue
		}
		r.handleMissing(ctx, log, pos, now, views)
	}

	for _, pos := range r.store.All() {
		if _, pending := r.candidates[pos.Address]; pending {
			continue
		}
		info := infos[pos.Address]
		d := strategy.Evaluate(pos, info, r.cfg.Thresholds)
		if !d.Sell {
			continue
		}

		plog := log.With(zap.String("token", pos.Address), zap.String("symbol", pos.Symbol))
		plog.Info("Sell trigger fired",
			zap.String("reason", string(d.Reason)),
			zap.String("price_change", fmt.Sprintf("%.2f%%", d.PriceChangePercent)),
			zap.String("liquidity_drop", fmt.Sprintf("%.2f%%", d.LiquidityDropPercent)))

		sold, err := r.trader.Sell(ctx, pos, true)
		if err != nil {
			plog.Error("Error executing sell", zap.Error(err))
			continue
		}
		if sold {
			delete(views, pos.Address)
			r.emit(events.NewPositionSold(pos.Address, pos.Symbol, d.PriceChangePercent, string(d.Reason)))
		}
	}

	snap = r.snapshot(views, lamports, solPrice, now)
	r.publish(snap)
	return snap, nil
}

// handleSignal обрабатывает ожидающий сигнал на покупку.
// Сигнал удаляется при любом исходе, кроме ошибки чтения файла.
func (r *Reconciler) handleSignal(ctx context.Context, log *zap.Logger) {
	if r.signals == nil {
		return
	}
	c, err := r.signals.Peek()
	switch {
	case errors.Is(err, signal.ErrInvalidSignal):
		log.Warn("Discarding invalid buy signal", zap.Error(err))
		r.consumeSignal(log)
		return
	case err != nil:
		log.Warn("Failed to read buy signal", zap.Error(err))
		return
	case c == nil:
		return
	}
	defer r.consumeSignal(log)

	slog := log.With(zap.String("token", c.Address), zap.String("symbol", c.Symbol))
	if r.store.Has(c.Address) {
		slog.Info("Token is already in active positions")
		return
	}

	slog.Info("New token selected for purchase", zap.String("name", c.Name))
	sig, err := r.trader.Buy(ctx, *c)
	if err != nil {
		slog.Warn("Buy rejected", zap.Error(err))
		r.emit(events.NewBuyFailed(c.Address, c.Symbol, err))
		return
	}
	slog.Info("Buy submitted, waiting for balance", zap.String("signature", sig.String()))
}

func (r *Reconciler) consumeSignal(log *zap.Logger) {
	if err := r.signals.Consume(); err != nil {
		log.Error("Failed to remove buy signal", zap.Error(err))
	}
}

// adopt добавляет токен, найденный в кошельке без записи о позиции
func (r *Reconciler) adopt(ctx context.Context, log *zap.Logger, mint string, balance float64, now time.Time) (position.Position, *market.Info, bool) {
	info := r.marketInfo(ctx, log, mint)
	if info == nil || info.PriceUSD <= 0 {
		log.Debug("Skipping unknown token without market data", zap.String("token", mint))
		return position.Position{}, nil, false
	}
	if r.metadata == nil {
		return position.Position{}, nil, false
	}
	md, err := r.metadata.GetTokenMetadata(ctx, mint)
	if err != nil || md == nil {
		log.Debug("Skipping unknown token without metadata", zap.String("token", mint), zap.Error(err))
		return position.Position{}, nil, false
	}

	pos := position.Position{
		Address:        mint,
		Symbol:         md.Symbol,
		Name:           md.Name,
		EntryPrice:     info.PriceUSD,
		EntryLiquidity: info.Liquidity,
		PurchaseAmount: balance,
		PurchaseTime:   now,
		LastSeen:       &now,
	}
	if err := r.store.Upsert(ctx, pos); err != nil {
		log.Error("Error processing unknown token", zap.String("token", mint), zap.Error(err))
		return position.Position{}, nil, false
	}
	log.Info("Added new token to active positions",
		zap.String("token", mint),
		zap.String("symbol", pos.Symbol),
		zap.Float64("balance", balance))
	r.emit(events.NewPositionOpened(mint, pos.Symbol, pos.EntryPrice, balance, true, ""))
	return pos, info, true
}

// handleMissing ведет кандидата на удаление для позиции, которой нет в кошельке
func (r *Reconciler) handleMissing(ctx context.Context, log *zap.Logger, pos position.Position, now time.Time, views map[string]domain.PositionView) {
	plog := log.With(zap.String("token", pos.Address), zap.String("symbol", pos.Symbol))

	since, pending := r.candidates[pos.Address]
	if !pending {
		r.candidates[pos.Address] = now
		pos.RemovalPending = true
		pos.RemovalStartTime = &now
		if err := r.store.Upsert(ctx, pos); err != nil {
			plog.Warn("Failed to mark position for removal", zap.Error(err))
		}
		plog.Info("Token not found in wallet, waiting before removal")
	} else if absent := now.Sub(since); absent > r.cfg.DebounceWindow {
		if err := r.store.Remove(ctx, pos.Address); err != nil {
			plog.Error("Failed to remove position", zap.Error(err))
			return
		}
		delete(r.candidates, pos.Address)
		plog.Info("Removing token from active positions - not found in wallet",
			zap.Duration("absent", absent))
		r.emit(events.NewPositionRemoved(pos.Address, pos.Symbol, absent))
		return
	}

	info := r.marketInfo(ctx, log, pos.Address)
	view := viewOf(pos, info, pos.PurchaseAmount)
	view.RemovalPending = true
	views[pos.Address] = view
}

func (r *Reconciler) marketInfo(ctx context.Context, log *zap.Logger, mint string) *market.Info {
	info, err := r.market.GetMarketInfo(ctx, mint)
	if err != nil {
		log.Warn("Could not fetch market info", zap.String("token", mint), zap.Error(err))
		return nil
	}
	return info
}

func (r *Reconciler) snapshot(views map[string]domain.PositionView, lamports uint64, solPrice float64, now time.Time) *domain.Snapshot {
	walletSOL, _ := decimal.NewFromInt(int64(lamports)).Shift(-9).Float64()

	// порядок хранилища: по времени покупки, затем по адресу
	positions := make([]domain.PositionView, 0, len(views))
	for _, pos := range r.store.All() {
		if v, ok := views[pos.Address]; ok {
			positions = append(positions, v)
		}
	}

	sold := r.store.AllSold()
	soldViews := make([]domain.SoldView, 0, len(sold))
	for _, s := range sold {
		soldViews = append(soldViews, domain.SoldView{
			Address:    s.Address,
			Symbol:     s.Symbol,
			Name:       s.Name,
			ProfitLoss: s.ProfitLossPercent,
			SoldAt:     s.SoldAt,
		})
	}

	return &domain.Snapshot{
		Positions:        positions,
		SoldPositions:    soldViews,
		WalletBalanceSOL: walletSOL,
		WalletBalanceUSD: walletSOL * solPrice,
		SOLPriceUSD:      solPrice,
		LastUpdateTime:   now,
	}
}

func (r *Reconciler) publish(snap *domain.Snapshot) {
	r.last = snap
	metrics.SetSnapshot(len(snap.Positions), snap.WalletBalanceSOL, snap.TotalValueUSD())

	if r.publisher != nil {
		// дашборд может быть недоступен, это не ошибка цикла
		_ = r.publisher.PublishSnapshot(snap)
	}
	r.emit(events.NewSnapshotPublished(snap))
	r.logger.Debug("Positions updated",
		zap.Int("active", len(snap.Positions)),
		zap.Int("sold", len(snap.SoldPositions)))
}

func (r *Reconciler) emit(ev events.Event) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(ev)
}

func viewOf(pos position.Position, info *market.Info, balance float64) domain.PositionView {
	v := domain.PositionView{
		Address:      pos.Address,
		Symbol:       pos.Symbol,
		Name:         pos.Name,
		Balance:      balance,
		PurchaseTime: pos.PurchaseTime,
	}
	if info != nil {
		v.MarketCap = info.MarketCap
		v.PriceUSD = info.PriceUSD
		v.PriceChange = strategy.PriceChangePercent(pos.EntryPrice, info.PriceUSD)
		v.PositionValue = balance * info.PriceUSD
	}
	return v
}

// aggregate суммирует положительные остатки по mint
func aggregate(holdings []blockchain.TokenHolding) map[string]float64 {
	out := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		if h.UIAmount <= 0 {
			continue
		}
		out[h.Mint.String()] += h.UIAmount
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// internal/monitor/reconciler_test.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/events"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/signal"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/jsonfile"
	"github.com/rovshanmuradov/solana-autotrader/internal/strategy"
	"github.com/rovshanmuradov/solana-autotrader/internal/trader"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	r       *Reconciler
	store   *position.Store
	chain   *stubChain
	market  *stubMarket
	trader  *MockTrader
	signals *stubSignals
	pub     *recordingPublisher
	bus     *events.Bus
	clock   time.Time

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   t0,
		chain:   &stubChain{lamports: 2_500_000_000},
		market:  newStubMarket(),
		trader:  newMockTrader(),
		signals: &stubSignals{},
		pub:     &recordingPublisher{},
	}
	now := func() time.Time { return f.clock }

	st, err := jsonfile.NewStorage(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	f.store = position.NewStore(st, zaptest.NewLogger(t), position.WithClock(now))

	f.bus = events.NewBus(zaptest.NewLogger(t), 64)
	for _, typ := range []events.EventType{
		events.PositionOpened, events.PositionRemoved, events.PositionSold,
		events.BuyFailed, events.SnapshotPublished,
	} {
		f.bus.SubscribeFunc(typ, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		})
	}
	t.Cleanup(func() { _ = f.bus.Shutdown(context.Background()) })

	f.r = NewReconciler(Deps{
		Store:     f.store,
		Trader:    f.trader,
		Chain:     f.chain,
		Oracle:    fixedOracle(150),
		Market:    f.market,
		Metadata:  f.market,
		Signals:   f.signals,
		Publisher: f.pub,
		Bus:       f.bus,
	}, Config{
		Owner: solana.NewWallet().PublicKey(),
		Thresholds: strategy.Thresholds{
			TakeProfitPercentage:    40,
			StopLossPercentage:      30,
			LiquidityDropPercentage: 50,
		},
		CycleInterval:  20 * time.Millisecond,
		DebounceWindow: 30 * time.Second,
		ErrorDelay:     10 * time.Millisecond,
	}, zaptest.NewLogger(t), WithClock(now))
	return f
}

// drained останавливает шину и возвращает доставленные события
func (f *fixture) drained(t *testing.T) []events.Event {
	t.Helper()
	require.NoError(t, f.bus.Shutdown(context.Background()))
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func countOf(evs []events.Event, typ events.EventType) int {
	n := 0
	for _, e := range evs {
		if e.Type() == typ {
			n++
		}
	}
	return n
}

func newMint() string {
	return solana.NewWallet().PublicKey().String()
}

func holding(mint string, ui float64) blockchain.TokenHolding {
	return blockchain.TokenHolding{
		Mint:     solana.MustPublicKeyFromBase58(mint),
		Amount:   uint64(ui * 1e6),
		UIAmount: ui,
		Decimals: 6,
	}
}

func (f *fixture) seed(t *testing.T, addr string) position.Position {
	t.Helper()
	pos := position.Position{
		Address:        addr,
		Symbol:         "AAA",
		Name:           "Token A",
		EntryPrice:     0.5,
		EntryLiquidity: 20000,
		PurchaseAmount: 100,
		PurchaseTime:   t0.Add(-time.Hour),
	}
	require.NoError(t, f.store.Upsert(context.Background(), pos))
	return pos
}

func (f *fixture) cycleAt(t *testing.T, at time.Time) (snapPositions map[string]bool) {
	t.Helper()
	f.clock = at
	snap, err := f.r.RunCycle(context.Background())
	require.NoError(t, err)
	out := make(map[string]bool, len(snap.Positions))
	for _, v := range snap.Positions {
		out[v.Address] = v.RemovalPending
	}
	return out
}

func TestRunCycle_AbsentPositionDebounced(t *testing.T) {
	f := newFixture(t)
	a := newMint()
	f.seed(t, a)
	f.market.set(a, &market.Info{PriceUSD: 0.5, Liquidity: 20000})

	views := f.cycleAt(t, t0)
	assert.True(t, f.store.Has(a), "отсутствие в течение одного цикла не удаляет позицию")
	assert.True(t, views[a], "позиция показывается как ожидающая удаления")
	pos, _ := f.store.Get(a)
	assert.True(t, pos.RemovalPending)
	require.NotNil(t, pos.RemovalStartTime)
	assert.Equal(t, t0, *pos.RemovalStartTime)

	f.cycleAt(t, t0.Add(30*time.Second))
	assert.True(t, f.store.Has(a), "ровно 30 секунд - еще не удаляем")

	views = f.cycleAt(t, t0.Add(31*time.Second))
	assert.False(t, f.store.Has(a))
	assert.False(t, f.store.IsSold(a), "удаление не создает запись о продаже")
	assert.NotContains(t, views, a)

	f.cycleAt(t, t0.Add(60*time.Second))

	evs := f.drained(t)
	assert.Equal(t, 1, countOf(evs, events.PositionRemoved))
	f.trader.AssertNotCalled(t, "Sell", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_ReappearanceResetsDebounce(t *testing.T) {
	f := newFixture(t)
	a := newMint()
	f.seed(t, a)

	f.cycleAt(t, t0)

	f.chain.hold(holding(a, 100))
	views := f.cycleAt(t, t0.Add(20*time.Second))
	assert.False(t, views[a])
	pos, _ := f.store.Get(a)
	assert.False(t, pos.RemovalPending)
	assert.Nil(t, pos.RemovalStartTime)
	require.NotNil(t, pos.LastSeen)
	assert.Equal(t, t0.Add(20*time.Second), *pos.LastSeen)

	f.chain.hold()
	f.cycleAt(t, t0.Add(40*time.Second))
	f.cycleAt(t, t0.Add(65*time.Second))
	assert.True(t, f.store.Has(a), "окно отсчитывается заново после возвращения токена")

	f.cycleAt(t, t0.Add(71*time.Second))
	assert.False(t, f.store.Has(a))
}

func TestRunCycle_AdoptsUnknownHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adopted, noMeta, soldBefore := newMint(), newMint(), newMint()
	f.market.set(adopted, &market.Info{PriceUSD: 2, Liquidity: 5000, MarketCap: 1e6})
	f.market.meta[adopted] = &market.Metadata{Name: "Bonk", Symbol: "BONK"}
	f.market.set(noMeta, &market.Info{PriceUSD: 1, Liquidity: 5000})
	f.market.set(soldBefore, &market.Info{PriceUSD: 1, Liquidity: 5000})
	f.market.meta[soldBefore] = &market.Metadata{Name: "Old", Symbol: "OLD"}

	f.seed(t, soldBefore)
	require.NoError(t, f.store.RecordSale(ctx, soldBefore, 12))

	f.chain.hold(holding(adopted, 250), holding(noMeta, 10), holding(soldBefore, 5))
	f.clock = t0
	snap, err := f.r.RunCycle(ctx)
	require.NoError(t, err)

	pos, ok := f.store.Get(adopted)
	require.True(t, ok)
	assert.Equal(t, "BONK", pos.Symbol)
	assert.Equal(t, "Bonk", pos.Name)
	assert.Equal(t, 2.0, pos.EntryPrice)
	assert.Equal(t, 5000.0, pos.EntryLiquidity)
	assert.Equal(t, 250.0, pos.PurchaseAmount)
	assert.Equal(t, t0, pos.PurchaseTime)

	view, ok := snap.Position(adopted)
	require.True(t, ok)
	assert.Equal(t, 0.0, view.PriceChange)
	assert.Equal(t, 500.0, view.PositionValue)
	assert.Equal(t, 1e6, view.MarketCap)

	assert.False(t, f.store.Has(noMeta), "без метаданных токен не принимается")
	assert.False(t, f.store.Has(soldBefore), "проданные токены не принимаются повторно")
	assert.Len(t, snap.Positions, 1)

	assert.Equal(t, 2.5, snap.WalletBalanceSOL)
	assert.Equal(t, 375.0, snap.WalletBalanceUSD)
	require.Len(t, snap.SoldPositions, 1)
	assert.Equal(t, soldBefore, snap.SoldPositions[0].Address)

	evs := f.drained(t)
	require.Equal(t, 1, countOf(evs, events.PositionOpened))
	for _, e := range evs {
		if opened, ok := e.(*events.PositionOpenedEvent); ok {
			assert.True(t, opened.Adopted)
		}
	}
}

func TestRunCycle_SnapshotKeepsPurchaseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, newer := newMint(), newMint()
	for addr, bought := range map[string]time.Time{
		newer: t0.Add(-time.Minute),
		older: t0.Add(-2 * time.Hour),
	} {
		require.NoError(t, f.store.Upsert(ctx, position.Position{
			Address:        addr,
			Symbol:         "AAA",
			Name:           "Token A",
			EntryPrice:     0.5,
			EntryLiquidity: 20000,
			PurchaseAmount: 100,
			PurchaseTime:   bought,
		}))
		f.market.set(addr, &market.Info{PriceUSD: 0.5, Liquidity: 20000})
	}
	f.chain.hold(holding(newer, 100), holding(older, 100))

	f.clock = t0
	snap, err := f.r.RunCycle(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Positions, 2)
	assert.Equal(t, older, snap.Positions[0].Address)
	assert.Equal(t, newer, snap.Positions[1].Address)
	assert.NotNil(t, snap.SoldPositions, "пустая история уходит как []")
}

func TestRunCycle_SellTriggers(t *testing.T) {
	tests := []struct {
		name   string
		info   market.Info
		reason strategy.Reason
	}{
		{"take profit", market.Info{PriceUSD: 0.75, Liquidity: 20000}, strategy.ReasonTakeProfit},
		{"stop loss", market.Info{PriceUSD: 0.3, Liquidity: 20000}, strategy.ReasonStopLoss},
		{"liquidity drop", market.Info{PriceUSD: 0.5, Liquidity: 8000}, strategy.ReasonLiquidityDrop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			a := newMint()
			f.seed(t, a)
			info := tt.info
			f.market.set(a, &info)
			f.chain.hold(holding(a, 100))

			pnl := strategy.PriceChangePercent(0.5, tt.info.PriceUSD)
			f.trader.On("Sell", mock.Anything, mock.MatchedBy(func(p position.Position) bool {
				return p.Address == a
			}), true).Return(true, nil).Run(func(mock.Arguments) {
				require.NoError(t, f.store.RecordSale(ctx, a, pnl))
			}).Once()

			f.clock = t0
			snap, err := f.r.RunCycle(ctx)
			require.NoError(t, err)
			f.trader.AssertExpectations(t)

			_, held := snap.Position(a)
			assert.False(t, held)
			require.Len(t, snap.SoldPositions, 1)
			assert.InDelta(t, pnl, snap.SoldPositions[0].ProfitLoss, 1e-9)

			var sold *events.PositionSoldEvent
			for _, e := range f.drained(t) {
				if s, ok := e.(*events.PositionSoldEvent); ok {
					sold = s
				}
			}
			require.NotNil(t, sold)
			assert.Equal(t, string(tt.reason), sold.Reason)
		})
	}
}

func TestRunCycle_NoTriggerNoSell(t *testing.T) {
	f := newFixture(t)
	a := newMint()
	f.seed(t, a)
	f.market.set(a, &market.Info{PriceUSD: 0.55, Liquidity: 19000})
	f.chain.hold(holding(a, 100))

	views := f.cycleAt(t, t0)
	assert.Contains(t, views, a)
	f.trader.AssertNotCalled(t, "Sell", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_SellFailureKeepsPosition(t *testing.T) {
	f := newFixture(t)
	a := newMint()
	f.seed(t, a)
	f.market.set(a, &market.Info{PriceUSD: 1, Liquidity: 20000})
	f.chain.hold(holding(a, 100))
	f.trader.On("Sell", mock.Anything, mock.Anything, true).Return(false, errors.New("all endpoints exhausted"))

	views := f.cycleAt(t, t0)
	assert.Contains(t, views, a)
	assert.True(t, f.store.Has(a))
}

func TestRunCycle_SignalConsumedOnAnyOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected buy", func(t *testing.T) {
		f := newFixture(t)
		c := signal.Candidate{Address: newMint(), Name: "Cat", Symbol: "CAT"}
		f.signals.candidate = &c
		f.trader.On("Buy", mock.Anything, c).Return(solana.Signature{}, trader.ErrInsufficientLiquidity).Once()

		_, err := f.r.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.signals.consumed)
		assert.False(t, f.store.Has(c.Address))
		assert.Equal(t, 1, countOf(f.drained(t), events.BuyFailed))
	})

	t.Run("submitted buy", func(t *testing.T) {
		f := newFixture(t)
		c := signal.Candidate{Address: newMint(), Name: "Cat", Symbol: "CAT"}
		f.signals.candidate = &c
		f.trader.On("Buy", mock.Anything, c).Return(solana.Signature{1}, nil).Once()

		_, err := f.r.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.signals.consumed)
		assert.False(t, f.store.Has(c.Address), "позиция появляется только после подтверждения")
		f.trader.AssertExpectations(t)
	})

	t.Run("already active", func(t *testing.T) {
		f := newFixture(t)
		a := newMint()
		f.seed(t, a)
		f.chain.hold(holding(a, 100))
		f.signals.candidate = &signal.Candidate{Address: a, Name: "Token A", Symbol: "AAA"}

		_, err := f.r.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.signals.consumed)
		f.trader.AssertNotCalled(t, "Buy", mock.Anything, mock.Anything)
	})

	t.Run("invalid signal", func(t *testing.T) {
		f := newFixture(t)
		f.signals.err = signal.ErrInvalidSignal

		_, err := f.r.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.signals.consumed)
	})

	t.Run("unreadable signal kept", func(t *testing.T) {
		f := newFixture(t)
		f.signals.err = errors.New("permission denied")

		_, err := f.r.RunCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, f.signals.consumed)
	})
}

func TestRunCycle_WalletErrorAbortsCycle(t *testing.T) {
	f := newFixture(t)
	f.chain.err = errors.New("all endpoints exhausted")

	_, err := f.r.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, f.pub.count())
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cycleAt(t, t0)
	require.Equal(t, 1, f.pub.count())

	failed := signal.Candidate{Address: newMint(), Name: "Bad", Symbol: "BAD"}
	f.r.Apply(ctx, trader.Confirmation{Candidate: failed, Err: trader.ErrVerificationTimeout})
	assert.False(t, f.store.Has(failed.Address))

	ok := signal.Candidate{Address: newMint(), Name: "Good", Symbol: "GOOD"}
	f.r.Apply(ctx, trader.Confirmation{
		Signature: solana.Signature{7},
		Candidate: ok,
		Position: &position.Position{
			Address:        ok.Address,
			Symbol:         ok.Symbol,
			Name:           ok.Name,
			EntryPrice:     0.01,
			EntryLiquidity: 40000,
			PurchaseAmount: 5000,
			PurchaseTime:   t0,
		},
	})
	assert.True(t, f.store.Has(ok.Address))
	assert.Equal(t, 2, f.pub.count(), "снимок публикуется после подтвержденной покупки")
	last := f.pub.latest()
	require.Len(t, last.Positions, 1)
	assert.Equal(t, ok.Address, last.Positions[0].Address)
	assert.Equal(t, 50.0, last.Positions[0].PositionValue)

	evs := f.drained(t)
	assert.Equal(t, 1, countOf(evs, events.BuyFailed))
	assert.Equal(t, 1, countOf(evs, events.PositionOpened))
}

func TestRun_AppliesConfirmationsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.r.Run(ctx) }()

	addr := newMint()
	f.trader.confirmations <- trader.Confirmation{
		Candidate: signal.Candidate{Address: addr, Name: "Run", Symbol: "RUN"},
		Position: &position.Position{
			Address:        addr,
			Symbol:         "RUN",
			Name:           "Run",
			EntryPrice:     1,
			PurchaseAmount: 10,
			PurchaseTime:   t0,
		},
	}

	require.Eventually(t, func() bool { return f.store.Has(addr) }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.pub.count() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

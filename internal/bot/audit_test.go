// internal/bot/audit_test.go
package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/solana-autotrader/internal/domain"
	"github.com/rovshanmuradov/solana-autotrader/internal/events"
)

func TestSubscribeAudit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	subs := subscribeAudit(bus, zap.New(core))
	require.Len(t, subs, 5)

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, events.NewPositionOpened("Mint1", "AAA", 0.5, 100, false, "sig")))
	require.NoError(t, bus.PublishSync(ctx, events.NewPositionSold("Mint1", "AAA", 41.5, "take_profit")))
	require.NoError(t, bus.PublishSync(ctx, events.NewPositionRemoved("Mint2", "BBB", 31*time.Second)))
	require.NoError(t, bus.PublishSync(ctx, events.NewBuyFailed("Mint3", "CCC", errors.New("no route"))))
	require.NoError(t, bus.PublishSync(ctx, events.NewSnapshotPublished(&domain.Snapshot{
		Positions: []domain.PositionView{
			{Address: "Mint4", PositionValue: 30},
			{Address: "Mint5", PositionValue: 12.5},
		},
		WalletBalanceSOL: 1.5,
	})))
	require.NoError(t, bus.Shutdown(ctx))

	entries := logs.FilterLoggerName("audit").All()
	require.Len(t, entries, 5)
	assert.Equal(t, "Position opened", entries[0].Message)
	assert.Equal(t, "41.50%", entries[1].ContextMap()["pnl"])
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "no route", entries[3].ContextMap()["error"])
	assert.Equal(t, zapcore.DebugLevel, entries[4].Level)
	assert.Equal(t, int64(2), entries[4].ContextMap()["positions"])
	assert.Equal(t, 42.5, entries[4].ContextMap()["positions_value_usd"])

	for _, s := range subs {
		s.Unsubscribe()
	}
	assert.Empty(t, bus.Stats().HandlersPerType)
}

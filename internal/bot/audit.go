// internal/bot/audit.go
package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/events"
)

// subscribeAudit пишет события жизненного цикла позиций в отдельный логгер "audit"
func subscribeAudit(bus *events.Bus, logger *zap.Logger) []events.Subscription {
	log := logger.Named("audit")

	handle := func(_ context.Context, e events.Event) error {
		fields := []zap.Field{
			zap.String("event_id", e.ID()),
			zap.Time("at", e.Timestamp()),
		}
		switch ev := e.(type) {
		case *events.PositionOpenedEvent:
			log.Info("Position opened", append(fields,
				zap.String("token", ev.Address),
				zap.String("symbol", ev.Symbol),
				zap.Float64("entry_price", ev.EntryPrice),
				zap.Float64("amount", ev.Amount),
				zap.Bool("adopted", ev.Adopted),
				zap.String("signature", ev.Signature))...)
		case *events.PositionSoldEvent:
			log.Info("Position sold", append(fields,
				zap.String("token", ev.Address),
				zap.String("symbol", ev.Symbol),
				zap.String("pnl", fmt.Sprintf("%.2f%%", ev.ProfitLoss)),
				zap.String("reason", ev.Reason))...)
		case *events.PositionRemovedEvent:
			log.Info("Position removed", append(fields,
				zap.String("token", ev.Address),
				zap.String("symbol", ev.Symbol),
				zap.Duration("absent", ev.Absent))...)
		case *events.BuyFailedEvent:
			log.Warn("Buy failed", append(fields,
				zap.String("token", ev.Address),
				zap.String("symbol", ev.Symbol),
				zap.String("error", ev.Error))...)
		case *events.SnapshotPublishedEvent:
			if ev.Snapshot == nil {
				return nil
			}
			log.Debug("Snapshot published", append(fields,
				zap.Int("positions", len(ev.Snapshot.Positions)),
				zap.Int("sold", len(ev.Snapshot.SoldPositions)),
				zap.Float64("positions_value_usd", ev.Snapshot.TotalValueUSD()),
				zap.Float64("wallet_sol", ev.Snapshot.WalletBalanceSOL))...)
		default:
			return fmt.Errorf("unexpected event %T", e)
		}
		return nil
	}

	return []events.Subscription{
		bus.SubscribeFunc(events.PositionOpened, handle),
		bus.SubscribeFunc(events.PositionSold, handle),
		bus.SubscribeFunc(events.PositionRemoved, handle),
		bus.SubscribeFunc(events.BuyFailed, handle),
		bus.SubscribeFunc(events.SnapshotPublished, handle),
	}
}

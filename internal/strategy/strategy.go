// internal/strategy/strategy.go
package strategy

import (
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
)

// Reason объясняет, какое правило сработало
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonLiquidityDrop Reason = "liquidity_drop"
	ReasonTakeProfit    Reason = "take_profit"
	ReasonStopLoss      Reason = "stop_loss"
)

// Thresholds - пороги срабатывания в процентах (положительные числа)
type Thresholds struct {
	TakeProfitPercentage    float64
	StopLossPercentage      float64
	LiquidityDropPercentage float64
}

// Decision - результат оценки одной позиции
type Decision struct {
	Sell                 bool
	Reason               Reason
	PriceChangePercent   float64
	LiquidityDropPercent float64
}

// PriceChangePercent считает (current-entry)/entry×100; 0 при нулевой цене входа.
func PriceChangePercent(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (current - entry) / entry * 100
}

// LiquidityDropPercent считает (entry-current)/entry×100; 0 при неизвестной исходной ликвидности.
func LiquidityDropPercent(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (entry - current) / entry * 100
}

// Evaluate применяет правила по порядку: аварийный выход по ликвидности,
// тейк-профит, стоп-лосс. Срабатывает первое подходящее правило.
func Evaluate(pos position.Position, info *market.Info, t Thresholds) Decision {
	if info == nil {
		return Decision{}
	}

	d := Decision{
		PriceChangePercent:   PriceChangePercent(pos.EntryPrice, info.PriceUSD),
		LiquidityDropPercent: LiquidityDropPercent(pos.EntryLiquidity, info.Liquidity),
	}

	switch {
	case pos.EntryLiquidity > 0 && d.LiquidityDropPercent > t.LiquidityDropPercentage:
		d.Sell, d.Reason = true, ReasonLiquidityDrop
	case d.PriceChangePercent >= t.TakeProfitPercentage:
		d.Sell, d.Reason = true, ReasonTakeProfit
	case d.PriceChangePercent <= -t.StopLossPercentage:
		d.Sell, d.Reason = true, ReasonStopLoss
	}
	return d
}

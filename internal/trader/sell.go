// internal/trader/sell.go
package trader

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-autotrader/internal/logger"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
	"github.com/rovshanmuradov/solana-autotrader/internal/strategy"
	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
)

// Sell продает весь остаток токена в SOL.
// Переход позиции в историю продаж фиксируется, если trigger=true или
// после отправки баланс токена уже нулевой. Возвращает true при фиксации продажи.
func (e *Executor) Sell(ctx context.Context, pos position.Position, trigger bool) (sold bool, err error) {
	log, done := logger.TrackPerformance(e.logger, "sell")
	defer done()
	log = log.With(
		zap.String("token", pos.Address),
		zap.String("symbol", pos.Symbol))
	start := e.now()
	defer func() {
		metrics.RecordTransaction(models.SideSell, e.now().Sub(start), err)
	}()

	mint, err := solana.PublicKeyFromBase58(pos.Address)
	if err != nil {
		return false, fmt.Errorf("invalid token address: %w", err)
	}

	log.Info("Executing sell order...")

	holding, err := e.chain.GetTokenBalance(ctx, e.wallet.PublicKey, mint)
	if err != nil {
		return false, fmt.Errorf("failed to get token balance: %w", err)
	}
	if holding.Amount == 0 {
		log.Warn("Token balance is zero")
		return false, ErrZeroBalance
	}

	info, err := e.market.GetMarketInfo(ctx, pos.Address)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNoMarketData, err)
	}
	if info == nil {
		return false, ErrNoMarketData
	}
	profitLoss := strategy.PriceChangePercent(pos.EntryPrice, info.PriceUSD)

	quote, err := e.swapper.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   pos.Address,
		OutputMint:  market.WrappedSOLMint,
		Amount:      holding.Amount,
		SlippageBps: e.cfg.SellSlippageBps,
	})
	if err != nil {
		return false, err
	}
	outAmount, err := quote.OutAmountUnits()
	if err != nil {
		return false, err
	}
	if outAmount < MinSellOutLamports {
		log.Warn("Output amount is too low to execute sell", zap.Uint64("out_lamports", outAmount))
		return false, fmt.Errorf("%w: %d lamports", ErrOutputTooLow, outAmount)
	}

	tx, err := e.swapper.BuildSwap(ctx, quote, e.wallet.PublicKey, jupiter.AutoPriorityFee())
	if err != nil {
		return false, err
	}
	if err := e.sign(tx); err != nil {
		return false, fmt.Errorf("failed to sign sell transaction: %w", err)
	}

	log.Info("Sending sell transaction...")
	sig, err := e.chain.SubmitTransaction(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("failed to submit sell transaction: %w", err)
	}
	e.record(ctx, &models.Transaction{
		Signature:   sig.String(),
		Side:        models.SideSell,
		Mint:        pos.Address,
		Symbol:      pos.Symbol,
		AmountIn:    holding.Amount,
		ExpectedOut: outAmount,
		Status:      models.TxSubmitted,
	})

	if !trigger && !e.balanceGone(ctx, log, mint) {
		log.Info("Sell submitted, balance still present", zap.String("signature", sig.String()))
		return false, nil
	}

	if err := e.positions.RecordSale(ctx, pos.Address, profitLoss); err != nil {
		return false, fmt.Errorf("failed to record sale: %w", err)
	}

	log.Info("Sale successful",
		zap.String("signature", sig.String()),
		zap.String("pnl", fmt.Sprintf("%.2f%%", profitLoss)))
	return true, nil
}

func (e *Executor) balanceGone(ctx context.Context, log *zap.Logger, mint solana.PublicKey) bool {
	h, err := e.chain.GetTokenBalance(ctx, e.wallet.PublicKey, mint)
	if err != nil {
		log.Warn("Post-sale balance check failed", zap.Error(err))
		return false
	}
	return h.Amount == 0
}

// internal/trader/buy.go
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-autotrader/internal/logger"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/signal"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
)

// Confirmation - итог фоновой проверки покупки.
// Position заполнен при успехе, Err - при неудаче.
type Confirmation struct {
	Signature solana.Signature
	Candidate signal.Candidate
	Position  *position.Position
	Err       error
}

var errBalanceNotYet = errors.New("token balance not found yet")

// Buy покупает токен за AmountSOL. Подпись возвращается сразу после отправки;
// позиция появляется только после того, как фоновая проверка увидит баланс.
func (e *Executor) Buy(ctx context.Context, c signal.Candidate) (solana.Signature, error) {
	log, done := logger.TrackPerformance(e.logger, "buy")
	defer done()
	log = log.With(
		zap.String("token", c.Address),
		zap.String("symbol", c.Symbol))
	start := e.now()

	if e.positions.Has(c.Address) {
		log.Info("Token is already in active positions")
		return solana.Signature{}, ErrAlreadyActive
	}

	mint, err := solana.PublicKeyFromBase58(c.Address)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid token address: %w", err)
	}

	info, err := e.market.GetMarketInfo(ctx, c.Address)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrNoMarketData, err)
	}
	if info == nil || info.PriceUSD <= 0 {
		return solana.Signature{}, ErrNoMarketData
	}
	if info.Liquidity < e.cfg.MinLiquidityUSD {
		log.Warn("Token has insufficient liquidity",
			zap.Float64("liquidity", info.Liquidity),
			zap.Float64("min_liquidity", e.cfg.MinLiquidityUSD))
		return solana.Signature{}, ErrInsufficientLiquidity
	}

	if err := e.checkSymbol(ctx, log, c); err != nil {
		return solana.Signature{}, err
	}

	log.Info("Initiating purchase",
		zap.String("name", c.Name),
		zap.Float64("amount_sol", e.cfg.AmountSOL),
		zap.Float64("price_usd", info.PriceUSD),
		zap.Float64("liquidity", info.Liquidity))

	amountIn := solToLamports(e.cfg.AmountSOL)
	quote, err := e.swapper.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   market.WrappedSOLMint,
		OutputMint:  c.Address,
		Amount:      amountIn,
		SlippageBps: e.cfg.SlippageBps,
	})
	if errors.Is(err, jupiter.ErrEmptyRoute) {
		return solana.Signature{}, ErrNoRoute
	}
	if err != nil {
		return solana.Signature{}, err
	}
	if out := quote.FinalOutputMint(); out != c.Address {
		log.Error("Route output mint mismatch", zap.String("route_output", out))
		return solana.Signature{}, fmt.Errorf("%w: expected %s, got %s", ErrRouteMismatch, c.Address, out)
	}

	tx, err := e.swapper.BuildSwap(ctx, quote, e.wallet.PublicKey, jupiter.PriorityFee{
		Lamports: solToLamports(e.cfg.PriorityFeeSOL),
	})
	if err != nil {
		return solana.Signature{}, err
	}
	if err := e.sign(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign buy transaction: %w", err)
	}

	log.Info("Sending buy transaction...")
	sig, err := e.chain.SubmitTransaction(ctx, tx)
	if err != nil {
		metrics.RecordTransaction(models.SideBuy, e.now().Sub(start), err)
		return solana.Signature{}, fmt.Errorf("failed to submit buy transaction: %w", err)
	}

	expectedOut, _ := quote.OutAmountUnits()
	e.record(ctx, &models.Transaction{
		Signature:   sig.String(),
		Side:        models.SideBuy,
		Mint:        c.Address,
		Symbol:      c.Symbol,
		AmountIn:    amountIn,
		ExpectedOut: expectedOut,
		Status:      models.TxSubmitted,
	})
	log.Info("Buy transaction submitted", zap.String("signature", sig.String()))

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.trackConfirmation(ctx, log, sig, c)
	}()
	go func() {
		defer e.wg.Done()
		e.verifyPurchase(ctx, log, sig, c, mint, *info, start)
	}()

	return sig, nil
}

// checkSymbol сверяет символ сигнала с метаданными Jupiter, если они есть
func (e *Executor) checkSymbol(ctx context.Context, log *zap.Logger, c signal.Candidate) error {
	if e.metadata == nil {
		return nil
	}
	md, err := e.metadata.GetTokenMetadata(ctx, c.Address)
	if err != nil {
		log.Warn("Token metadata unavailable, skipping symbol check", zap.Error(err))
		return nil
	}
	if md == nil || md.Symbol == "" {
		return nil
	}
	if !sameSymbol(md.Symbol, c.Symbol) {
		log.Error("Token symbol mismatch", zap.String("metadata_symbol", md.Symbol))
		return fmt.Errorf("%w: expected %s, got %s", ErrSymbolMismatch, c.Symbol, md.Symbol)
	}
	return nil
}

// trackConfirmation только логирует результат транзакции в сети и обновляет журнал
func (e *Executor) trackConfirmation(ctx context.Context, log *zap.Logger, sig solana.Signature, c signal.Candidate) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	tx := &models.Transaction{Signature: sig.String(), Side: models.SideBuy, Mint: c.Address, Symbol: c.Symbol}
	err := e.chain.WaitForConfirmation(ctx, sig)
	switch {
	case err == nil:
		log.Info("Transaction confirmed", zap.String("signature", sig.String()))
		tx.Status = models.TxConfirmed
	case errors.Is(err, context.Canceled):
		return
	default:
		log.Error("Error confirming transaction", zap.String("signature", sig.String()), zap.Error(err))
		tx.Status = models.TxFailed
		tx.Error = err.Error()
	}
	e.record(context.WithoutCancel(ctx), tx)
}

// verifyPurchase опрашивает баланс токена каждые VerifyInterval, не более VerifyAttempts раз
func (e *Executor) verifyPurchase(ctx context.Context, log *zap.Logger, sig solana.Signature, c signal.Candidate, mint solana.PublicKey, info market.Info, start time.Time) {
	holding, err := backoff.Retry(ctx, func() (blockchain.TokenHolding, error) {
		h, err := e.chain.GetTokenBalance(ctx, e.wallet.PublicKey, mint)
		if err != nil {
			log.Debug("Error checking purchase", zap.Error(err))
			return h, err
		}
		if h.UIAmount <= 0 {
			return h, errBalanceNotYet
		}
		return h, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.VerifyInterval)),
		backoff.WithMaxTries(uint(e.cfg.VerifyAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if ctx.Err() != nil {
		return
	}

	msg := Confirmation{Signature: sig, Candidate: c}
	if err != nil {
		log.Error("Purchase verification failed", zap.Int("attempts", e.cfg.VerifyAttempts), zap.Error(err))
		msg.Err = ErrVerificationTimeout
	} else {
		name, symbol := c.Name, c.Symbol
		if name == "" {
			name = "Unknown"
		}
		if symbol == "" {
			symbol = "Unknown"
		}
		msg.Position = &position.Position{
			Address:        c.Address,
			Symbol:         symbol,
			Name:           name,
			EntryPrice:     info.PriceUSD,
			EntryLiquidity: info.Liquidity,
			PurchaseAmount: holding.UIAmount,
			PurchaseTime:   e.now().UTC(),
		}
		log.Info("Purchase successful", zap.Float64("balance", holding.UIAmount))
	}
	metrics.RecordTransaction(models.SideBuy, e.now().Sub(start), msg.Err)

	select {
	case e.confirmations <- msg:
	case <-ctx.Done():
	}
}

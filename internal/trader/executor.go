// internal/trader/executor.go
package trader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
	"github.com/rovshanmuradov/solana-autotrader/internal/wallet"
)

// MinSellOutLamports - минимальный выход продажи; меньшие котировки не исполняются
const MinSellOutLamports = 10_000

const (
	DefaultVerifyInterval = 3 * time.Second
	DefaultVerifyAttempts = 10
	DefaultConfirmTimeout = 90 * time.Second

	confirmationBuffer = 16
)

var (
	ErrAlreadyActive         = errors.New("token is already an active position")
	ErrNoMarketData          = errors.New("could not fetch token market data")
	ErrInsufficientLiquidity = errors.New("token has insufficient liquidity")
	ErrSymbolMismatch        = errors.New("token symbol mismatch")
	ErrNoRoute               = errors.New("no valid route plan received")
	ErrRouteMismatch         = errors.New("route output mint mismatch")
	ErrVerificationTimeout   = errors.New("purchase verification failed: no token balance after maximum retries")
	ErrZeroBalance           = errors.New("token balance is zero")
	ErrOutputTooLow          = errors.New("sell output amount is too low")
)

// Swapper строит свопы (Jupiter)
type Swapper interface {
	GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, owner solana.PublicKey, fee jupiter.PriorityFee) (*solana.Transaction, error)
}

// Positions - часть хранилища позиций, нужная исполнителю
type Positions interface {
	Has(address string) bool
	RecordSale(ctx context.Context, address string, profitLossPercent float64) error
}

// Journal сохраняет историю отправленных транзакций
type Journal interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
}

// Config - параметры торговли
type Config struct {
	AmountSOL       float64
	SlippageBps     int
	SellSlippageBps int
	PriorityFeeSOL  float64
	MinLiquidityUSD float64

	VerifyInterval time.Duration
	VerifyAttempts int
	ConfirmTimeout time.Duration
}

// Deps - внешние зависимости исполнителя
type Deps struct {
	Chain     blockchain.Client
	Swapper   Swapper
	Market    market.Service
	Metadata  market.MetadataService
	Positions Positions
	Journal   Journal
	Wallet    *wallet.Wallet
}

// Executor выполняет покупки и продажи через Jupiter.
// Подтверждение покупки идет в фоне; результат приходит сообщением в Confirmations().
type Executor struct {
	chain     blockchain.Client
	swapper   Swapper
	market    market.Service
	metadata  market.MetadataService
	positions Positions
	journal   Journal
	wallet    *wallet.Wallet

	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	confirmations chan Confirmation
	wg            sync.WaitGroup
}

type Option func(*Executor)

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(deps Deps, cfg Config, logger *zap.Logger, opts ...Option) *Executor {
	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = DefaultVerifyInterval
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = DefaultVerifyAttempts
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}

	e := &Executor{
		chain:         deps.Chain,
		swapper:       deps.Swapper,
		market:        deps.Market,
		metadata:      deps.Metadata,
		positions:     deps.Positions,
		journal:       deps.Journal,
		wallet:        deps.Wallet,
		cfg:           cfg,
		logger:        logger.Named("trader"),
		now:           time.Now,
		confirmations: make(chan Confirmation, confirmationBuffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Confirmations - канал результатов фоновой проверки покупок
func (e *Executor) Confirmations() <-chan Confirmation {
	return e.confirmations
}

// Wait дожидается завершения фоновых задач подтверждения
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Owner возвращает публичный ключ кошелька
func (e *Executor) Owner() solana.PublicKey {
	return e.wallet.PublicKey
}

func solToLamports(sol float64) uint64 {
	v := decimal.NewFromFloat(sol).Shift(9).Floor()
	if v.IsNegative() {
		return 0
	}
	return uint64(v.IntPart())
}

func sameSymbol(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (e *Executor) sign(tx *solana.Transaction) error {
	return e.wallet.SignTransaction(tx)
}

func (e *Executor) record(ctx context.Context, tx *models.Transaction) {
	if e.journal == nil {
		return
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = e.now().UTC()
	}
	if err := e.journal.SaveTransaction(ctx, tx); err != nil {
		e.logger.Warn("Failed to save transaction journal entry",
			zap.String("signature", tx.Signature),
			zap.Error(err))
	}
}

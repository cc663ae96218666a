// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
)

const (
	DefaultSubmitAttempts      = 3
	DefaultSubmitRetryDelay    = 500 * time.Millisecond
	DefaultConfirmPollInterval = 2 * time.Second
)

// Определение ошибок
var (
	ErrTransactionFailed = errors.New("transaction failed on-chain")
	ErrMalformedAccount  = errors.New("malformed token account data")
)

// ClientConfig - параметры клиента
type ClientConfig struct {
	RateLimitBackoff    time.Duration
	SubmitAttempts      int
	SubmitRetryDelay    time.Duration
	ConfirmPollInterval time.Duration
}

// Client – адаптер над пулом узлов: каждый вызов идет через rpc.Execute.
type Client struct {
	pool   *rpc.NodePool
	cfg    ClientConfig
	logger *zap.Logger
}

// Проверяем, что Client реализует blockchain.Client интерфейс
var _ blockchain.Client = (*Client)(nil)

// NewClient создаёт клиент поверх готового пула.
func NewClient(pool *rpc.NodePool, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = rpc.DefaultRateLimitBackoff
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = DefaultSubmitAttempts
	}
	if cfg.SubmitRetryDelay <= 0 {
		cfg.SubmitRetryDelay = DefaultSubmitRetryDelay
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = DefaultConfirmPollInterval
	}

	return &Client{
		pool:   pool,
		cfg:    cfg,
		logger: logger.Named("solbc-client"),
	}
}

// Pool возвращает пул узлов клиента
func (c *Client) Pool() *rpc.NodePool {
	return c.pool
}

type node = rpc.Endpoint[*solanarpc.Client]

func (c *Client) opts(method string, extra ...rpc.ExecuteOption) []rpc.ExecuteOption {
	return append([]rpc.ExecuteOption{
		rpc.WithMethod(method),
		rpc.WithRateLimitBackoff(c.cfg.RateLimitBackoff),
	}, extra...)
}

// GetBalance возвращает баланс SOL в лампортах.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	balance, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *node) (uint64, error) {
		res, err := ep.Client.GetBalance(ctx, owner, solanarpc.CommitmentConfirmed)
		if err != nil {
			return 0, err
		}
		return res.Value, nil
	}, c.opts("getBalance")...)
	if err != nil {
		c.logger.Error("GetBalance error", zap.String("owner", owner.String()), zap.Error(err))
		return 0, err
	}
	return balance, nil
}

// GetTokenHoldings перечисляет SPL токен-аккаунты владельца.
func (c *Client) GetTokenHoldings(ctx context.Context, owner solana.PublicKey) ([]blockchain.TokenHolding, error) {
	programID := solana.TokenProgramID
	return c.tokenAccounts(ctx, owner, &solanarpc.GetTokenAccountsConfig{ProgramId: &programID})
}

// GetTokenBalance суммирует остаток по всем аккаунтам одного mint.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (blockchain.TokenHolding, error) {
	holdings, err := c.tokenAccounts(ctx, owner, &solanarpc.GetTokenAccountsConfig{Mint: &mint})
	if err != nil {
		return blockchain.TokenHolding{}, err
	}

	total := blockchain.TokenHolding{Mint: mint}
	for _, h := range holdings {
		if total.Account.IsZero() {
			total.Account = h.Account
		}
		total.Amount += h.Amount
		total.UIAmount += h.UIAmount
		total.Decimals = h.Decimals
	}
	return total, nil
}

func (c *Client) tokenAccounts(ctx context.Context, owner solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig) ([]blockchain.TokenHolding, error) {
	res, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *node) (*solanarpc.GetTokenAccountsResult, error) {
		return ep.Client.GetTokenAccountsByOwner(ctx, owner, conf, &solanarpc.GetTokenAccountsOpts{
			Commitment: solanarpc.CommitmentConfirmed,
			Encoding:   solana.EncodingJSONParsed,
		})
	}, c.opts("getTokenAccountsByOwner")...)
	if err != nil {
		c.logger.Error("GetTokenAccountsByOwner error", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}

	holdings := make([]blockchain.TokenHolding, 0, len(res.Value))
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		h, err := ParseTokenAccount(acc.Account.Data.GetRawJSON())
		if err != nil {
			c.logger.Debug("Skipping token account",
				zap.String("account", acc.Pubkey.String()),
				zap.Error(err))
			continue
		}
		h.Account = acc.Pubkey
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// parsedTokenAccount - форма jsonParsed ответа для spl-token аккаунта
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// ParseTokenAccount разбирает jsonParsed данные токен-аккаунта.
func ParseTokenAccount(raw []byte) (blockchain.TokenHolding, error) {
	if len(raw) == 0 {
		return blockchain.TokenHolding{}, ErrMalformedAccount
	}

	var parsed parsedTokenAccount
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return blockchain.TokenHolding{}, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}

	info := parsed.Parsed.Info
	mint, err := solana.PublicKeyFromBase58(info.Mint)
	if err != nil {
		return blockchain.TokenHolding{}, fmt.Errorf("%w: mint: %v", ErrMalformedAccount, err)
	}

	amount, err := decimal.NewFromString(info.TokenAmount.Amount)
	if err != nil {
		return blockchain.TokenHolding{}, fmt.Errorf("%w: amount: %v", ErrMalformedAccount, err)
	}

	return blockchain.TokenHolding{
		Mint:     mint,
		Amount:   uint64(amount.IntPart()),
		UIAmount: amount.Shift(-int32(info.TokenAmount.Decimals)).InexactFloat64(),
		Decimals: info.TokenAmount.Decimals,
	}, nil
}

// SubmitTransaction отправляет транзакцию: до SubmitAttempts попыток,
// каждая на следующем узле пула. Подпись возвращается сразу, без ожидания.
func (c *Client) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	maxRetries := uint(2)
	sig, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *node) (solana.Signature, error) {
		return ep.Client.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: solanarpc.CommitmentConfirmed,
			MaxRetries:          &maxRetries,
		})
	}, c.opts("sendTransaction",
		rpc.WithMaxAttempts(c.cfg.SubmitAttempts),
		rpc.WithRetryDelay(c.cfg.SubmitRetryDelay),
	)...)
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}

	c.logger.Info("📤 Transaction sent", zap.String("signature", sig.String()))
	return sig, nil
}

// WaitForConfirmation опрашивает статус подписи до confirmed/finalized.
// Время ожидания ограничивает ctx.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		status, err := c.signatureStatus(ctx, sig)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil && status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) signatureStatus(ctx context.Context, sig solana.Signature) (*solanarpc.SignatureStatusesResult, error) {
	res, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *node) (*solanarpc.GetSignatureStatusesResult, error) {
		return ep.Client.GetSignatureStatuses(ctx, true, sig)
	}, c.opts("getSignatureStatuses")...)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.String("signature", sig.String()), zap.Error(err))
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

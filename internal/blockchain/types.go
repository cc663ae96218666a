// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// TokenHolding - остаток SPL токена на одном токен-аккаунте владельца.
type TokenHolding struct {
	Mint     solana.PublicKey
	Account  solana.PublicKey
	Amount   uint64 // в минимальных единицах
	UIAmount float64
	Decimals uint8
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
// Каждый вызов проходит через пул узлов с переключением при ошибках.
type Client interface {
	// Баланс SOL в лампортах.
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	// Все SPL токен-аккаунты владельца (включая нулевые).
	GetTokenHoldings(ctx context.Context, owner solana.PublicKey) ([]TokenHolding, error)
	// Суммарный остаток по одному mint; нулевой TokenHolding, если аккаунтов нет.
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (TokenHolding, error)
	// Отправить подписанную транзакцию.
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Ожидание подтверждения транзакции.
	WaitForConfirmation(ctx context.Context, sig solana.Signature) error
}

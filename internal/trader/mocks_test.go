// internal/trader/mocks_test.go
package trader

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
)

// MockChain реализует интерфейс blockchain.Client
type MockChain struct {
	mock.Mock
}

func (m *MockChain) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChain) GetTokenHoldings(ctx context.Context, owner solana.PublicKey) ([]blockchain.TokenHolding, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]blockchain.TokenHolding), args.Error(1)
}

func (m *MockChain) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (blockchain.TokenHolding, error) {
	args := m.Called(ctx, owner, mint)
	return args.Get(0).(blockchain.TokenHolding), args.Error(1)
}

func (m *MockChain) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockChain) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	return m.Called(ctx, sig).Error(0)
}

// MockSwapper реализует интерфейс Swapper
type MockSwapper struct {
	mock.Mock
}

func (m *MockSwapper) GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error) {
	args := m.Called(ctx, req)
	q, _ := args.Get(0).(*jupiter.Quote)
	return q, args.Error(1)
}

func (m *MockSwapper) BuildSwap(ctx context.Context, quote *jupiter.Quote, owner solana.PublicKey, fee jupiter.PriorityFee) (*solana.Transaction, error) {
	args := m.Called(ctx, quote, owner, fee)
	tx, _ := args.Get(0).(*solana.Transaction)
	return tx, args.Error(1)
}

// MockMarket реализует market.Service и market.MetadataService
type MockMarket struct {
	mock.Mock
}

func (m *MockMarket) GetMarketInfo(ctx context.Context, address string) (*market.Info, error) {
	args := m.Called(ctx, address)
	info, _ := args.Get(0).(*market.Info)
	return info, args.Error(1)
}

func (m *MockMarket) GetTokenMetadata(ctx context.Context, address string) (*market.Metadata, error) {
	args := m.Called(ctx, address)
	md, _ := args.Get(0).(*market.Metadata)
	return md, args.Error(1)
}

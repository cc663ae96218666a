// internal/monitor/mocks_test.go
package monitor

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain"
	"github.com/rovshanmuradov/solana-autotrader/internal/domain"
	"github.com/rovshanmuradov/solana-autotrader/internal/market"
	"github.com/rovshanmuradov/solana-autotrader/internal/position"
	"github.com/rovshanmuradov/solana-autotrader/internal/signal"
	"github.com/rovshanmuradov/solana-autotrader/internal/trader"
)

// MockTrader реализует интерфейс Trader
type MockTrader struct {
	mock.Mock
	confirmations chan trader.Confirmation
}

func newMockTrader() *MockTrader {
	return &MockTrader{confirmations: make(chan trader.Confirmation, 4)}
}

func (m *MockTrader) Buy(ctx context.Context, c signal.Candidate) (solana.Signature, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockTrader) Sell(ctx context.Context, pos position.Position, trigger bool) (bool, error) {
	args := m.Called(ctx, pos, trigger)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrader) Confirmations() <-chan trader.Confirmation {
	return m.confirmations
}

// stubChain отдает заданные остатки кошелька
type stubChain struct {
	mu       sync.Mutex
	lamports uint64
	holdings []blockchain.TokenHolding
	err      error
}

func (s *stubChain) hold(h ...blockchain.TokenHolding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings = h
}

func (s *stubChain) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lamports, s.err
}

func (s *stubChain) GetTokenHoldings(context.Context, solana.PublicKey) ([]blockchain.TokenHolding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]blockchain.TokenHolding(nil), s.holdings...), s.err
}

func (s *stubChain) GetTokenBalance(context.Context, solana.PublicKey, solana.PublicKey) (blockchain.TokenHolding, error) {
	return blockchain.TokenHolding{}, nil
}

func (s *stubChain) SubmitTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (s *stubChain) WaitForConfirmation(context.Context, solana.Signature) error {
	return nil
}

// stubMarket - рыночные данные и метаданные по адресу
type stubMarket struct {
	mu    sync.Mutex
	infos map[string]*market.Info
	meta  map[string]*market.Metadata
}

func newStubMarket() *stubMarket {
	return &stubMarket{infos: map[string]*market.Info{}, meta: map[string]*market.Metadata{}}
}

func (s *stubMarket) set(addr string, info *market.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[addr] = info
}

func (s *stubMarket) GetMarketInfo(_ context.Context, addr string) (*market.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infos[addr], nil
}

func (s *stubMarket) GetTokenMetadata(_ context.Context, addr string) (*market.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[addr], nil
}

type fixedOracle float64

func (o fixedOracle) GetPrice(context.Context) float64 { return float64(o) }

// stubSignals - сигнал в памяти
type stubSignals struct {
	candidate *signal.Candidate
	err       error
	consumed  int
}

func (s *stubSignals) Peek() (*signal.Candidate, error) {
	return s.candidate, s.err
}

func (s *stubSignals) Consume() error {
	s.consumed++
	s.candidate = nil
	s.err = nil
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []*domain.Snapshot
}

func (p *recordingPublisher) PublishSnapshot(s *domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
	return nil
}

func (p *recordingPublisher) latest() *domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return nil
	}
	return p.snapshots[len(p.snapshots)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots)
}

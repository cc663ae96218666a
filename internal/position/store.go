// internal/position/store.go
package position

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

type (
	Position     = models.Position
	SoldPosition = models.SoldPosition
)

// Store - единственный писатель позиций и истории продаж.
// Каждая мутация сохраняет коллекцию целиком до возврата; при ошибке записи
// состояние в памяти откатывается.
type Store struct {
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	active map[string]Position
	sold   map[string]SoldPosition
}

// StoreOption настраивает Store
type StoreOption func(*Store)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(st storage.Storage, logger *zap.Logger, opts ...StoreOption) *Store {
	s := &Store{
		storage: st,
		logger:  logger.Named("positions"),
		now:     time.Now,
		active:  make(map[string]Position),
		sold:    make(map[string]SoldPosition),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load читает сохраненное состояние. Некорректные записи пропускаются.
func (s *Store) Load(ctx context.Context) error {
	positions, err := s.storage.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	sold, err := s.storage.LoadSoldPositions(ctx)
	if err != nil {
		return fmt.Errorf("load sold positions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = make(map[string]Position, len(positions))
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			s.logger.Warn("Skipping invalid stored position",
				zap.String("token", p.Address),
				zap.Error(err))
			continue
		}
		s.active[p.Address] = p
	}
	s.sold = make(map[string]SoldPosition, len(sold))
	for _, sp := range sold {
		s.sold[sp.Address] = sp
	}

	s.logger.Info("📂 Loaded positions",
		zap.Int("active", len(s.active)),
		zap.Int("sold", len(s.sold)))
	return nil
}

// Upsert создает или обновляет позицию
func (s *Store) Upsert(ctx context.Context, p Position) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.active[p.Address]
	s.active[p.Address] = p
	if err := s.persistActive(ctx); err != nil {
		if existed {
			s.active[p.Address] = prev
		} else {
			delete(s.active, p.Address)
		}
		return err
	}
	return nil
}

// Remove удаляет позицию без записи о продаже. Отсутствующий адрес - не ошибка.
func (s *Store) Remove(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.active[address]
	if !ok {
		return nil
	}
	delete(s.active, address)
	if err := s.persistActive(ctx); err != nil {
		s.active[address] = prev
		return err
	}
	return nil
}

// RecordSale переносит позицию в историю продаж с указанным P&L
func (s *Store) RecordSale(ctx context.Context, address string, profitLossPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, wasActive := s.active[address]
	prevSold, hadSold := s.sold[address]

	s.sold[address] = SoldPosition{
		Address:           address,
		Symbol:            p.Symbol,
		Name:              p.Name,
		ProfitLossPercent: profitLossPercent,
		SoldAt:            s.now().UTC(),
	}
	if err := s.persistSold(ctx); err != nil {
		s.restoreSold(address, prevSold, hadSold)
		return err
	}

	if !wasActive {
		return nil
	}
	delete(s.active, address)
	if err := s.persistActive(ctx); err != nil {
		s.active[address] = p
		s.restoreSold(address, prevSold, hadSold)
		if rollbackErr := s.persistSold(ctx); rollbackErr != nil {
			s.logger.Error("Failed to roll back sold positions", zap.Error(rollbackErr))
		}
		return err
	}
	return nil
}

func (s *Store) restoreSold(address string, prev SoldPosition, had bool) {
	if had {
		s.sold[address] = prev
	} else {
		delete(s.sold, address)
	}
}

func (s *Store) Get(address string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.active[address]
	return p, ok
}

func (s *Store) Has(address string) bool {
	_, ok := s.Get(address)
	return ok
}

func (s *Store) IsSold(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sold[address]
	return ok
}

// All возвращает позиции по времени покупки, затем по адресу
func (s *Store) All() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedActive()
}

// AllSold возвращает историю продаж, новые первыми
func (s *Store) AllSold() []SoldPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SoldPosition, 0, len(s.sold))
	for _, sp := range s.sold {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SoldAt.Equal(out[j].SoldAt) {
			return out[i].SoldAt.After(out[j].SoldAt)
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func (s *Store) sortedActive() []Position {
	out := make([]Position, 0, len(s.active))
	for _, p := range s.active {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseTime.Equal(out[j].PurchaseTime) {
			return out[i].PurchaseTime.Before(out[j].PurchaseTime)
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func (s *Store) persistActive(ctx context.Context) error {
	if err := s.storage.SavePositions(ctx, s.sortedActive()); err != nil {
		s.logger.Error("Failed to persist positions", zap.Error(err))
		return fmt.Errorf("persist positions: %w", err)
	}
	return nil
}

func (s *Store) persistSold(ctx context.Context) error {
	sold := make([]SoldPosition, 0, len(s.sold))
	for _, sp := range s.sold {
		sold = append(sold, sp)
	}
	sort.Slice(sold, func(i, j int) bool { return sold[i].SoldAt.Before(sold[j].SoldAt) })

	if err := s.storage.SaveSoldPositions(ctx, sold); err != nil {
		s.logger.Error("Failed to persist sold positions", zap.Error(err))
		return fmt.Errorf("persist sold positions: %w", err)
	}
	return nil
}

// internal/events/types.go
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/rovshanmuradov/solana-autotrader/internal/domain"
)

// EventType - тип события жизненного цикла позиции
type EventType string

const (
	PositionOpened    EventType = "position_opened"
	PositionRemoved   EventType = "position_removed"
	PositionSold      EventType = "position_sold"
	BuyFailed         EventType = "buy_failed"
	SnapshotPublished EventType = "snapshot_published"
)

// Event - общее событие шины
type Event interface {
	Type() EventType
	ID() string
	Timestamp() time.Time
}

// BaseEvent содержит общие поля всех событий
type BaseEvent struct {
	EventID   string    `json:"id"`
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) ID() string           { return e.EventID }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: t,
		Time:      time.Now(),
	}
}

// PositionOpenedEvent - позиция добавлена после покупки или найдена в кошельке
type PositionOpenedEvent struct {
	BaseEvent
	Address    string  `json:"address"`
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entryPrice"`
	Amount     float64 `json:"amount"`
	// Adopted - позиция не покупалась ботом, а найдена при сканировании
	Adopted   bool   `json:"adopted"`
	Signature string `json:"signature,omitempty"`
}

func NewPositionOpened(address, symbol string, entryPrice, amount float64, adopted bool, signature string) *PositionOpenedEvent {
	return &PositionOpenedEvent{
		BaseEvent:  newBase(PositionOpened),
		Address:    address,
		Symbol:     symbol,
		EntryPrice: entryPrice,
		Amount:     amount,
		Adopted:    adopted,
		Signature:  signature,
	}
}

// PositionRemovedEvent - токен пропал из кошелька дольше окна ожидания
type PositionRemovedEvent struct {
	BaseEvent
	Address string        `json:"address"`
	Symbol  string        `json:"symbol"`
	Absent  time.Duration `json:"absent"`
}

func NewPositionRemoved(address, symbol string, absent time.Duration) *PositionRemovedEvent {
	return &PositionRemovedEvent{
		BaseEvent: newBase(PositionRemoved),
		Address:   address,
		Symbol:    symbol,
		Absent:    absent,
	}
}

// PositionSoldEvent - продажа зафиксирована в истории
type PositionSoldEvent struct {
	BaseEvent
	Address    string  `json:"address"`
	Symbol     string  `json:"symbol"`
	ProfitLoss float64 `json:"profitLoss"`
	Reason     string  `json:"reason"`
}

func NewPositionSold(address, symbol string, profitLoss float64, reason string) *PositionSoldEvent {
	return &PositionSoldEvent{
		BaseEvent:  newBase(PositionSold),
		Address:    address,
		Symbol:     symbol,
		ProfitLoss: profitLoss,
		Reason:     reason,
	}
}

// BuyFailedEvent - покупка отклонена или не подтвердилась
type BuyFailedEvent struct {
	BaseEvent
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Error   string `json:"error"`
}

func NewBuyFailed(address, symbol string, err error) *BuyFailedEvent {
	ev := &BuyFailedEvent{
		BaseEvent: newBase(BuyFailed),
		Address:   address,
		Symbol:    symbol,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// SnapshotPublishedEvent несет снимок портфеля после цикла
type SnapshotPublishedEvent struct {
	BaseEvent
	Snapshot *domain.Snapshot `json:"snapshot"`
}

func NewSnapshotPublished(s *domain.Snapshot) *SnapshotPublishedEvent {
	return &SnapshotPublishedEvent{
		BaseEvent: newBase(SnapshotPublished),
		Snapshot:  s,
	}
}

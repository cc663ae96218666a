// internal/events/handler.go
package events

import "context"

// Handler получает события жизненного цикла позиций одного типа.
// Доставка последовательная в горутине шины, поэтому обработчик не ходит в сеть.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc позволяет подписать обычную функцию (аудит, тесты)
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription отменяет подписку; ID совпадает с subscription_id в логах шины
type Subscription interface {
	ID() string
	EventType() EventType
	Unsubscribe()
}

type busSubscription struct {
	id        string
	eventType EventType
	bus       *Bus
}

func (s *busSubscription) ID() string { return s.id }

func (s *busSubscription) EventType() EventType { return s.eventType }

// Unsubscribe идемпотентен: повторный вызов ничего не меняет
func (s *busSubscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.eventType)
}

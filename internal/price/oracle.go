// internal/price/oracle.go
package price

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTTL      = 60 * time.Second
	DefaultSOLPrice = 20.0
)

// Oracle отдает цену SOL в USD и никогда не возвращает ошибку.
// Порядок: свежий кэш, последний успешный источник, остальные источники
// по приоритету, устаревший кэш, константа по умолчанию.
type Oracle struct {
	sources  []Source
	ttl      time.Duration
	fallback float64
	now      func() time.Time
	logger   *zap.Logger

	mu         sync.Mutex
	value      float64
	observedAt time.Time
	sticky     int // индекс источника, -1 если еще не было успеха
}

type Option func(*Oracle)

func WithTTL(ttl time.Duration) Option {
	return func(o *Oracle) { o.ttl = ttl }
}

func WithFallback(v float64) Option {
	return func(o *Oracle) { o.fallback = v }
}

func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

func NewOracle(sources []Source, logger *zap.Logger, opts ...Option) *Oracle {
	o := &Oracle{
		sources:  sources,
		ttl:      DefaultTTL,
		fallback: DefaultSOLPrice,
		now:      time.Now,
		logger:   logger.Named("price"),
		sticky:   -1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetPrice возвращает цену SOL в USD (> 0)
func (o *Oracle) GetPrice(ctx context.Context) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.value > 0 && now.Sub(o.observedAt) < o.ttl {
		return o.value
	}

	if o.sticky >= 0 {
		if v, ok := o.try(ctx, o.sticky); ok {
			o.store(v, now, o.sticky)
			return v
		}
	}

	for i := range o.sources {
		if i == o.sticky {
			continue
		}
		if v, ok := o.try(ctx, i); ok {
			o.store(v, now, i)
			return v
		}
	}

	if o.value > 0 {
		o.logger.Warn("Using last known price",
			zap.Float64("price", o.value),
			zap.Duration("age", now.Sub(o.observedAt)))
		return o.value
	}

	o.logger.Warn("All price sources failed and no cached price available, using default price",
		zap.Float64("price", o.fallback))
	return o.fallback
}

func (o *Oracle) try(ctx context.Context, i int) (float64, bool) {
	src := o.sources[i]
	v, err := src.Fetch(ctx)
	if err != nil {
		o.logger.Debug("Price source failed", zap.String("source", src.Name()), zap.Error(err))
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		o.logger.Debug("Price source returned invalid value",
			zap.String("source", src.Name()),
			zap.Float64("price", v))
		return 0, false
	}
	return v, true
}

func (o *Oracle) store(v float64, at time.Time, source int) {
	o.value = v
	o.observedAt = at
	o.sticky = source
}

// internal/blockchain/solbc/rpc/execute.go
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
)

// DefaultRateLimitBackoff - пауза перед повтором после 429
const DefaultRateLimitBackoff = time.Second

// Operation выполняет один вызов на конкретном узле
type Operation[C, T any] func(ctx context.Context, ep *Endpoint[C]) (T, error)

type executeOptions struct {
	method           string
	rateLimitBackoff time.Duration
	retryDelay       time.Duration
	maxAttempts      int
}

// ExecuteOption настраивает Execute
type ExecuteOption func(*executeOptions)

// WithMethod задает имя вызова для логов и ошибок
func WithMethod(method string) ExecuteOption {
	return func(o *executeOptions) { o.method = method }
}

// WithRateLimitBackoff меняет паузу после 429
func WithRateLimitBackoff(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.rateLimitBackoff = d }
}

// WithRetryDelay задает паузу после обычной (не 429) ошибки, по умолчанию без паузы
func WithRetryDelay(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.retryDelay = d }
}

// WithMaxAttempts ограничивает число попыток (по умолчанию 2×N)
func WithMaxAttempts(n int) ExecuteOption {
	return func(o *executeOptions) { o.maxAttempts = n }
}

// failoverBackOff отдает паузу, которую выставила последняя неудачная попытка:
// retryDelay для обычной ошибки и rateLimitBackoff для 429.
type failoverBackOff struct {
	next time.Duration
}

func (b *failoverBackOff) NextBackOff() time.Duration { return b.next }

func (b *failoverBackOff) Reset() { b.next = 0 }

// Execute выполняет операцию с переключением узлов пула.
// Каждая неудача сдвигает курсор; после 429 дополнительно ждет rateLimitBackoff.
// Курсор остается на последнем опрошенном узле. Если все 2×N попыток неудачны,
// возвращается ошибка, оборачивающая ErrAllEndpointsExhausted и последнюю ошибку узла.
func Execute[C, T any](ctx context.Context, pool *Pool[C], op Operation[C, T], opts ...ExecuteOption) (T, error) {
	o := executeOptions{
		method:           "call",
		rateLimitBackoff: DefaultRateLimitBackoff,
		maxAttempts:      2 * pool.Len(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	var (
		zero     T
		attempts int
		lastErr  error
		aborted  bool
		bo       = &failoverBackOff{}
	)

	attempt := func() (T, error) {
		attempts++
		ep := pool.Current()

		start := time.Now()
		res, err := op(ctx, ep)
		metrics.RecordRPCLatency(pool.Name(), time.Since(start))
		if err == nil {
			return res, nil
		}

		if isContextError(ctx, err) {
			aborted = true
			return zero, backoff.Permanent(err)
		}

		lastErr = NewError(err, ep.URL, o.method)
		limited := IsRateLimited(err)
		bo.next = o.retryDelay
		if limited {
			bo.next = o.rateLimitBackoff
		}

		pool.logger.Warn("Endpoint call failed, rotating",
			zap.String("method", o.method),
			zap.String("endpoint", ep.URL),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", o.maxAttempts),
			zap.Bool("rate_limited", limited),
			zap.Error(err))

		metrics.RecordFailover(pool.Name(), limited)
		pool.Advance()
		return zero, lastErr
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(o.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return res, nil
	}
	if aborted || ctx.Err() != nil {
		return zero, err
	}

	metrics.RecordExhausted(pool.Name())
	pool.logger.Error("All endpoints exhausted",
		zap.String("method", o.method),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", o.method, ErrAllEndpointsExhausted, attempts, lastErr)
}

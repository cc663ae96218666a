// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrAllEndpointsExhausted возникает, когда ни один узел пула не ответил за 2×N попыток
	ErrAllEndpointsExhausted = errors.New("all endpoints exhausted")

	// ErrRateLimited возникает при превышении лимита запросов (HTTP 429)
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrEmptyPool возникает при создании пула без адресов
	ErrEmptyPool = errors.New("endpoint pool is empty")
)

// Error представляет ошибку узла с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку узла
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// HTTPStatusError описывает неуспешный HTTP ответ внешнего API
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// Is позволяет сопоставлять 429 с ErrRateLimited через errors.Is
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// status429 - код 429 отдельным словом, а не цифры внутри адреса или порта
var status429 = regexp.MustCompile(`(^|[^0-9a-z])429([^0-9a-z]|$)`)

// IsRateLimited определяет, что ошибка вызвана ограничением частоты запросов.
// Узлы отдают это по-разному: статус 429, JSON-RPC ошибка или просто текст.
// Текст проверяется последним.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusTooManyRequests {
		return true
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") || status429.MatchString(msg)
}

// isContextError отделяет отмену вызывающей стороны от сбоев узла
func isContextError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}

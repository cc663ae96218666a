// internal/market/tokenlist.go
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
)

// TokenList - MetadataService поверх Jupiter token API (GET /token/{mint})
type TokenList struct {
	pool   *rpc.Pool[*http.Client]
	logger *zap.Logger
	opts   []rpc.ExecuteOption
}

var _ MetadataService = (*TokenList)(nil)

func NewTokenList(baseURL string, client *http.Client, logger *zap.Logger, opts ...rpc.ExecuteOption) (*TokenList, error) {
	logger = logger.Named("tokenlist")
	pool, err := rpc.NewPool("jupiter-tokens", []string{baseURL}, func(string) *http.Client { return client }, logger)
	if err != nil {
		return nil, err
	}
	return &TokenList{pool: pool, logger: logger, opts: opts}, nil
}

// GetTokenMetadata возвращает nil без ошибки, если токен не найден
func (t *TokenList) GetTokenMetadata(ctx context.Context, address string) (*Metadata, error) {
	md, err := rpc.Execute(ctx, t.pool, func(ctx context.Context, ep *rpc.Endpoint[*http.Client]) (*Metadata, error) {
		var out Metadata
		err := rpc.GetJSON(ctx, ep.Client, fmt.Sprintf("%s/token/%s", ep.URL, address), &out)
		var statusErr *rpc.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &out, nil
	}, append([]rpc.ExecuteOption{rpc.WithMethod("jupiter.token")}, t.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token metadata: %w", err)
	}
	if md == nil || (md.Symbol == "" && md.Name == "") {
		return nil, nil
	}
	return md, nil
}

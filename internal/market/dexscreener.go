// internal/market/dexscreener.go
package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
)

const (
	solanaChain = "solana"
	// DefaultRateLimit - запросов в минуту к DexScreener
	DefaultRateLimit = 300
)

var quoteWhitelist = map[string]bool{
	WrappedSOLMint: true,
	USDCMint:       true,
	USDTMint:       true,
}

// dexScreenerResponse представляет основную структуру ответа
type dexScreenerResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []pairInfo `json:"pairs"`
}

// pairInfo содержит информацию о паре
type pairInfo struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   tokenInfo `json:"baseToken"`
	QuoteToken  tokenInfo `json:"quoteToken"`
	PriceUSD    string    `json:"priceUsd"`
	MarketCap   float64   `json:"marketCap"`
	FDV         float64   `json:"fdv"`
	Liquidity   *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type tokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

func (p *pairInfo) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// DexScreener - Service поверх пула базовых адресов DexScreener.
// Запросы идут через rpc.Execute с тем же правилом переключения, что и RPC узлы.
type DexScreener struct {
	pool        *rpc.Pool[*http.Client]
	logger      *zap.Logger
	rateLimiter *time.Ticker
	opts        []rpc.ExecuteOption
}

var _ Service = (*DexScreener)(nil)

type DexScreenerOption func(*DexScreener)

// WithRateLimit задает лимит запросов в минуту; 0 отключает ограничение
func WithRateLimit(perMinute int) DexScreenerOption {
	return func(s *DexScreener) {
		s.stopLimiter()
		if perMinute > 0 {
			s.rateLimiter = time.NewTicker(time.Minute / time.Duration(perMinute))
		}
	}
}

// WithExecuteOptions передает параметры повторов в rpc.Execute
func WithExecuteOptions(opts ...rpc.ExecuteOption) DexScreenerOption {
	return func(s *DexScreener) { s.opts = append(s.opts, opts...) }
}

// NewDexScreener создает сервис для списка базовых адресов (например https://api.dexscreener.com)
func NewDexScreener(baseURLs []string, client *http.Client, logger *zap.Logger, opts ...DexScreenerOption) (*DexScreener, error) {
	logger = logger.Named("dexscreener")
	pool, err := rpc.NewPool("dexscreener", baseURLs, func(string) *http.Client { return client }, logger)
	if err != nil {
		return nil, err
	}

	s := &DexScreener{pool: pool, logger: logger}
	WithRateLimit(DefaultRateLimit)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetMarketInfo выбирает пару с наибольшей ликвидностью среди пар,
// котируемых в SOL, USDC или USDT.
func (s *DexScreener) GetMarketInfo(ctx context.Context, address string) (*Info, error) {
	resp, err := rpc.Execute(ctx, s.pool, func(ctx context.Context, ep *rpc.Endpoint[*http.Client]) (*dexScreenerResponse, error) {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		var out dexScreenerResponse
		url := fmt.Sprintf("%s/latest/dex/tokens/%s", ep.URL, address)
		if err := rpc.GetJSON(ctx, ep.Client, url, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, append([]rpc.ExecuteOption{rpc.WithMethod("dexscreener.tokens")}, s.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get token pairs: %w", err)
	}

	best := selectPair(resp.Pairs, address)
	if best == nil {
		s.logger.Debug("No qualifying pair", zap.String("token", address), zap.Int("pairs", len(resp.Pairs)))
		return nil, nil
	}

	priceUSD, _ := strconv.ParseFloat(best.PriceUSD, 64)
	marketCap := best.MarketCap
	if marketCap == 0 {
		marketCap = best.FDV
	}

	info := &Info{
		PriceUSD:       priceUSD,
		MarketCap:      marketCap,
		Liquidity:      best.liquidityUSD(),
		Volume24h:      best.Volume.H24,
		PriceChange24h: best.PriceChange.H24,
		DexID:          best.DexID,
		PairAddress:    best.PairAddress,
	}
	if best.PairCreatedAt > 0 {
		info.CreatedAt = time.UnixMilli(best.PairCreatedAt).UTC()
	}
	return info, nil
}

func selectPair(pairs []pairInfo, address string) *pairInfo {
	var best *pairInfo
	for i := range pairs {
		pair := &pairs[i]
		if pair.ChainID != "" && pair.ChainID != solanaChain {
			continue
		}
		if pair.BaseToken.Address != address || !quoteWhitelist[pair.QuoteToken.Address] {
			continue
		}
		if best == nil || pair.liquidityUSD() > best.liquidityUSD() {
			best = pair
		}
	}
	return best
}

func (s *DexScreener) wait(ctx context.Context) error {
	limiter := s.rateLimiter
	if limiter == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-limiter.C:
		return nil
	}
}

// Close останавливает тикер ограничителя запросов
func (s *DexScreener) Close() error {
	s.stopLimiter()
	return nil
}

func (s *DexScreener) stopLimiter() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.rateLimiter = nil
	}
}

// internal/market/market.go
package market

import (
	"context"
	"time"
)

// Монеты котировки, пары с которыми считаются достоверными
const (
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint       = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Info - рыночные данные по самой ликвидной подходящей паре
type Info struct {
	PriceUSD       float64   `json:"priceUsd"`
	MarketCap      float64   `json:"marketCap"`
	Liquidity      float64   `json:"liquidity"`
	Volume24h      float64   `json:"volume24h"`
	PriceChange24h float64   `json:"priceChange24h"`
	CreatedAt      time.Time `json:"createdAt"`
	DexID          string    `json:"dexId"`
	PairAddress    string    `json:"pairAddress"`
}

// Metadata - описание токена из списка Jupiter
type Metadata struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	Tags        []string `json:"tags"`
	DailyVolume float64  `json:"daily_volume"`
}

// Service возвращает рыночные данные токена.
// (nil, nil) означает отсутствие подходящей пары: решение в этом цикле невозможно.
type Service interface {
	GetMarketInfo(ctx context.Context, address string) (*Info, error)
}

// MetadataService возвращает метаданные токена; (nil, nil) если токен неизвестен.
type MetadataService interface {
	GetTokenMetadata(ctx context.Context, address string) (*Metadata, error)
}

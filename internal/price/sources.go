// internal/price/sources.go
package price

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
)

const (
	CoinGeckoBaseURL = "https://api.coingecko.com"
	JupiterBaseURL   = "https://price.jup.ag"
	BirdeyeBaseURL   = "https://public-api.birdeye.so"

	wrappedSOLMint = "So11111111111111111111111111111111111111112"
)

var ErrNoPrice = errors.New("price missing in response")

// Source - один независимый источник цены SOL в USD
type Source interface {
	Name() string
	Fetch(ctx context.Context) (float64, error)
}

// httpSource запрашивает JSON по фиксированному адресу и достает из него цену
type httpSource struct {
	name    string
	url     string
	client  *http.Client
	extract func(ctx context.Context, client *http.Client, url string) (float64, error)
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Fetch(ctx context.Context) (float64, error) {
	v, err := s.extract(ctx, s.client, s.url)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}
	return v, nil
}

// NewCoinGeckoSource читает data.solana.usd из simple/price
func NewCoinGeckoSource(baseURL string, client *http.Client) Source {
	return &httpSource{
		name:   "CoinGecko",
		url:    baseURL + "/api/v3/simple/price?ids=solana&vs_currencies=usd",
		client: client,
		extract: func(ctx context.Context, c *http.Client, url string) (float64, error) {
			var resp struct {
				Solana *struct {
					USD float64 `json:"usd"`
				} `json:"solana"`
			}
			if err := rpc.GetJSON(ctx, c, url, &resp); err != nil {
				return 0, err
			}
			if resp.Solana == nil {
				return 0, ErrNoPrice
			}
			return resp.Solana.USD, nil
		},
	}
}

// NewJupiterSource читает data.SOL.price из Jupiter price API
func NewJupiterSource(baseURL string, client *http.Client) Source {
	return &httpSource{
		name:   "Jupiter",
		url:    baseURL + "/v4/price?ids=SOL",
		client: client,
		extract: func(ctx context.Context, c *http.Client, url string) (float64, error) {
			var resp struct {
				Data map[string]struct {
					Price float64 `json:"price"`
				} `json:"data"`
			}
			if err := rpc.GetJSON(ctx, c, url, &resp); err != nil {
				return 0, err
			}
			sol, ok := resp.Data["SOL"]
			if !ok {
				return 0, ErrNoPrice
			}
			return sol.Price, nil
		},
	}
}

// NewBirdeyeSource читает data.value из публичного Birdeye API
func NewBirdeyeSource(baseURL string, client *http.Client) Source {
	return &httpSource{
		name:   "Birdeye",
		url:    baseURL + "/public/price?address=" + wrappedSOLMint,
		client: client,
		extract: func(ctx context.Context, c *http.Client, url string) (float64, error) {
			var resp struct {
				Data *struct {
					Value float64 `json:"value"`
				} `json:"data"`
			}
			if err := rpc.GetJSON(ctx, c, url, &resp); err != nil {
				return 0, err
			}
			if resp.Data == nil {
				return 0, ErrNoPrice
			}
			return resp.Data.Value, nil
		},
	}
}

// DefaultSources возвращает источники в порядке приоритета
func DefaultSources(client *http.Client) []Source {
	return []Source{
		NewCoinGeckoSource(CoinGeckoBaseURL, client),
		NewJupiterSource(JupiterBaseURL, client),
		NewBirdeyeSource(BirdeyeBaseURL, client),
	}
}

// internal/dex/jupiter/jupiter.go
package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/blockchain/solbc/rpc"
)

var (
	ErrEmptyRoute         = errors.New("no valid route plan received")
	ErrNoSwapTransaction  = errors.New("no swap transaction received")
	ErrInvalidQuoteAmount = errors.New("invalid quote amount")
)

// QuoteRequest - параметры GET /quote
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // в минимальных единицах входного токена
	SlippageBps int
}

// SwapInfo - один шаг маршрута
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

type RoutePlan struct {
	Percent  int      `json:"percent"`
	SwapInfo SwapInfo `json:"swapInfo"`
}

// Quote - ответ /quote. Исходный JSON сохраняется и передается в /swap без изменений.
type Quote struct {
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             string      `json:"inAmount"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          int         `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ContextSlot          uint64      `json:"contextSlot"`

	raw json.RawMessage
}

// FinalOutputMint возвращает выходной токен последнего шага маршрута
func (q *Quote) FinalOutputMint() string {
	if len(q.RoutePlan) == 0 {
		return ""
	}
	return q.RoutePlan[len(q.RoutePlan)-1].SwapInfo.OutputMint
}

// OutAmountUnits разбирает ожидаемый выход в минимальных единицах
func (q *Quote) OutAmountUnits() (uint64, error) {
	v, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: outAmount %q", ErrInvalidQuoteAmount, q.OutAmount)
	}
	return v, nil
}

// PriorityFee сериализуется числом лампортов или строкой "auto"
type PriorityFee struct {
	Lamports uint64
	Auto     bool
}

func AutoPriorityFee() PriorityFee { return PriorityFee{Auto: true} }

func (f PriorityFee) MarshalJSON() ([]byte, error) {
	if f.Auto {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.FormatUint(f.Lamports, 10)), nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSOL          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports PriorityFee     `json:"prioritizationFeeLamports"`
	AsLegacyTransaction       bool            `json:"asLegacyTransaction"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// Client - клиент Jupiter v6 swap API
type Client struct {
	pool   *rpc.Pool[*http.Client]
	logger *zap.Logger
	opts   []rpc.ExecuteOption
}

// NewClient создает клиента для baseURL (например https://quote-api.jup.ag/v6)
func NewClient(baseURL string, client *http.Client, logger *zap.Logger, opts ...rpc.ExecuteOption) (*Client, error) {
	logger = logger.Named("jupiter")
	pool, err := rpc.NewPool("jupiter", []string{baseURL}, func(string) *http.Client { return client }, logger)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool, logger: logger, opts: opts}, nil
}

func (c *Client) execOpts(method string) []rpc.ExecuteOption {
	return append([]rpc.ExecuteOption{rpc.WithMethod(method)}, c.opts...)
}

// GetQuote запрашивает лучший маршрут. Пустой маршрут возвращается как ErrEmptyRoute.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("onlyDirectRoutes", "false")
	q.Set("asLegacyTransaction", "false")

	raw, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *rpc.Endpoint[*http.Client]) (json.RawMessage, error) {
		var out json.RawMessage
		if err := rpc.GetJSON(ctx, ep.Client, ep.URL+"/quote?"+q.Encode(), &out); err != nil {
			return nil, err
		}
		return out, nil
	}, c.execOpts("jupiter.quote")...)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	quote.raw = raw

	if len(quote.RoutePlan) == 0 {
		return nil, ErrEmptyRoute
	}

	c.logger.Debug("Quote received",
		zap.String("in", quote.InputMint),
		zap.String("out", quote.OutputMint),
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount),
		zap.String("price_impact", quote.PriceImpactPct),
		zap.Int("hops", len(quote.RoutePlan)))

	return &quote, nil
}

// BuildSwap запрашивает неподписанную транзакцию свопа для котировки
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, owner solana.PublicKey, fee PriorityFee) (*solana.Transaction, error) {
	quoteJSON := quote.raw
	if len(quoteJSON) == 0 {
		var err error
		if quoteJSON, err = json.Marshal(quote); err != nil {
			return nil, fmt.Errorf("marshal quote: %w", err)
		}
	}

	body := swapRequest{
		QuoteResponse:             quoteJSON,
		UserPublicKey:             owner.String(),
		WrapAndUnwrapSOL:          true,
		PrioritizationFeeLamports: fee,
		DynamicComputeUnitLimit:   true,
	}

	resp, err := rpc.Execute(ctx, c.pool, func(ctx context.Context, ep *rpc.Endpoint[*http.Client]) (*swapResponse, error) {
		var out swapResponse
		if err := rpc.PostJSON(ctx, ep.Client, ep.URL+"/swap", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, c.execOpts("jupiter.swap")...)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, ErrNoSwapTransaction
	}

	return DecodeTransaction(resp.SwapTransaction)
}

// DecodeTransaction разбирает транзакцию в base64 (legacy или versioned)
func DecodeTransaction(b64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("parse swap transaction: %w", err)
	}
	return tx, nil
}

// internal/domain/snapshot.go
package domain

import "time"

// PositionView - позиция в том виде, в каком она уходит на панель мониторинга
type PositionView struct {
	Address       string    `json:"address"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	MarketCap     float64   `json:"marketCap"`
	PriceUSD      float64   `json:"priceUsd"`
	PriceChange   float64   `json:"priceChange"`
	Balance       float64   `json:"balance"`
	PositionValue float64   `json:"positionValue"`
	PurchaseTime  time.Time `json:"purchaseTime"`
	// RemovalPending - токен пропал из кошелька, ждем окончания окна
	RemovalPending bool `json:"removalPending,omitempty"`
}

// SoldView - запись истории продаж для панели
type SoldView struct {
	Address    string    `json:"address"`
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	ProfitLoss float64   `json:"profitLoss"`
	SoldAt     time.Time `json:"soldAt"`
}

// Snapshot - состояние портфеля после одного цикла сверки.
// Positions идут в порядке покупки; пустые списки сериализуются как [].
type Snapshot struct {
	Positions        []PositionView `json:"positions"`
	SoldPositions    []SoldView     `json:"soldPositions"`
	WalletBalanceSOL float64        `json:"walletBalanceSOL"`
	WalletBalanceUSD float64        `json:"walletBalanceUSD"`
	SOLPriceUSD      float64        `json:"solPriceUSD"`
	LastUpdateTime   time.Time      `json:"lastUpdateTime"`
}

// Position возвращает представление позиции по адресу минта
func (s *Snapshot) Position(address string) (PositionView, bool) {
	for _, p := range s.Positions {
		if p.Address == address {
			return p, true
		}
	}
	return PositionView{}, false
}

// WithPosition возвращает копию снимка, где позиция с тем же адресом
// заменена на p, а новая добавлена в конец.
func (s *Snapshot) WithPosition(p PositionView) *Snapshot {
	out := *s
	out.Positions = make([]PositionView, 0, len(s.Positions)+1)
	replaced := false
	for _, cur := range s.Positions {
		if cur.Address == p.Address {
			cur, replaced = p, true
		}
		out.Positions = append(out.Positions, cur)
	}
	if !replaced {
		out.Positions = append(out.Positions, p)
	}
	out.SoldPositions = append([]SoldView{}, s.SoldPositions...)
	return &out
}

// TotalValueUSD - суммарная стоимость открытых позиций
func (s *Snapshot) TotalValueUSD() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.PositionValue
	}
	return total
}

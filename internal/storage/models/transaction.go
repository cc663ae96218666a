// internal/storage/models/transaction.go
package models

import "time"

const (
	SideBuy  = "buy"
	SideSell = "sell"

	TxSubmitted = "submitted"
	TxConfirmed = "confirmed"
	TxFailed    = "failed"
)

// Transaction - журнал отправленных свопов
type Transaction struct {
	Signature   string    `json:"signature" gorm:"primaryKey;type:varchar(88)"`
	Side        string    `json:"side" gorm:"not null;type:varchar(4)"`
	Mint        string    `json:"mint" gorm:"index;not null;type:varchar(44)"`
	Symbol      string    `json:"symbol" gorm:"type:varchar(32)"`
	AmountIn    uint64    `json:"amountIn"`
	ExpectedOut uint64    `json:"expectedOut"`
	Status      string    `json:"status" gorm:"not null;type:varchar(20)"`
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// internal/storage/models/position.go
package models

import (
	"errors"
	"time"
)

var (
	ErrInvalidAddress        = errors.New("position address is empty")
	ErrInvalidPurchaseAmount = errors.New("purchase amount must be positive")
	ErrInvalidEntryPrice     = errors.New("entry price must be positive")
)

// Position - открытая позиция по одному токену. Address уникален.
type Position struct {
	Address          string     `json:"address" gorm:"primaryKey;type:varchar(44)"`
	Symbol           string     `json:"symbol" gorm:"type:varchar(32)"`
	Name             string     `json:"name" gorm:"type:varchar(100)"`
	EntryPrice       float64    `json:"initialPrice" gorm:"not null"`
	EntryLiquidity   float64    `json:"initialLiquidity"`
	PurchaseAmount   float64    `json:"purchaseAmount" gorm:"not null"`
	PurchaseTime     time.Time  `json:"purchaseTime" gorm:"index"`
	LastSeen         *time.Time `json:"lastSeen,omitempty"`
	RemovalPending   bool       `json:"removalPending,omitempty"`
	RemovalStartTime *time.Time `json:"removalStartTime,omitempty"`
}

// Validate проверяет инварианты: позиция без суммы или цены входа не создается.
func (p Position) Validate() error {
	if p.Address == "" {
		return ErrInvalidAddress
	}
	if !(p.PurchaseAmount > 0) {
		return ErrInvalidPurchaseAmount
	}
	if !(p.EntryPrice > 0) {
		return ErrInvalidEntryPrice
	}
	return nil
}

// SoldPosition - запись о закрытой позиции, ключ Address (перезаписывается при повторной продаже).
type SoldPosition struct {
	Address           string    `json:"address" gorm:"primaryKey;type:varchar(44)"`
	Symbol            string    `json:"symbol" gorm:"type:varchar(32)"`
	Name              string    `json:"name" gorm:"type:varchar(100)"`
	ProfitLossPercent float64   `json:"profitLoss"`
	SoldAt            time.Time `json:"soldAt" gorm:"index"`
}

// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

// Storage определяет интерфейс для работы с хранилищем.
// Save* всегда заменяют коллекцию целиком.
type Storage interface {
	// Открытые позиции
	LoadPositions(ctx context.Context) ([]models.Position, error)
	SavePositions(ctx context.Context, positions []models.Position) error

	// История продаж
	LoadSoldPositions(ctx context.Context) ([]models.SoldPosition, error)
	SaveSoldPositions(ctx context.Context, sold []models.SoldPosition) error

	// Журнал транзакций (только добавление)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error

	Close() error
}

// internal/position/mocks_test.go
package position

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

// MockStorage реализует интерфейс storage.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) LoadPositions(ctx context.Context) ([]models.Position, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Position), args.Error(1)
}

func (m *MockStorage) SavePositions(ctx context.Context, positions []models.Position) error {
	return m.Called(ctx, positions).Error(0)
}

func (m *MockStorage) LoadSoldPositions(ctx context.Context) ([]models.SoldPosition, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.SoldPosition), args.Error(1)
}

func (m *MockStorage) SaveSoldPositions(ctx context.Context, sold []models.SoldPosition) error {
	return m.Called(ctx, sold).Error(0)
}

func (m *MockStorage) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockStorage) Close() error {
	return m.Called().Error(0)
}

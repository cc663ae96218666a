// internal/storage/jsonfile/jsonfile.go
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

const (
	ActivePositionsFile = "active_tokens.json"
	SoldPositionsFile   = "sold_positions.json"
	TransactionsFile    = "transactions.jsonl"
)

// fileStorage хранит коллекции в JSON файлах каталога dir.
// Каждая запись - полная перезапись через временный файл и rename.
type fileStorage struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

var _ storage.Storage = (*fileStorage)(nil)

func NewStorage(dir string, logger *zap.Logger) (storage.Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &fileStorage{
		dir:    dir,
		logger: logger.Named("jsonfile"),
	}, nil
}

func (s *fileStorage) LoadPositions(_ context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := s.readJSON(ActivePositionsFile, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (s *fileStorage) SavePositions(_ context.Context, positions []models.Position) error {
	if positions == nil {
		positions = []models.Position{}
	}
	return s.writeJSON(ActivePositionsFile, positions)
}

func (s *fileStorage) LoadSoldPositions(_ context.Context) ([]models.SoldPosition, error) {
	var sold []models.SoldPosition
	if err := s.readJSON(SoldPositionsFile, &sold); err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *fileStorage) SaveSoldPositions(_ context.Context, sold []models.SoldPosition) error {
	if sold == nil {
		sold = []models.SoldPosition{}
	}
	return s.writeJSON(SoldPositionsFile, sold)
}

// SaveTransaction дописывает строку в журнал
func (s *fileStorage) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, TransactionsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transactions journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transactions journal: %w", err)
	}
	return nil
}

func (s *fileStorage) Close() error { return nil }

func (s *fileStorage) readJSON(name string, dst interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *fileStorage) writeJSON(name string, src interface{}) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.logger.Debug("Saved collection", zap.String("file", name))
	return nil
}

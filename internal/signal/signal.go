// internal/signal/signal.go
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// PendingFile - файл с выбранным для покупки токеном
const PendingFile = "selected_token.json"

// ErrInvalidSignal возникает для нечитаемого или неполного сигнала
var ErrInvalidSignal = errors.New("invalid buy signal")

// Candidate - токен, выбранный внешним сканером для покупки
type Candidate struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Validate проверяет обязательные поля и адрес mint
func (c Candidate) Validate() error {
	if c.Address == "" || c.Name == "" || c.Symbol == "" {
		return fmt.Errorf("%w: address, name and symbol are required", ErrInvalidSignal)
	}
	if _, err := solana.PublicKeyFromBase58(c.Address); err != nil {
		return fmt.Errorf("%w: bad address %q: %v", ErrInvalidSignal, c.Address, err)
	}
	return nil
}

// Source - поставщик сигналов на покупку
type Source interface {
	// Peek возвращает ожидающий сигнал или nil, если его нет
	Peek() (*Candidate, error)
	// Consume удаляет сигнал; повторный вызов не ошибка
	Consume() error
}

// FileSource читает сигнал из selected_token.json в каталоге данных
type FileSource struct {
	path   string
	logger *zap.Logger
}

var _ Source = (*FileSource)(nil)

func NewFileSource(dir string, logger *zap.Logger) *FileSource {
	return &FileSource{
		path:   filepath.Join(dir, PendingFile),
		logger: logger.Named("signal"),
	}
}

func (f *FileSource) Peek() (*Candidate, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", PendingFile, err)
	}

	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (f *FileSource) Consume() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", PendingFile, err)
	}
	f.logger.Debug("Buy signal consumed")
	return nil
}

// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var ErrSignerNotFound = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из секретного ключа: base58 строка
// или JSON массив из 64 байт (формат solana-keygen).
func NewWallet(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)

	var privateKeyBytes []byte
	if strings.HasPrefix(secret, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return nil, fmt.Errorf("failed to decode private key array: %w", err)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid private key byte %d", v)
			}
			raw = append(raw, byte(v))
		}
		privateKeyBytes = raw
	} else {
		decoded, err := base58.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key: %w", err)
		}
		privateKeyBytes = decoded
	}

	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// SignTransaction подписывает готовую (например, собранную агрегатором) транзакцию.
// Подпись кладется в слот кошелька; чужие слоты не трогаются.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	idx := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(w.PublicKey) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSignerNotFound
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	sig, err := w.PrivateKey.Sign(msg)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}

	if len(tx.Signatures) < required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[idx] = sig
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

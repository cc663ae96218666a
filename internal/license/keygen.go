// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

const DefaultHeartbeatInterval = 10 * time.Minute

var (
	ErrLicenseExpired  = errors.New("license has expired")
	ErrLicenseNotFound = errors.New("license not found")
	ErrNoFingerprint   = errors.New("no network interfaces for machine fingerprint")
)

// Config - реквизиты Keygen. Пустой Key отключает проверку.
type Config struct {
	Key          string
	AccountID    string
	ProductID    string
	ProductToken string
}

func (c Config) Enabled() bool {
	return c.Key != ""
}

// Validator проверяет лицензию бота через Keygen.sh
type Validator struct {
	cfg         Config
	logger      *zap.Logger
	fingerprint func() (string, error)
}

func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	keygen.Account = cfg.AccountID
	keygen.Product = cfg.ProductID
	keygen.Token = cfg.ProductToken
	keygen.LicenseKey = cfg.Key

	return &Validator{
		cfg:         cfg,
		logger:      logger.Named("license"),
		fingerprint: machineFingerprint,
	}
}

// Validate проверяет ключ и активирует машину, если лицензия еще не привязана
func (v *Validator) Validate(ctx context.Context) error {
	v.logger.Info("Validating license", zap.String("key", maskKey(v.cfg.Key)))

	fingerprint, err := v.fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	lic, err := keygen.Validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		v.logger.Info("License not activated, attempting activation")
		machine, activateErr := lic.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		v.logger.Info("License activated", zap.String("machine_id", machine.ID))
	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrLicenseExpired
	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if lic == nil {
		return ErrLicenseNotFound
	}
	v.logger.Info("License validation successful", zap.String("license_id", lic.ID))
	return nil
}

// KeepAlive повторяет проверку с интервалом до отмены контекста.
// Ошибки heartbeat только логируются: торговля не останавливается из-за сети Keygen.
func (v *Validator) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.heartbeat(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn("License heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (v *Validator) heartbeat(ctx context.Context) error {
	fingerprint, err := v.fingerprint()
	if err != nil {
		return err
	}
	if _, err := keygen.Validate(ctx, fingerprint); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	v.logger.Debug("License heartbeat sent")
	return nil
}

// machineFingerprint - sha256 от имени хоста, первого MAC и ОС
func machineFingerprint() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			macs = append(macs, iface.HardwareAddr.String())
		}
	}
	if len(macs) == 0 {
		return "", ErrNoFingerprint
	}
	sort.Strings(macs)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fingerprintOf(hostname, macs[0], runtime.GOOS), nil
}

func fingerprintOf(hostname, mac, goos string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, goos)))
	return fmt.Sprintf("%x", sum)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..."
}

// internal/license/keygen_test.go
package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Key: "ABCD-1234"}.Enabled())
}

func TestFingerprintOf(t *testing.T) {
	a := fingerprintOf("host", "aa:bb:cc:dd:ee:ff", "linux")
	assert.Len(t, a, 64)
	assert.Equal(t, a, fingerprintOf("host", "aa:bb:cc:dd:ee:ff", "linux"))
	assert.NotEqual(t, a, fingerprintOf("other", "aa:bb:cc:dd:ee:ff", "linux"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "ABCDEFGH...", maskKey("ABCDEFGH-1234-5678"))
}

func TestValidate_FingerprintError(t *testing.T) {
	v := NewValidator(Config{Key: "ABCDEFGH-1234"}, zaptest.NewLogger(t))
	v.fingerprint = func() (string, error) { return "", ErrNoFingerprint }

	err := v.Validate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFingerprint))
}

func TestKeepAlive_StopsOnCancel(t *testing.T) {
	v := NewValidator(Config{Key: "ABCDEFGH-1234"}, zaptest.NewLogger(t))
	v.fingerprint = func() (string, error) { return "", ErrNoFingerprint }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, v.KeepAlive(ctx, 10*time.Millisecond))
}

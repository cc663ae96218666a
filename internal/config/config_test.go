package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `{
		"rpc_list": ["https://api.mainnet-beta.solana.com", "https://rpc.ankr.com/solana"],
		"private_key": "secret"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Len(t, cfg.RPCList, 2)
	assert.Equal(t, DefaultAmountSOL, cfg.AmountSOL)
	assert.Equal(t, DefaultTakeProfitPercentage, cfg.TakeProfitPercentage)
	assert.Equal(t, DefaultStopLossPercentage, cfg.StopLossPercentage)
	assert.Equal(t, DefaultSellSlippageBps, cfg.SellSlippageBps)
	assert.Equal(t, "json", cfg.StorageDriver)
	assert.Equal(t, []string{DefaultDexScreenerURL}, cfg.DexScreenerURLs)
	assert.Equal(t, 10*time.Second, cfg.CycleInterval())
	assert.Equal(t, 30*time.Second, cfg.DebounceDuration())
	assert.Equal(t, time.Second, cfg.RateLimitBackoff())
	assert.Equal(t, time.Minute, cfg.PriceTTL())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"rpc_list": ["https://a.example.com"], "take_profit_percentage": 25}`)

	t.Setenv("SOLANA_BOT_RPC_LIST", " https://b.example.com, https://c.example.com ,")
	t.Setenv("SOLANA_BOT_PRIVATE_KEY", "from-env")
	t.Setenv("SOLANA_BOT_STOP_LOSS_PERCENTAGE", "15")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://b.example.com", "https://c.example.com"}, cfg.RPCList)
	assert.Equal(t, "from-env", cfg.PrivateKey)
	assert.Equal(t, 25.0, cfg.TakeProfitPercentage)
	assert.Equal(t, 15.0, cfg.StopLossPercentage)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing rpc", `{"private_key": "k"}`},
		{"missing key", `{"rpc_list": ["https://a.example.com"]}`},
		{"bad rpc scheme", `{"rpc_list": ["ftp://a.example.com"], "private_key": "k"}`},
		{"bad dashboard", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "dashboard_url": "http://localhost:3005"}`},
		{"stop loss over 100", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "stop_loss_percentage": 120}`},
		{"sql without dsn", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "storage_driver": "postgres"}`},
		{"unknown driver", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "storage_driver": "redis"}`},
		{"zero debounce window", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "debounce_window": 0}`},
		{"zero rate limit backoff", `{"rpc_list": ["https://a.example.com"], "private_key": "k", "rate_limit_backoff_ms": 0}`},
		{"dashboard reuses rpc url", `{"rpc_list": ["http://localhost:3005"], "private_key": "k", "dashboard_url": "http://localhost:3005"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidateURLWithCache_KeyedByProtocol(t *testing.T) {
	const u = "http://cache-check.example.com:3005"

	require.NoError(t, validateURLWithCache(u, "http"))
	require.NoError(t, validateURLWithCache(u, "http"), "cached result")
	assert.Error(t, validateURLWithCache(u, "ws"), "an http check must not validate a ws URL")

	require.NoError(t, validateURLWithCache("wss://cache-check.example.com/ws", "ws"))
}

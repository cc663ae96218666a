// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	RPCList    []string `mapstructure:"rpc_list"`
	PrivateKey string   `mapstructure:"private_key"`

	AmountSOL       float64 `mapstructure:"amount_sol"`
	SlippageBps     int     `mapstructure:"slippage_bps"`
	SellSlippageBps int     `mapstructure:"sell_slippage_bps"`
	PriorityFeeSOL  float64 `mapstructure:"priority_fee_sol"`

	TakeProfitPercentage    float64 `mapstructure:"take_profit_percentage"`
	StopLossPercentage      float64 `mapstructure:"stop_loss_percentage"`
	LiquidityDropPercentage float64 `mapstructure:"liquidity_drop_percentage"`
	MinLiquidityUSD         float64 `mapstructure:"min_liquidity_usd"`

	PriceCheckInterval int `mapstructure:"price_check_interval"` // секунды
	DebounceWindow     int `mapstructure:"debounce_window"`      // секунды
	VerifyInterval     int `mapstructure:"verify_interval"`      // секунды
	VerifyAttempts     int `mapstructure:"verify_attempts"`
	SubmitAttempts     int `mapstructure:"submit_attempts"`
	RateLimitBackoffMs int `mapstructure:"rate_limit_backoff_ms"`
	PriceCacheTTL      int `mapstructure:"price_cache_ttl"` // секунды

	DefaultSOLPrice float64 `mapstructure:"default_sol_price"`

	DataDir       string `mapstructure:"data_dir"`
	DashboardURL  string `mapstructure:"dashboard_url"`
	StorageDriver string `mapstructure:"storage_driver"`
	StorageDSN    string `mapstructure:"storage_dsn"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
	LogFile       string `mapstructure:"log_file"`
	DebugLogging  bool   `mapstructure:"debug_logging"`

	JupiterAPIURL      string   `mapstructure:"jupiter_api_url"`
	JupiterTokenAPIURL string   `mapstructure:"jupiter_token_api_url"`
	DexScreenerURLs    []string `mapstructure:"dexscreener_urls"`

	License            string `mapstructure:"license"`
	KeygenAccountID    string `mapstructure:"keygen_account_id"`
	KeygenProductID    string `mapstructure:"keygen_product_id"`
	KeygenProductToken string `mapstructure:"keygen_product_token"`
}

const (
	DefaultAmountSOL               = 0.4
	DefaultSlippageBps             = 1000
	DefaultSellSlippageBps         = 3000
	DefaultPriorityFeeSOL          = 0.0015
	DefaultTakeProfitPercentage    = 40.0
	DefaultStopLossPercentage      = 30.0
	DefaultLiquidityDropPercentage = 50.0
	DefaultMinLiquidityUSD         = 1000.0
	DefaultPriceCheckInterval      = 10
	DefaultDebounceWindow          = 30
	DefaultVerifyInterval          = 3
	DefaultVerifyAttempts          = 10
	DefaultSubmitAttempts          = 3
	DefaultRateLimitBackoffMs      = 1000
	DefaultPriceCacheTTL           = 60
	DefaultSOLPrice                = 20.0
	DefaultDataDir                 = "."
	DefaultDashboardURL            = "ws://localhost:3005"
	DefaultStorageDriver           = "json"
	DefaultLogFile                 = "logs/autotrader.log"
	DefaultJupiterAPIURL           = "https://quote-api.jup.ag/v6"
	DefaultJupiterTokenAPIURL      = "https://tokens.jup.ag"
	DefaultDexScreenerURL          = "https://api.dexscreener.com"
)

var (
	ErrMissingRPCList    = errors.New("rpc_list is empty")
	ErrMissingPrivateKey = errors.New("private_key is required")
)

// LoadConfig читает .env (если есть), файл конфигурации (если указан) и
// переменные окружения с префиксом SOLANA_BOT_.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults := map[string]interface{}{
		"amount_sol":                DefaultAmountSOL,
		"slippage_bps":              DefaultSlippageBps,
		"sell_slippage_bps":         DefaultSellSlippageBps,
		"priority_fee_sol":          DefaultPriorityFeeSOL,
		"take_profit_percentage":    DefaultTakeProfitPercentage,
		"stop_loss_percentage":      DefaultStopLossPercentage,
		"liquidity_drop_percentage": DefaultLiquidityDropPercentage,
		"min_liquidity_usd":         DefaultMinLiquidityUSD,
		"price_check_interval":      DefaultPriceCheckInterval,
		"debounce_window":           DefaultDebounceWindow,
		"verify_interval":           DefaultVerifyInterval,
		"verify_attempts":           DefaultVerifyAttempts,
		"submit_attempts":           DefaultSubmitAttempts,
		"rate_limit_backoff_ms":     DefaultRateLimitBackoffMs,
		"price_cache_ttl":           DefaultPriceCacheTTL,
		"default_sol_price":         DefaultSOLPrice,
		"data_dir":                  DefaultDataDir,
		"dashboard_url":             DefaultDashboardURL,
		"storage_driver":            DefaultStorageDriver,
		"log_file":                  DefaultLogFile,
		"jupiter_api_url":           DefaultJupiterAPIURL,
		"jupiter_token_api_url":     DefaultJupiterTokenAPIURL,
		"dexscreener_urls":          []string{DefaultDexScreenerURL},
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	loadEnvironmentVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	applyListOverrides(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix("SOLANA_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv не видит ключи без значения по умолчанию при Unmarshal
	for _, key := range []string{"private_key", "license", "storage_dsn", "metrics_addr",
		"keygen_account_id", "keygen_product_id", "keygen_product_token"} {
		_ = v.BindEnv(key)
	}
}

// applyListOverrides разбирает списки из окружения, заданные через запятую
func applyListOverrides(v *viper.Viper, cfg *Config) {
	if list := splitList(v.GetString("RPC_LIST")); len(list) > 0 {
		cfg.RPCList = list
	}
	if list := splitList(v.GetString("DEXSCREENER_URLS")); len(list) > 0 {
		cfg.DexScreenerURLs = list
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var clean []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			clean = append(clean, item)
		}
	}
	return clean
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return ErrMissingRPCList
	}
	if cfg.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.DashboardURL != "" {
		if err := validateURLWithCache(cfg.DashboardURL, "ws"); err != nil {
			return errors.New("invalid dashboard WebSocket URL protocol")
		}
	}
	for _, u := range append([]string{cfg.JupiterAPIURL, cfg.JupiterTokenAPIURL}, cfg.DexScreenerURLs...) {
		if err := validateURLWithCache(u, "http"); err != nil {
			return fmt.Errorf("invalid API URL %q: %w", u, err)
		}
	}
	switch cfg.StorageDriver {
	case "json":
	case "postgres", "sqlite":
		if cfg.StorageDSN == "" {
			return fmt.Errorf("storage_dsn is required for driver %s", cfg.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage_driver %q", cfg.StorageDriver)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.AmountSOL <= 0 {
		return errors.New("invalid amount_sol")
	}
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.SellSlippageBps <= 0 || cfg.SellSlippageBps > 10000 {
		return errors.New("invalid sell_slippage_bps")
	}
	if cfg.PriorityFeeSOL < 0 {
		return errors.New("invalid priority_fee_sol")
	}
	if cfg.TakeProfitPercentage <= 0 {
		return errors.New("invalid take_profit_percentage")
	}
	if cfg.StopLossPercentage <= 0 || cfg.StopLossPercentage > 100 {
		return errors.New("invalid stop_loss_percentage")
	}
	if cfg.LiquidityDropPercentage <= 0 || cfg.LiquidityDropPercentage > 100 {
		return errors.New("invalid liquidity_drop_percentage")
	}
	if cfg.MinLiquidityUSD < 0 {
		return errors.New("invalid min_liquidity_usd")
	}
	if cfg.PriceCheckInterval <= 0 {
		return errors.New("invalid price_check_interval")
	}
	if cfg.DebounceWindow <= 0 {
		return errors.New("invalid debounce_window")
	}
	if cfg.VerifyInterval <= 0 || cfg.VerifyAttempts <= 0 {
		return errors.New("invalid verify_interval or verify_attempts")
	}
	if cfg.SubmitAttempts <= 0 {
		return errors.New("invalid submit_attempts")
	}
	if cfg.RateLimitBackoffMs <= 0 {
		return errors.New("invalid rate_limit_backoff_ms")
	}
	if cfg.PriceCacheTTL <= 0 {
		return errors.New("invalid price_cache_ttl")
	}
	if cfg.DefaultSOLPrice <= 0 {
		return errors.New("invalid default_sol_price")
	}
	return nil
}

// urlCache хранит уже проверенные пары (протокол, адрес)
var urlCache sync.Map

type urlCacheKey struct {
	protocol string
	url      string
}

func validateURLWithCache(rawURL string, protocol string) error {
	key := urlCacheKey{protocol: protocol, url: rawURL}
	if _, ok := urlCache.Load(key); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(key, parsed)
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) CycleInterval() time.Duration { return seconds(c.PriceCheckInterval) }
func (c *Config) DebounceDuration() time.Duration { return seconds(c.DebounceWindow) }
func (c *Config) VerifyPollInterval() time.Duration { return seconds(c.VerifyInterval) }
func (c *Config) PriceTTL() time.Duration { return seconds(c.PriceCacheTTL) }

func (c *Config) RateLimitBackoff() time.Duration {
	return time.Duration(c.RateLimitBackoffMs) * time.Millisecond
}

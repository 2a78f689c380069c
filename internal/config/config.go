package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/atomx-labs/atomx/internal/quote"
)

type Config struct {
	AggregatorURL       string            `mapstructure:"aggregator_url"`
	AggregatorProgramID string            `mapstructure:"aggregator_program_id"`
	BaseMint            string            `mapstructure:"base_mint"`
	ScanIntervalMs      int               `mapstructure:"scan_interval_ms"`
	PairDelayMs         int               `mapstructure:"pair_delay_ms"`
	QuoteRatePerSecond  int               `mapstructure:"quote_rate_per_second"`
	MinProfitUSD        float64           `mapstructure:"min_profit_usd"`
	MinProfitPercentage float64           `mapstructure:"min_profit_percentage"`
	MaxPriceImpact      float64           `mapstructure:"max_price_impact"`
	TestVolumeUSD       float64           `mapstructure:"test_volume_usd"`
	FreshnessWindowSec  int               `mapstructure:"freshness_window_sec"`
	ExecutorFeeBPS      int               `mapstructure:"executor_fee_bps"`
	RouterFeeBPS        int               `mapstructure:"router_fee_bps"`
	NetworkFeePerTxSOL  float64           `mapstructure:"network_fee_per_tx_sol"`
	SOLPriceUSD         float64           `mapstructure:"sol_price_usd"`
	Venues              []string          `mapstructure:"venues"`
	Pairs               []quote.TokenPair `mapstructure:"pairs"`
	PostgresURL         string            `mapstructure:"postgres_url"`
	DebugLogging        bool              `mapstructure:"debug_logging"`
}

const (
	DefaultScanIntervalMs     = 30000
	DefaultPairDelayMs        = 500
	DefaultQuoteRate          = 4
	DefaultFreshnessWindowSec = 120
	DefaultExecutorFeeBPS     = 1000
	DefaultRouterFeeBPS       = 30
	DefaultMinProfitUSD       = 1.0
	DefaultMinProfitPct       = 0.5
	DefaultMaxPriceImpact     = 1.0
	DefaultTestVolumeUSD      = 1000.0
	DefaultNetworkFeeSOL      = 0.000105
	DefaultSOLPriceUSD        = 150.0
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"scan_interval_ms":       DefaultScanIntervalMs,
		"pair_delay_ms":          DefaultPairDelayMs,
		"quote_rate_per_second":  DefaultQuoteRate,
		"freshness_window_sec":   DefaultFreshnessWindowSec,
		"executor_fee_bps":       DefaultExecutorFeeBPS,
		"router_fee_bps":         DefaultRouterFeeBPS,
		"min_profit_usd":         DefaultMinProfitUSD,
		"min_profit_percentage":  DefaultMinProfitPct,
		"max_price_impact":       DefaultMaxPriceImpact,
		"test_volume_usd":        DefaultTestVolumeUSD,
		"network_fee_per_tx_sol": DefaultNetworkFeeSOL,
		"sol_price_usd":          DefaultSOLPriceUSD,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.AggregatorURL == "" {
		return errors.New("missing aggregator_url in configuration")
	}
	if err := validateURL(cfg.AggregatorURL, "http"); err != nil {
		return errors.New("invalid aggregator URL protocol")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.AggregatorProgramID); err != nil {
		return errors.New("invalid aggregator_program_id")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.BaseMint); err != nil {
		return errors.New("invalid base_mint")
	}
	if len(cfg.Pairs) == 0 {
		return errors.New("pairs list is empty")
	}
	if len(cfg.Venues) == 0 {
		return errors.New("venues list is empty")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.ScanIntervalMs <= 0 {
		return errors.New("invalid scan_interval_ms")
	}
	if cfg.PairDelayMs < 0 {
		return errors.New("invalid pair_delay_ms")
	}
	if cfg.QuoteRatePerSecond <= 0 {
		return errors.New("invalid quote_rate_per_second")
	}
	if cfg.FreshnessWindowSec <= 0 {
		return errors.New("invalid freshness_window_sec")
	}
	if cfg.ExecutorFeeBPS <= 0 || cfg.ExecutorFeeBPS > 10000 {
		return errors.New("invalid executor_fee_bps")
	}
	if cfg.RouterFeeBPS < 0 || cfg.RouterFeeBPS > 1000 {
		return errors.New("invalid router_fee_bps")
	}
	if cfg.MinProfitUSD < 0 || cfg.MinProfitPercentage < 0 {
		return errors.New("invalid minimum profit thresholds")
	}
	if cfg.MaxPriceImpact <= 0 {
		return errors.New("invalid max_price_impact")
	}
	if cfg.TestVolumeUSD <= 0 {
		return errors.New("invalid test_volume_usd")
	}
	if cfg.NetworkFeePerTxSOL < 0 || cfg.SOLPriceUSD <= 0 {
		return errors.New("invalid network fee parameters")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("ATOMX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envURL := v.GetString("AGGREGATOR_URL"); envURL != "" {
		cfg.AggregatorURL = envURL
	}
	if envPostgres := v.GetString("POSTGRES_URL"); envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}
}

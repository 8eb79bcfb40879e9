// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/lasersell/lasersell/internal/stream"
)

type Config struct {
	Account  AccountConfig  `mapstructure:"account" yaml:"account"`
	Strategy StrategyConfig `mapstructure:"strategy" yaml:"strategy"`
	Sell     SellConfig     `mapstructure:"sell" yaml:"sell"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

type AccountConfig struct {
	KeypairPath string `mapstructure:"keypair_path" yaml:"keypair_path"`
	RPCURL      string `mapstructure:"rpc_url" yaml:"rpc_url"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	Local       bool   `mapstructure:"local" yaml:"local"`
	Devnet      bool   `mapstructure:"devnet" yaml:"devnet,omitempty"`
}

// StrategyConfig is forwarded to the stream server, which owns exit decisions.
type StrategyConfig struct {
	TargetProfit       Percent `mapstructure:"target_profit" yaml:"target_profit"`
	StopLoss           Percent `mapstructure:"stop_loss" yaml:"stop_loss"`
	DeadlineTimeoutSec uint64  `mapstructure:"deadline_timeout" yaml:"deadline_timeout"`
}

// SellConfig controls slippage escalation and confirmation for sells.
type SellConfig struct {
	SlippagePadBps            uint16 `mapstructure:"slippage_pad_bps" yaml:"slippage_pad_bps"`
	SlippageRetryBumpBpsFirst uint16 `mapstructure:"slippage_retry_bump_bps_first" yaml:"slippage_retry_bump_bps_first"`
	SlippageRetryBumpBpsNext  uint16 `mapstructure:"slippage_retry_bump_bps_next" yaml:"slippage_retry_bump_bps_next"`
	SlippageMaxBps            uint16 `mapstructure:"slippage_max_bps" yaml:"slippage_max_bps"`
	ConfirmTimeoutSec         uint64 `mapstructure:"confirm_timeout_sec" yaml:"confirm_timeout_sec"`
	MaxRetries                int    `mapstructure:"max_retries" yaml:"max_retries"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Debug      bool   `mapstructure:"debug" yaml:"debug"`
}

// StatusConfig controls the local HTTP status server. Non-loopback
// addresses need AllowRemote and a Token.
type StatusConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Token           string        `mapstructure:"token" yaml:"token,omitempty"`
	AllowRemote     bool          `mapstructure:"allow_remote" yaml:"allow_remote,omitempty"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Token   string `mapstructure:"token" yaml:"token"`
	ChatID  int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

const (
	DefaultSlippagePadBps       = 2000
	DefaultSlippageBumpFirstBps = 20
	DefaultSlippageBumpNextBps  = 40
	DefaultSlippageMaxBps       = 2500
	DefaultConfirmTimeoutSec    = 10
	DefaultDevnetConfirmTimeout = 25
	DefaultMaxRetries           = 2

	DefaultStatusAddr  = "127.0.0.1:9477"
	DefaultJournalPath = "data/journal.db"
	DefaultLogFile     = "logs/lasersell.log"

	// Fixed client timeouts.
	RPCRequestTimeout     = 800 * time.Millisecond
	ExitAPIConnectTimeout = 200 * time.Millisecond
	ExitAPIAttemptTimeout = 900 * time.Millisecond
)

// DefaultSellConfig returns the sell tuning used when the file omits it.
func DefaultSellConfig() SellConfig {
	return SellConfig{
		SlippagePadBps:            DefaultSlippagePadBps,
		SlippageRetryBumpBpsFirst: DefaultSlippageBumpFirstBps,
		SlippageRetryBumpBpsNext:  DefaultSlippageBumpNextBps,
		SlippageMaxBps:            DefaultSlippageMaxBps,
		ConfirmTimeoutSec:         DefaultConfirmTimeoutSec,
		MaxRetries:                DefaultMaxRetries,
	}
}

// Load reads the YAML config at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := rejectRemovedSections(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
	}
	if cfg.Account.Devnet && !v.InConfig("sell.confirm_timeout_sec") {
		cfg.Sell.ConfirmTimeoutSec = DefaultDevnetConfirmTimeout
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"sell.slippage_pad_bps":              DefaultSlippagePadBps,
		"sell.slippage_retry_bump_bps_first": DefaultSlippageBumpFirstBps,
		"sell.slippage_retry_bump_bps_next":  DefaultSlippageBumpNextBps,
		"sell.slippage_max_bps":              DefaultSlippageMaxBps,
		"sell.confirm_timeout_sec":           DefaultConfirmTimeoutSec,
		"sell.max_retries":                   DefaultMaxRetries,
		"logging.file":                       DefaultLogFile,
		"logging.max_size_mb":                20,
		"logging.max_backups":                5,
		"logging.max_age_days":               14,
		"status.enabled":                     false,
		"status.addr":                        DefaultStatusAddr,
		"status.shutdown_timeout":            "5s",
		"status.allow_remote":                false,
		"journal.enabled":                    true,
		"journal.path":                       DefaultJournalPath,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		percentHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func rejectRemovedSections(v *viper.Viper) error {
	if v.InConfig("services") {
		return errors.New("services section has been removed; stream and exit-api endpoints are fixed (set account.local=true for localhost mode)")
	}
	if v.InConfig("rpc") {
		return errors.New("rpc section has been removed; account.rpc_url is required and RPC timeouts are fixed")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if value, ok := envNonEmpty("LASERSELL_KEYPAIR_PATH"); ok {
		cfg.Account.KeypairPath = value
	}
	if value, ok := envNonEmpty("LASERSELL_RPC_URL"); ok {
		cfg.Account.RPCURL = value
	} else if value, ok := envNonEmpty("LASERSELL_PRIVATE_RPC_URL"); ok {
		cfg.Account.RPCURL = value
	}
	if value, ok := envNonEmpty("LASERSELL_API_KEY"); ok {
		cfg.Account.APIKey = value
	}
	if value, ok := envNonEmpty("LASERSELL_TELEGRAM_TOKEN"); ok {
		cfg.Telegram.Token = value
	}
	if value, ok := envNonEmpty("LASERSELL_STATUS_TOKEN"); ok {
		cfg.Status.Token = value
	}
}

func envNonEmpty(name string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(name))
	return value, value != ""
}

func percentHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(Percent(0)) {
		return data, nil
	}
	switch value := data.(type) {
	case string:
		return ParsePercent(value)
	case int, int64, float64:
		if reflect.ValueOf(value).Convert(reflect.TypeOf(float64(0))).Float() == 0 {
			return Percent(0), nil
		}
		return nil, errors.New(`strategy amount must be a percent string like "10%"`)
	}
	return data, nil
}

// StreamEndpoint returns the stream server URL for this account.
func (c *Config) StreamEndpoint() string {
	if c.Account.Local {
		return stream.LocalEndpoint
	}
	return stream.Endpoint
}

// Message converts the strategy to its wire form.
func (s StrategyConfig) Message() stream.StrategyConfigMsg {
	return stream.StrategyConfigMsg{
		TargetProfitPct: float64(s.TargetProfit),
		StopLossPct:     float64(s.StopLoss),
	}
}

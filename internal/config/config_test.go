package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
account:
  keypair_path: /keys/id.json
  rpc_url: https://rpc.example.com
  api_key: secret-key
strategy:
  target_profit: "25%"
  stop_loss: 0
  deadline_timeout: 120
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"LASERSELL_KEYPAIR_PATH", "LASERSELL_RPC_URL", "LASERSELL_PRIVATE_RPC_URL",
		"LASERSELL_API_KEY", "LASERSELL_TELEGRAM_TOKEN", "LASERSELL_STATUS_TOKEN",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultSellConfig(), cfg.Sell)
	assert.Equal(t, Percent(25), cfg.Strategy.TargetProfit)
	assert.Equal(t, Percent(0), cfg.Strategy.StopLoss)
	assert.Equal(t, uint64(120), cfg.Strategy.DeadlineTimeoutSec)
	assert.Equal(t, DefaultLogFile, cfg.Logging.File)
	assert.Equal(t, 20, cfg.Logging.MaxSizeMB)
	assert.False(t, cfg.Status.Enabled)
	assert.Equal(t, DefaultStatusAddr, cfg.Status.Addr)
	assert.Equal(t, 5*time.Second, cfg.Status.ShutdownTimeout)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "wss://stream.lasersell.io/v1/ws", cfg.StreamEndpoint())
}

func TestLoadDevnetConfirmTimeout(t *testing.T) {
	clearEnv(t)
	body := `
account:
  keypair_path: k.json
  rpc_url: https://rpc.example.com
  api_key: k
  devnet: true
  local: true
strategy:
  deadline_timeout: 30
`
	cfg, err := Load(writeFile(t, body))
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultDevnetConfirmTimeout), cfg.Sell.ConfirmTimeoutSec)
	assert.Equal(t, "ws://localhost:8082/v1/ws", cfg.StreamEndpoint())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LASERSELL_KEYPAIR_PATH", "  /env/key.json ")
	t.Setenv("LASERSELL_PRIVATE_RPC_URL", "https://private.example.com")
	t.Setenv("LASERSELL_API_KEY", "   ")

	cfg, err := Load(writeFile(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "/env/key.json", cfg.Account.KeypairPath)
	assert.Equal(t, "https://private.example.com", cfg.Account.RPCURL)
	assert.Equal(t, "secret-key", cfg.Account.APIKey, "whitespace-only values are ignored")

	t.Setenv("LASERSELL_RPC_URL", "https://primary.example.com")
	t.Setenv("LASERSELL_STATUS_TOKEN", "status-secret")
	cfg, err = Load(writeFile(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example.com", cfg.Account.RPCURL)
	assert.Equal(t, "status-secret", cfg.Status.Token)
}

func TestLoadRejectsRemovedSections(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, minimalYAML+"rpc:\n  timeout: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc section has been removed")

	_, err = Load(writeFile(t, minimalYAML+"services:\n  stream: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services section has been removed")
}

func TestLoadRejectsBareNumberPercent(t *testing.T) {
	clearEnv(t)
	body := `
account:
  keypair_path: k.json
  rpc_url: https://rpc.example.com
  api_key: k
strategy:
  target_profit: 10
`
	_, err := Load(writeFile(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percent string")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Account:  AccountConfig{KeypairPath: "k.json", RPCURL: "https://rpc.example.com", APIKey: "k"},
			Strategy: StrategyConfig{TargetProfit: 10},
			Sell:     DefaultSellConfig(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing keypair", func(c *Config) { c.Account.KeypairPath = " " }, "keypair_path"},
		{"missing rpc", func(c *Config) { c.Account.RPCURL = "" }, "rpc_url must not be empty"},
		{"public http", func(c *Config) { c.Account.RPCURL = "http://rpc.example.com" }, "allowed only for localhost"},
		{"localhost http", func(c *Config) { c.Account.RPCURL = "http://localhost:8899" }, ""},
		{"private ip http", func(c *Config) { c.Account.RPCURL = "http://10.0.0.5:8899" }, ""},
		{"ws scheme", func(c *Config) { c.Account.RPCURL = "ws://rpc.example.com" }, "must start with https://"},
		{"missing api key", func(c *Config) { c.Account.APIKey = "" }, "api_key"},
		{"empty strategy", func(c *Config) { c.Strategy = StrategyConfig{} }, "at least one of"},
		{"negative stop loss", func(c *Config) { c.Strategy.StopLoss = -1 }, "stop_loss must be >= 0"},
		{"pad above max", func(c *Config) { c.Sell.SlippagePadBps = 3000 }, "must not exceed"},
		{"zero confirm timeout", func(c *Config) { c.Sell.ConfirmTimeoutSec = 0 }, "confirm_timeout_sec"},
		{"negative retries", func(c *Config) { c.Sell.MaxRetries = -1 }, "max_retries"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram.token"},
		{"bad status addr", func(c *Config) { c.Status = StatusConfig{Enabled: true, Addr: "nope"} }, "status.addr"},
		{"loopback status", func(c *Config) { c.Status = StatusConfig{Enabled: true, Addr: "127.0.0.1:9477"} }, ""},
		{"localhost status", func(c *Config) { c.Status = StatusConfig{Enabled: true, Addr: "localhost:9477"} }, ""},
		{"public status", func(c *Config) { c.Status = StatusConfig{Enabled: true, Addr: "0.0.0.0:9477"} }, "not a loopback address"},
		{"all interfaces status", func(c *Config) { c.Status = StatusConfig{Enabled: true, Addr: ":9477"} }, "not a loopback address"},
		{"remote without token", func(c *Config) {
			c.Status = StatusConfig{Enabled: true, Addr: "0.0.0.0:9477", AllowRemote: true}
		}, "status.token is required"},
		{"remote with token", func(c *Config) {
			c.Status = StatusConfig{Enabled: true, Addr: "0.0.0.0:9477", AllowRemote: true, Token: "s3cret"}
		}, ""},
		{"disabled public status", func(c *Config) { c.Status = StatusConfig{Addr: "0.0.0.0:9477"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:9477", true},
		{"[::1]:9477", true},
		{"localhost:9477", true},
		{"0.0.0.0:9477", false},
		{":9477", false},
		{"192.168.1.4:9477", false},
		{"nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoopbackAddr(tt.addr))
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in      string
		want    Percent
		wantErr bool
	}{
		{"10%", 10, false},
		{" 2.5 % ", 2.5, false},
		{"0%", 0, false},
		{"10", 0, true},
		{"", 0, true},
		{"abc%", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePercent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "12.5%", Percent(12.5).String())
}

func TestWriteThenLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, minimalYAML))
	require.NoError(t, err)

	cfg.Sell.SlippageMaxBps = 3000
	cfg.Strategy.StopLoss = 15

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "15%")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Sell, reloaded.Sell)
	assert.Equal(t, cfg.Strategy, reloaded.Strategy)
}

func TestStrategyMessage(t *testing.T) {
	msg := StrategyConfig{TargetProfit: 30, StopLoss: 10, DeadlineTimeoutSec: 60}.Message()
	assert.Equal(t, 30.0, msg.TargetProfitPct)
	assert.Equal(t, 10.0, msg.StopLossPct)
}

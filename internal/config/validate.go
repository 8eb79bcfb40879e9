package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the fields the agent cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Account.KeypairPath) == "" {
		return errors.New("account.keypair_path must not be empty")
	}
	if err := validateRPCURL(c.Account.RPCURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Account.APIKey) == "" {
		return errors.New("account.api_key must not be empty")
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.Sell.Validate(); err != nil {
		return err
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Status.Enabled {
		if err := c.Status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects status servers reachable from other hosts unless remote
// access is enabled explicitly and guarded by a token.
func (s StatusConfig) Validate() error {
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("invalid status.addr: %w", err)
	}
	if IsLoopbackAddr(s.Addr) {
		return nil
	}
	if !s.AllowRemote {
		return fmt.Errorf("status.addr %s is not a loopback address; set status.allow_remote and status.token to expose it", s.Addr)
	}
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("status.token is required when status.allow_remote is set")
	}
	return nil
}

// IsLoopbackAddr reports whether a host:port listens on loopback only. An
// empty host binds every interface.
func IsLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s StrategyConfig) Validate() error {
	if err := s.TargetProfit.validate("strategy.target_profit"); err != nil {
		return err
	}
	if err := s.StopLoss.validate("strategy.stop_loss"); err != nil {
		return err
	}
	if s.TargetProfit <= 0 && s.StopLoss <= 0 && s.DeadlineTimeoutSec == 0 {
		return errors.New("at least one of strategy.target_profit, strategy.stop_loss, or strategy.deadline_timeout must be > 0")
	}
	return nil
}

func (s SellConfig) Validate() error {
	if s.SlippagePadBps > s.SlippageMaxBps {
		return fmt.Errorf("sell.slippage_pad_bps (%d) must not exceed sell.slippage_max_bps (%d)",
			s.SlippagePadBps, s.SlippageMaxBps)
	}
	if s.ConfirmTimeoutSec == 0 {
		return errors.New("sell.confirm_timeout_sec must be > 0")
	}
	if s.MaxRetries < 0 {
		return errors.New("sell.max_retries must be >= 0")
	}
	return nil
}

func validateRPCURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("account.rpc_url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return errors.New("account.rpc_url must be a valid URL")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "" {
			return errors.New("account.rpc_url host is missing")
		}
		if !isLocalOrPrivateHost(host) {
			return errors.New("account.rpc_url http:// is allowed only for localhost/private endpoints")
		}
		return nil
	default:
		return errors.New("account.rpc_url must start with https:// (or http:// for local/private endpoints)")
	}
}

func isLocalOrPrivateHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

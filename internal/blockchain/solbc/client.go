// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/blockchain"
)

const (
	DefaultRequestTimeout = 800 * time.Millisecond
	DefaultPollInterval   = 500 * time.Millisecond
)

// Observer receives the outcome of every RPC call.
type Observer func(method string, elapsed time.Duration, err error)

// Option configures a Client.
type Option func(*Client)

// WithObserver installs a per-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithRequestTimeout bounds each individual RPC request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithPollInterval sets the signature status polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// Client is a thin solana-go adapter implementing blockchain.Client.
type Client struct {
	rpc            *rpc.Client
	logger         *zap.Logger
	analyzer       *ErrorAnalyzer
	requestTimeout time.Duration
	pollInterval   time.Duration
	observer       Observer
}

var _ blockchain.Client = (*Client)(nil)

// NewClient creates a client for rpcURL.
func NewClient(rpcURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:            rpc.New(rpcURL),
		logger:         logger.Named("solbc-client"),
		requestTimeout: DefaultRequestTimeout,
		pollInterval:   DefaultPollInterval,
	}
	c.analyzer = NewErrorAnalyzer(c.logger)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call runs fn under the per-request timeout and reports it to the observer.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	started := time.Now()
	err := fn(reqCtx)
	if c.observer != nil {
		c.observer(method, time.Since(started), err)
	}
	return err
}

// SendTransaction submits a signed transaction without preflight; failures
// surface through confirmation instead.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	maxRetries := uint(0)
	err := c.call(ctx, "sendTransaction", func(ctx context.Context) error {
		var err error
		sig, err = c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentProcessed,
			MaxRetries:          &maxRetries,
		})
		return err
	})
	if err != nil {
		c.logger.Debug("SendTransaction error", zap.Error(err))
		return solana.Signature{}, &blockchain.SendError{Detail: c.analyzer.Describe(err), Err: err}
	}
	return sig, nil
}

// AwaitConfirmation polls the signature status until it reaches confirmed
// commitment, reports an on-chain error, or timeout elapses.
func (c *Client) AwaitConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, signature)
		if done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s for %s", blockchain.ErrConfirmationTimeout, timeout, signature)
		case <-ticker.C:
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, signature solana.Signature) (bool, error) {
	var statuses *rpc.GetSignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", func(ctx context.Context) error {
		var err error
		statuses, err = c.rpc.GetSignatureStatuses(ctx, false, signature)
		return err
	})
	if err != nil {
		c.logger.Debug("Error getting signature statuses", zap.Error(err))
		return false, nil
	}
	if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return false, nil
	}
	status := statuses.Value[0]
	if status.Err != nil {
		return true, &blockchain.TxFailedError{Signature: signature, Reason: fmt.Sprintf("%v", status.Err)}
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return true, nil
	}
	return false, nil
}

// GetAccountOwner returns the owning program of account.
func (c *Client) GetAccountOwner(ctx context.Context, account solana.PublicKey) (solana.PublicKey, error) {
	var result *rpc.GetAccountInfoResult
	err := c.call(ctx, "getAccountInfo", func(ctx context.Context) error {
		var err error
		result, err = c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", account, blockchain.ErrAccountNotFound)
	}
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("get account info %s: %w", account, err)
	}
	if result == nil || result.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", account, blockchain.ErrAccountNotFound)
	}
	return result.Value.Owner, nil
}

// GetBalance returns the lamport balance at confirmed commitment.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var result *rpc.GetBalanceResult
	err := c.call(ctx, "getBalance", func(ctx context.Context) error {
		var err error
		result, err = c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", account, err)
	}
	return result.Value, nil
}

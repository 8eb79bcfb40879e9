// internal/blockchain/solbc/balance.go
package solbc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/blockchain"
)

// GetTokenBalanceByMint sums every token account of owner holding mint,
// under both SPL Token and Token-2022.
func (c *Client) GetTokenBalanceByMint(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var total uint64
	for _, program := range blockchain.TokenPrograms {
		amount, err := c.tokenBalanceUnder(ctx, owner, mint, program)
		if err != nil {
			return 0, err
		}
		total += amount
	}
	return total, nil
}

func (c *Client) tokenBalanceUnder(ctx context.Context, owner, mint, program solana.PublicKey) (uint64, error) {
	var result *rpc.GetTokenAccountsResult
	programID := program
	err := c.call(ctx, "getTokenAccountsByOwner", func(ctx context.Context) error {
		var err error
		result, err = c.rpc.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: &programID},
			&rpc.GetTokenAccountsOpts{
				Commitment: rpc.CommitmentConfirmed,
				Encoding:   solana.EncodingJSONParsed,
			})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get token accounts under %s: %w", program, err)
	}
	if result == nil {
		return 0, nil
	}

	var total uint64
	want := mint.String()
	for _, account := range result.Value {
		if account == nil || account.Account.Data == nil {
			continue
		}
		info := gjson.GetBytes(account.Account.Data.GetRawJSON(), "parsed.info")
		if info.Get("mint").String() != want {
			continue
		}
		amount, err := strconv.ParseUint(info.Get("tokenAmount.amount").String(), 10, 64)
		if err != nil {
			c.logger.Debug("Skipping token account with unparsable amount",
				zap.String("account", account.Pubkey.String()),
				zap.Error(err))
			continue
		}
		total += amount
	}
	return total, nil
}

// internal/blockchain/blockchain.go
package blockchain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Token2022ProgramID is the Token Extensions program.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// TokenPrograms lists the token programs a wallet may hold balances under.
var TokenPrograms = []solana.PublicKey{solana.TokenProgramID, Token2022ProgramID}

// Client is the RPC surface the agent needs from the chain.
type Client interface {
	// SendTransaction submits a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// AwaitConfirmation blocks until the signature is confirmed, fails on
	// chain, or timeout elapses.
	AwaitConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error
	// GetAccountOwner resolves the program owning an account.
	GetAccountOwner(ctx context.Context, account solana.PublicKey) (solana.PublicKey, error)
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// GetTokenBalanceByMint sums the owner's token accounts for mint across
	// both token programs, in base units.
	GetTokenBalanceByMint(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

// internal/blockchain/types.go
package blockchain

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrConfirmationTimeout is returned when a signature is not confirmed in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// SendError wraps a failure while submitting a transaction.
type SendError struct {
	Detail string
	Err    error
}

func (e *SendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("send tx: %v (%s)", e.Err, e.Detail)
	}
	return fmt.Sprintf("send tx: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// TxFailedError reports a transaction that landed but failed on chain.
type TxFailedError struct {
	Signature solana.Signature
	Reason    string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %s", e.Signature, e.Reason)
}

// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrEmptyKeypair is returned when a keypair file holds no key material.
var ErrEmptyKeypair = errors.New("keypair file is empty")

// Wallet is the single signing identity the agent acts for.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet creates a wallet from a base58-encoded 64-byte secret key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return fromBytes(privateKeyBytes)
}

func fromBytes(raw []byte) (*Wallet, error) {
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(raw))
	}
	privateKey := solana.PrivateKey(raw)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// Load reads a keypair file. Both the JSON byte-array format written by
// solana-keygen and a bare base58 secret are accepted.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair %s: %w", path, err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, ErrEmptyKeypair
	}

	if strings.HasPrefix(content, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(content), &ints); err != nil {
			return nil, fmt.Errorf("failed to parse keypair json: %w", err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
			}
			raw[i] = byte(v)
		}
		return fromBytes(raw)
	}
	return NewWallet(content)
}

// SignUnsignedTx decodes a base64 unsigned transaction and signs it with the
// wallet key. Signatures for other signers are left untouched.
func (w *Wallet) SignUnsignedTx(unsignedTxB64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(unsignedTxB64))
	if err != nil {
		return nil, fmt.Errorf("decode unsigned tx b64: %w", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("deserialize unsigned tx: %w", err)
	}
	if err := w.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return tx, nil
}

// SignTransaction places the wallet signature in its slot among the
// message's required signers. Server-built transactions arrive with zeroed
// placeholder signatures, so the slot is overwritten rather than appended.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Message.AccountKeys) < required {
		return errors.New("transaction has no required signers")
	}
	slot := -1
	for i, key := range tx.Message.AccountKeys[:required] {
		if key.Equals(w.PublicKey) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("wallet %s is not a required signer", w.PublicKey)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	signature, err := w.PrivateKey.Sign(message)
	if err != nil {
		return err
	}
	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[slot] = signature
	return nil
}

// String returns the wallet public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

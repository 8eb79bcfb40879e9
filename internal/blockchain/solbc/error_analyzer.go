// internal/blockchain/solbc/error_analyzer.go
package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError is an error reported by an Anchor program in transaction logs.
type AnchorError struct {
	Code int
	Name string
	Msg  string
}

// ErrorAnalyzer extracts a short human-readable detail from RPC errors.
type ErrorAnalyzer struct {
	logger *zap.Logger
}

func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{logger: logger.Named("error-analyzer")}
}

// Describe returns a one-line summary of err, preferring program errors
// found in simulation logs. Empty for non-RPC errors.
func (ea *ErrorAnalyzer) Describe(err error) string {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return ""
	}
	detail := fmt.Sprintf("rpc code %d", rpcErr.Code)

	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return detail
	}
	if logs, ok := data["logs"].([]interface{}); ok {
		for _, entry := range logs {
			line, ok := entry.(string)
			if !ok || !strings.Contains(line, "AnchorError occurred") {
				continue
			}
			anchorErr := ParseAnchorErrorLog(line)
			ea.logger.Debug("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name))
			return fmt.Sprintf("%s: anchor %s (%d) %s", detail, anchorErr.Name, anchorErr.Code, anchorErr.Msg)
		}
	}
	if instrErr, ok := data["err"]; ok && instrErr != nil {
		return fmt.Sprintf("%s: %v", detail, instrErr)
	}
	return detail
}

// ParseAnchorErrorLog parses a log line such as
// "Program log: AnchorError occurred. Error Code: Slippage. Error Number: 6004. Error Message: Too little out."
func ParseAnchorErrorLog(line string) AnchorError {
	var result AnchorError
	if v, ok := segmentAfter(line, "Error Number:"); ok {
		fmt.Sscanf(v, "%d", &result.Code)
	}
	if v, ok := segmentAfter(line, "Error Code:"); ok {
		result.Name = v
	}
	if v, ok := segmentAfter(line, "Error Message:"); ok {
		result.Msg = v
	}
	return result
}

func segmentAfter(line, marker string) (string, bool) {
	_, rest, found := strings.Cut(line, marker)
	if !found {
		return "", false
	}
	value, _, _ := strings.Cut(rest, ".")
	return strings.TrimSpace(value), true
}

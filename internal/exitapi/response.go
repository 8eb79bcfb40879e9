// internal/exitapi/response.go
package exitapi

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseResponse extracts the unsigned transaction from any of the supported
// response shapes: a status envelope, the legacy unsigned_tx_b64 object, or
// a bare {"tx": ...} object.
func ParseResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", &APIError{Kind: ErrorParse, Detail: "response is not valid json"}
	}
	root := gjson.ParseBytes(body)

	if status := root.Get("status"); status.Exists() && status.Type == gjson.String {
		if strings.EqualFold(status.String(), "ok") {
			tx := root.Get("tx")
			if !tx.Exists() {
				tx = root.Get("unsigned_tx_b64")
			}
			if tx.String() == "" {
				return "", &APIError{Kind: ErrorParse, Detail: "status=ok payload missing tx"}
			}
			return tx.String(), nil
		}
		detail := firstNonEmpty(root, "reason", "message", "error")
		if detail == "" {
			detail = "unknown failure"
		}
		return "", &APIError{Kind: ErrorEnvelopeStatus, Status: status.String(), Detail: detail}
	}

	if legacy := root.Get("unsigned_tx_b64").String(); legacy != "" {
		return legacy, nil
	}
	if bare := root.Get("tx").String(); bare != "" {
		return bare, nil
	}
	return "", &APIError{Kind: ErrorParse, Detail: "response did not match any supported schema"}
}

func firstNonEmpty(root gjson.Result, fields ...string) string {
	for _, field := range fields {
		v := root.Get(field)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	return ""
}

func summarizeErrorBody(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := firstNonEmpty(gjson.ParseBytes(body), "error", "message", "reason"); msg != "" {
			return msg
		}
	}
	runes := []rune(string(body))
	if len(runes) > errorBodySnippetLen {
		runes = runes[:errorBodySnippetLen]
	}
	return strings.TrimSpace(string(runes))
}

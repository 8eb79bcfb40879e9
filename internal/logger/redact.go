package logger

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[-_]key=)[^&\s"']+`),
	regexp.MustCompile(`(?i)(x-api-key:\s*)[^\s"',]+`),
	regexp.MustCompile(`(?i)("apiKey"\s*:\s*")[^"]*`),
	regexp.MustCompile(`(?i)(api_key:\s*)[^\s"',]+`),
	regexp.MustCompile(`(Bearer\s+)[A-Za-z0-9._~+/=-]+`),
}

// Redact removes known secret values and credential patterns from s.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if len(secret) >= 4 {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, "${1}"+redacted)
	}
	return s
}

// RedactURL drops userinfo and query from raw, leaving scheme, host and path.
func RedactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return redacted
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = ""
		u.ForceQuery = false
		return u.String() + "?" + redacted
	}
	return u.String()
}

// RedactingCore scrubs the message and string fields of every entry.
type RedactingCore struct {
	core    zapcore.Core
	secrets []string
}

func NewRedactingCore(core zapcore.Core, secrets []string) *RedactingCore {
	var kept []string
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return &RedactingCore{core: core, secrets: kept}
}

func (c *RedactingCore) Enabled(level zapcore.Level) bool {
	return c.core.Enabled(level)
}

func (c *RedactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &RedactingCore{core: c.core.With(c.scrub(fields)), secrets: c.secrets}
}

func (c *RedactingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *RedactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = Redact(entry.Message, c.secrets)
	return c.core.Write(entry, c.scrub(fields))
}

func (c *RedactingCore) Sync() error {
	return c.core.Sync()
}

func (c *RedactingCore) scrub(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case f.Type == zapcore.StringType:
			f.String = Redact(f.String, c.secrets)
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redact(err.Error(), c.secrets)}
			}
		}
		out[i] = f
	}
	return out
}

// Package redact strips credentials from strings before they reach the log.
//
// Transports authenticate with secrets embedded in request URLs (the
// BlueBubbles password is a query parameter) and net/http echoes the full URL
// in its errors, so every transport error passes through here before logging.
package redact

import (
	"net/url"
	"strings"
)

const placeholder = "[REDACTED]"

// String replaces every occurrence of each secret in s with [REDACTED].
// Secrets shorter than 4 characters are ignored.
func String(s string, secrets ...string) string {
	for _, v := range secrets {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
		if esc := url.QueryEscape(v); esc != v {
			s = strings.ReplaceAll(s, esc, placeholder)
		}
	}
	return s
}

// URL returns rawURL with the values of sensitive query parameters replaced.
// Unparseable input is returned unchanged.
func URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for k := range q {
		if sensitiveParam(k) {
			q.Set(k, placeholder)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "token", "key", "secret"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

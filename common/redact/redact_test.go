package redact_test

import (
	"strings"
	"testing"

	"github.com/bdobrica/Hanashi/common/redact"
)

func TestString(t *testing.T) {
	msg := `Post "http://bb.local/api/v1/chat/query?password=hunter22%21": dial tcp: refused`
	got := redact.String(msg, "hunter22!", "ab")
	if strings.Contains(got, "hunter22") {
		t.Fatalf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("expected placeholder in %q", got)
	}
}

func TestString_ShortSecretIgnored(t *testing.T) {
	if got := redact.String("abc abc", "abc"); got != "abc abc" {
		t.Errorf("short secret should be skipped, got %q", got)
	}
}

func TestURL(t *testing.T) {
	got := redact.URL("http://bb.local/api/v1/message/text?password=s3cret&limit=5")
	if strings.Contains(got, "s3cret") {
		t.Fatalf("password leaked: %q", got)
	}
	if !strings.Contains(got, "limit=5") {
		t.Errorf("non-sensitive parameter dropped: %q", got)
	}

	plain := "http://bb.local/api/v1/ping"
	if got := redact.URL(plain); got != plain {
		t.Errorf("URL without query changed: %q", got)
	}
}

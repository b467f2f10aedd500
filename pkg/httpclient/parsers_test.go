package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	h.Set("x-ratelimit-reset-requests", "1700000000")
	h.Set("x-ratelimit-remaining-requests", "12")
	h.Set("x-ratelimit-remaining-tokens", "4096")

	info := ParseOpenAIHeaders(h)
	if info.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", info.RetryAfter)
	}
	if info.ResetTime != 1700000000 {
		t.Errorf("ResetTime = %d, want 1700000000", info.ResetTime)
	}
	if info.RequestsRemaining != 12 {
		t.Errorf("RequestsRemaining = %d, want 12", info.RequestsRemaining)
	}
	if info.TokensRemaining != 4096 {
		t.Errorf("TokensRemaining = %d, want 4096", info.TokensRemaining)
	}
}

func TestParseOpenAIHeaders_PrefersTokenReset(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-reset-tokens", "1700000001")
	h.Set("x-ratelimit-reset-requests", "1700000099")

	info := ParseOpenAIHeaders(h)
	if info.ResetTime != 1700000001 {
		t.Errorf("ResetTime = %d, want token reset 1700000001", info.ResetTime)
	}
}

func TestParseAnthropicHeaders(t *testing.T) {
	reset := time.Now().Add(30 * time.Second).UTC().Truncate(time.Second)
	h := http.Header{}
	h.Set("Retry-After", "3")
	h.Set("anthropic-ratelimit-requests-reset", reset.Format(time.RFC3339))
	h.Set("anthropic-ratelimit-requests-remaining", "5")

	info := ParseAnthropicHeaders(h)
	if info.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", info.RetryAfter)
	}
	if info.ResetTime != reset.Unix() {
		t.Errorf("ResetTime = %d, want %d", info.ResetTime, reset.Unix())
	}
	if info.RequestsRemaining != 5 {
		t.Errorf("RequestsRemaining = %d, want 5", info.RequestsRemaining)
	}
}

func TestParseHeaders_EmptyAndMalformed(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "not-a-number")
	h.Set("x-ratelimit-remaining-requests", "also-bad")

	for name, parse := range map[string]RateLimitHeaderParser{
		"openai":    ParseOpenAIHeaders,
		"anthropic": ParseAnthropicHeaders,
		"gemini":    ParseGeminiHeaders,
	} {
		info := parse(h)
		if info.RetryAfter != 0 || info.ResetTime != 0 || info.RequestsRemaining != 0 {
			t.Errorf("%s: malformed headers should leave zero values, got %+v", name, info)
		}
	}
}

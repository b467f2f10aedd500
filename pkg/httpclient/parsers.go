package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// Rate-limit header parsers for the provider families this codebase talks
// to. Each returns whatever subset the provider exposes; missing headers
// leave zero values.

func retryAfterSeconds(headers http.Header) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func intHeader(headers http.Header, key string) int {
	v := headers.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ParseOpenAIHeaders reads the x-ratelimit-* family used by OpenAI-style
// endpoints.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, key := range []string{"x-ratelimit-reset-tokens", "x-ratelimit-reset-requests"} {
		if v := headers.Get(key); v != "" {
			if reset, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.ResetTime = reset
				break
			}
		}
	}

	info.RequestsRemaining = intHeader(headers, "x-ratelimit-remaining-requests")
	info.TokensRemaining = intHeader(headers, "x-ratelimit-remaining-tokens")
	return info
}

// ParseAnthropicHeaders reads the anthropic-ratelimit-* family. Reset
// times arrive as RFC3339 timestamps.
func ParseAnthropicHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, key := range []string{
		"anthropic-ratelimit-requests-reset",
		"anthropic-ratelimit-input-tokens-reset",
		"anthropic-ratelimit-output-tokens-reset",
	} {
		if v := headers.Get(key); v != "" {
			if reset, err := time.Parse(time.RFC3339, v); err == nil {
				info.ResetTime = reset.Unix()
				break
			}
		}
	}

	info.RequestsRemaining = intHeader(headers, "anthropic-ratelimit-requests-remaining")
	info.TokensRemaining = intHeader(headers, "anthropic-ratelimit-input-tokens-remaining")
	return info
}

// ParseGeminiHeaders: Gemini only exposes Retry-After.
func ParseGeminiHeaders(headers http.Header) RateLimitInfo {
	return RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}
}

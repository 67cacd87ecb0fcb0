package llm

import (
	"net/http"
	"strings"
)

// Decision is what the executor does with a failed attempt.
type Decision int

const (
	// Fatal stops immediately.
	Fatal Decision = iota
	// Backoff retries after an exponential delay.
	Backoff
	// Downshift halves the token budget and retries.
	Downshift
)

func (d Decision) String() string {
	switch d {
	case Backoff:
		return "backoff"
	case Downshift:
		return "downshift"
	default:
		return "fatal"
	}
}

// Providers use 400 both for real validation errors and for rate limiting.
var (
	transientMarkers = []string{"rate limit", "overloaded", "try again", "temporarily", "throttl"}
	tokenMarkers     = []string{"max_tokens", "context length", "too many tokens"}
)

// Classify decides how to react to a non-2xx reply. It looks at nothing but
// the status code and body, so it can be checked against captured provider bodies.
func Classify(status int, body string) Decision {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return Backoff
	case status == http.StatusBadRequest:
		lower := strings.ToLower(body)
		if containsAny(lower, transientMarkers) {
			return Backoff
		}
		if containsAny(lower, tokenMarkers) {
			return Downshift
		}
		return Fatal
	default:
		return Fatal
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

package platform

import (
	"errors"
	"strings"
)

// ErrorClass buckets adapter failures for the Mode Manager and Human-like
// Controller. Classification is by string-matchable tokens because upstream
// adapters surface raw API messages.
type ErrorClass int

const (
	ErrClassNone ErrorClass = iota
	// ErrClassAccount covers account-level throttles and lockouts (226, 401,
	// 403, "authorization", "automated"). These propagate out of scenarios.
	ErrClassAccount
	// ErrClassRateLimit is a transient 429.
	ErrClassRateLimit
	// ErrClassNotFound is a 404 / gone entity.
	ErrClassNotFound
	// ErrClassTransient is any other network or API failure.
	ErrClassTransient
)

var accountTokens = []string{"226", "401", "403", "authorization", "automated", "suspended", "locked"}

// Classify maps an adapter error onto the taxonomy. A nil error is ErrClassNone.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassNone
	}
	msg := strings.ToLower(err.Error())
	for _, tok := range accountTokens {
		if strings.Contains(msg, tok) {
			return ErrClassAccount
		}
	}
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return ErrClassRateLimit
	}
	if strings.Contains(msg, "404") || strings.Contains(msg, "not found") {
		return ErrClassNotFound
	}
	return ErrClassTransient
}

// IsAccountError reports whether err must be re-raised to the orchestrator.
func IsAccountError(err error) bool {
	return Classify(err) == ErrClassAccount
}

// ErrTimeout is returned by the timeout wrapper when an adapter call exceeds
// its budget. Treated as transient: the caller skips the action, no memory
// mutation happens, and the session continues.
var ErrTimeout = errors.New("platform: call timed out")

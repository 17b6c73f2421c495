package moex

import (
	"errors"
	"fmt"
	"net/http"

	platformhttp "github.com/Alias1177/moex-anomaly/internal/platform/http"
)

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

const (
	// KindNetwork covers transport failures, timeouts and 5xx responses.
	KindNetwork FetchErrorKind = "network"
	// KindRateLimited covers 429 responses that survived the retry budget.
	KindRateLimited FetchErrorKind = "rate_limited"
	// KindMalformed covers responses that came back 200 but could not be
	// parsed. Never retried: retrying cannot fix a contract mismatch.
	KindMalformed FetchErrorKind = "malformed_response"
)

// FetchError is the error contract of the ISS client.
type FetchError struct {
	Kind   FetchErrorKind
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// classify wraps an underlying error into a FetchError with the right kind.
func classify(symbol string, err error) *FetchError {
	var statusErr *platformhttp.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return &FetchError{Kind: KindRateLimited, Symbol: symbol, Err: err}
	}
	return &FetchError{Kind: KindNetwork, Symbol: symbol, Err: err}
}

// malformed builds a FetchError for an unparseable response body.
func malformed(symbol string, err error) *FetchError {
	return &FetchError{Kind: KindMalformed, Symbol: symbol, Err: err}
}

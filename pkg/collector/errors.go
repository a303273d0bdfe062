package collector

import (
	"errors"
	"fmt"
)

// ErrNoResults is returned when the provider has no matching items at all.
// It is an informational condition, not a provider fault.
var ErrNoResults = errors.New("no results found in the queryable window")

// FailureKind classifies a provider failure for the partial-success policy.
type FailureKind int

const (
	// FailureHard is any failure other than rate limiting.
	FailureHard FailureKind = iota

	// FailureRateLimited means the provider throttled the request.
	FailureRateLimited
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "hard"
	}
}

// ProviderError is a failed page fetch, tagged with its kind.
type ProviderError struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error implements the error interface. It returns the provider's message
// unadorned so it can be surfaced to callers as-is.
func (e *ProviderError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("provider %s failure", e.Kind)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RateLimited creates a rate limit failure.
func RateLimited(message string, err error) *ProviderError {
	return &ProviderError{Kind: FailureRateLimited, Message: message, Err: err}
}

// Hard creates a non-recoverable failure.
func Hard(message string, err error) *ProviderError {
	return &ProviderError{Kind: FailureHard, Message: message, Err: err}
}

// asProviderError returns the ProviderError in err's chain, or wraps err as
// a hard failure when the fetcher returned an untagged error.
func asProviderError(err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return Hard(err.Error(), err)
}

package isochrone

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks requests rejected before any network call.
	ErrInvalidRequest = errors.New("invalid isochrone request")
	// ErrNetwork marks failures where no HTTP response was received.
	ErrNetwork = errors.New("network error")
)

// NetworkError wraps a transport-level failure (refused connection, DNS,
// TLS, reset). It is the only error class that triggers the relay fallback.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ProviderError is an application-level answer from the provider or relay:
// bad credential, rate limit, malformed input, unparseable payload.
type ProviderError struct {
	Status int
	Detail string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status %d: %s", e.Status, e.Detail)
}

// RateLimited reports whether the provider refused the call for quota reasons.
func (e *ProviderError) RateLimited() bool { return e.Status == 429 }

// FetchError is the terminal failure of a fetch, tagged with the last tier tried.
type FetchError struct {
	Tier Tier
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("isochrone %s request failed: %v", e.Tier, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a network-layer failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

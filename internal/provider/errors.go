package provider

import (
	"errors"
	"fmt"
)

// ErrEmptyAudio is returned when a backend answers 2xx with a zero-length body.
var ErrEmptyAudio = errors.New("backend returned empty audio payload")

// CredentialError means the provider cannot be used at all for this attempt:
// missing or rejected credentials. The fallback chain does not retry the same
// provider on it.
type CredentialError struct {
	Provider string
	Reason   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: credential error: %s", e.Provider, e.Reason)
}

// BackendError captures a provider-reported failure: a non-2xx response, a
// transport error, or a timeout. Timeouts advance the fallback chain like any
// other backend failure.
type BackendError struct {
	Provider string
	Status   int    // HTTP status if the backend answered, 0 otherwise
	Body     string // response body captured for diagnostics
	Timeout  bool
	Err      error
}

func (e *BackendError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out", e.Provider)
	case e.Status != 0:
		return fmt.Sprintf("%s: backend error: status %d, body: %s", e.Provider, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: backend error: %v", e.Provider, e.Err)
	}
}

func (e *BackendError) Unwrap() error { return e.Err }

// AllFailedError is the aggregate failure reported when every provider in the
// chain has been tried without success. Last carries the final provider's error.
type AllFailedError struct {
	Attempts int
	Last     error
}

func (e *AllFailedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all %d providers failed", e.Attempts)
	}
	return fmt.Sprintf("all %d providers failed, last: %v", e.Attempts, e.Last)
}

func (e *AllFailedError) Unwrap() error { return e.Last }

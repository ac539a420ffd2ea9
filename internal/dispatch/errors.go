// Package dispatch contains the leaf components of the delivery integration:
// configuration and field-mapping validation, provider status mapping, and the
// outbound request builder/sender for REST and JSON-RPC delivery companies.
package dispatch

import (
	"errors"
	"fmt"
)

// ProviderError reports a failed outbound call to a delivery company. It keeps
// the upstream HTTP status and the raw response body so the orchestrator can
// attach them to the API error where safe.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("provider call failed: %v", e.Err)
	}
	return fmt.Sprintf("provider returned http %d", e.StatusCode)
}

// Unwrap returns the underlying transport error when present.
func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsUpstreamFault reports whether the failure originated at the provider
// (network error or 5xx) rather than from the request we built.
func (e *ProviderError) IsUpstreamFault() bool {
	if e == nil {
		return false
	}
	return e.Err != nil || e.StatusCode >= 500 || e.StatusCode == 0
}

// AsProviderError unwraps err into a *ProviderError when possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

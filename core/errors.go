package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDocument means Initialize was called without a
	// source descriptor.
	ErrMissingDocument = errors.New("no document loaded")
	// ErrInvalidProvider means the provider name is not in the
	// registry.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrInvalidModel means the model is not offered by the provider.
	ErrInvalidModel = errors.New("invalid model for provider")
	// ErrProviderUnreachable means the provider call failed in
	// transport or returned a non-2xx status.
	ErrProviderUnreachable = errors.New("provider unreachable")
	// ErrMalformedResponse means the provider answered 2xx but the
	// reply could not be found in the body.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrLoaderFailure means text extraction failed.
	ErrLoaderFailure = errors.New("document load failed")
	// ErrNotBound means a turn was submitted with no session.
	ErrNotBound = errors.New("no session initialized")
)

// MalformedResponseError keeps the raw body of an unusable provider
// response for diagnostics.
type MalformedResponseError struct {
	Provider string
	Raw      string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, ErrMalformedResponse)
}

func (e *MalformedResponseError) Unwrap() error {
	return ErrMalformedResponse
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when no bearer token is configured for a provider.
	ErrMissingCredential = errors.New("missing credential")
	// ErrEmptyInput is returned for empty or whitespace-only input text.
	ErrEmptyInput = errors.New("missing input")
	// ErrUnsupportedTask is returned for task identifiers outside the catalog.
	ErrUnsupportedTask = errors.New("unsupported task")
	// ErrMalformedResponse is returned when a provider reply has an unexpected shape.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// TransportError reports a failed provider call: the request never completed,
// or it completed with a non-2xx status.
type TransportError struct {
	Provider   Provider
	StatusCode int // 0 when no response was received
	// Message is the provider's own error text from a non-2xx body, if any.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a local validation failure that never
// reached the network.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrUnsupportedTask)
}

// IsTransport reports whether err came from the network or a non-2xx reply.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

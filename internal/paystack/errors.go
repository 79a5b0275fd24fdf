package paystack

import (
	"fmt"
)

// ConnectionError is a transport failure talking to the processor.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("paystack: connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// APIError carries the processor's own message verbatim.
type APIError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s", e.Message)
}

// ProtocolError means the response body could not be decoded.
type ProtocolError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paystack: undecodable response from %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("paystack: undecodable response from %s (status %d)", e.URL, e.StatusCode)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the single error shape returned by every Client operation.
// Callers branch on StatusCode:
//
//	var apiErr *apiclient.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
//
// StatusCode is 0 when no HTTP response was received (network failure,
// caller cancellation, undecodable body).
type APIError struct {
	StatusCode int
	Message    string
	// Data is the raw error payload: the JSON body when the server sent
	// JSON, otherwise the text body encoded as a JSON string.
	Data []byte
	// Err is the underlying transport or context error, if any.
	Err error

	network bool
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("apiclient: %s", e.Message)
	}
	return fmt.Sprintf("apiclient: %s (%d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// Messages used for errors the client synthesises itself.
const (
	MessageRequestFailed  = "Request failed"
	MessageTimeout        = "Request timeout"
	MessageCancelled      = "Request cancelled"
	MessageInvalidBody    = "Invalid request body"
	MessageInvalidPayload = "Invalid response body"
)

// StatusCode extracts the HTTP status from err, or 0 if err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsTimeout reports whether err is the client's own timeout abort.
func IsTimeout(err error) bool {
	return IsStatus(err, http.StatusRequestTimeout)
}

// retryable reports whether a failed attempt may be retried: server errors,
// rate limiting and transport failures. Timeouts are terminal.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.network {
		return true
	}
	return apiErr.StatusCode >= http.StatusInternalServerError ||
		apiErr.StatusCode == http.StatusTooManyRequests
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed matches a TransportError with status 401 or 403.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInsufficientCredits matches a TransportError with status 402.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrModelNotFound matches a TransportError with status 404.
	ErrModelNotFound = errors.New("model not found")

	// ErrRateLimited matches a TransportError with status 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedFrame describes a stream line that is not valid JSON. It is
	// counted and logged by the decoder, never returned.
	ErrMalformedFrame = errors.New("malformed stream frame")
)

// DefaultErrorMessage is used when an error body carries no message.
const DefaultErrorMessage = "Failed to get response."

// TransportError is a non-success HTTP status (Status > 0) or a network-level
// failure (Status == 0).
type TransportError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is maps status codes onto the package sentinels.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrInsufficientCredits:
		return e.Status == http.StatusPaymentRequired
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// IsNetwork reports whether the request never produced an HTTP response.
func (e *TransportError) IsNetwork() bool {
	return e.Status == 0
}

// apiErrorResponse covers both {"error":{"message":...}} and {"message":...}.
type apiErrorResponse struct {
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// newStatusError builds a TransportError from a non-success response. The
// message comes from a JSON error body when present, otherwise from the
// status text.
func newStatusError(status int, body []byte) *TransportError {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		msg := http.StatusText(status)
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return &TransportError{Status: status, Message: msg}
	}

	msg := ""
	if apiErr.Error != nil {
		msg = strings.TrimSpace(apiErr.Error.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &TransportError{Status: status, Message: msg}
}

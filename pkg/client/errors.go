package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrFetch matches every remote fetch failure via errors.Is.
	ErrFetch = errors.New("remote fetch failed")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of remote errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError is a failed call to the transit API. Callers must decide whether
// to retry or fall back; nothing below them does.
type FetchError struct {
	StatusCode int
	Class      ErrorClass
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s error", e.Endpoint, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and undecodable bodies will not improve on retry
		return false
	}
}

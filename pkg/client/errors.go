package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrWindowExhausted is returned when the local rate limit gate refuses a request.
	ErrWindowExhausted = errors.New("rate limit window exhausted")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429/420 responses and error code 88.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// CodeRateLimitExceeded is the API error code reported with an exhausted window.
const CodeRateLimitExceeded = 88

// statusEnhanceYourCalm is the legacy rate limit status of API v1.
const statusEnhanceYourCalm = 420

// APIError represents a failed search API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Code is the first error code of the response body, 0 if absent.
	Code    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("twitter %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("twitter %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the bearer token cannot be obtained.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("obtain bearer token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// errorBody is the API's error document.
type errorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// classifyStatus maps an HTTP status and API error code to an ErrorClass.
func classifyStatus(status, code int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests, status == statusEnhanceYourCalm, code == CodeRateLimitExceeded:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classOf extracts the ErrorClass of err. Transport failures are network errors.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return ErrorClassClient
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will fail again
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// The window will not reset within a backoff; let the caller decide
		return false
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeTimeout       = "SCRAPE_TIMEOUT"
	ErrCodeWaitTimeout   = "WAIT_TIMEOUT"
	ErrCodeBrowserLaunch = "BROWSER_LAUNCH_FAILED"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"
	ErrCodeExtraction    = "CONTENT_EXTRACTION_FAILED"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// API-only codes.
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
)

// ErrClosed is returned by operations attempted after shutdown.
var ErrClosed = errors.New("scraper is closed")

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail. The
// message carries the underlying cause so callers can see why a scrape failed.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return &ErrorDetail{Code: e.Code, Message: msg}
}

// ErrorCode returns the code of err if it is (or wraps) a ScrapeError,
// and ErrCodeInternal otherwise.
func ErrorCode(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

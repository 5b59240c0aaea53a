package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrBlocked indicates an anti-bot challenge page.
type ErrBlocked struct {
	Err error
}

func (e ErrBlocked) Error() string {
	return fmt.Errorf("blocked: %w", e.Err).Error()
}

func (e ErrBlocked) Unwrap() error {
	return e.Err
}

// ErrLoginRequired indicates a redirect to the sign-in wall.
type ErrLoginRequired struct {
	Err error
}

func (e ErrLoginRequired) Error() string {
	return fmt.Errorf("login_required: %w", e.Err).Error()
}

func (e ErrLoginRequired) Unwrap() error {
	return e.Err
}

// ErrErrorPage indicates a page whose title reports an error.
type ErrErrorPage struct {
	Err error
}

func (e ErrErrorPage) Error() string {
	return fmt.Errorf("error_page: %w", e.Err).Error()
}

func (e ErrErrorPage) Unwrap() error {
	return e.Err
}

// ErrTooSmall indicates a body too short to be an offer page.
type ErrTooSmall struct {
	Err error
}

func (e ErrTooSmall) Error() string {
	return fmt.Errorf("too_small: %w", e.Err).Error()
}

func (e ErrTooSmall) Unwrap() error {
	return e.Err
}

// ErrNoProductContent indicates a page without any product wording.
type ErrNoProductContent struct {
	Err error
}

func (e ErrNoProductContent) Error() string {
	return fmt.Errorf("no_product_content: %w", e.Err).Error()
}

func (e ErrNoProductContent) Unwrap() error {
	return e.Err
}

// FetchError is returned once every attempt for a URL is exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: gave up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if err == nil && statusCode >= http.StatusBadRequest {
			return wrapped
		}
	}

	if err == nil {
		return nil
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err == nil {
		return "exhausted"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var blocked ErrBlocked
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var login ErrLoginRequired
	if errors.As(err, &login) {
		return "login_required"
	}
	var errorPage ErrErrorPage
	if errors.As(err, &errorPage) {
		return "error_page"
	}
	var tooSmall ErrTooSmall
	if errors.As(err, &tooSmall) {
		return "too_small"
	}
	var noContent ErrNoProductContent
	if errors.As(err, &noContent) {
		return "no_product_content"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSource is returned when the supplied HTML file does not exist.
	ErrMissingSource = errors.New("supplied HTML file not found")
	// ErrOriginUnreachable is returned when the page itself cannot be fetched.
	ErrOriginUnreachable = errors.New("origin page unreachable")
	// ErrMissingCSSCache marks a stylesheet whose stored copy is absent when
	// its contents are about to be rewritten. It never aborts a run.
	ErrMissingCSSCache = errors.New("stylesheet not found in storage")
	// ErrOutsideOutput rejects a storage name that would land outside the
	// output directory.
	ErrOutsideOutput = errors.New("path escapes the output directory")
)

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind int

const (
	// FetchNetwork covers DNS, connection and body read failures.
	FetchNetwork FetchErrorKind = iota
	// FetchNotFound is an HTTP 404.
	FetchNotFound
	// FetchHTTPStatus is any other non-2xx status.
	FetchHTTPStatus
	// FetchTimeout is a request that exceeded its deadline.
	FetchTimeout
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNotFound:
		return "not-found"
	case FetchHTTPStatus:
		return "http-status"
	case FetchTimeout:
		return "timeout"
	default:
		return "network"
	}
}

// FetchError is returned by a Fetcher for every failed request.
type FetchError struct {
	Kind   FetchErrorKind
	URL    string
	Status int // HTTP status for FetchNotFound / FetchHTTPStatus
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchNotFound, FetchHTTPStatus:
		return fmt.Sprintf("HTTP %d for %s", e.Status, e.URL)
	case FetchTimeout:
		return fmt.Sprintf("request timed out for %s", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }


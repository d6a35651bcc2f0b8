package source

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/adeilh/carefeed/httpx"
)

// Failure kinds. A *FetchError unwraps to exactly one of these and to the
// underlying cause. Persisted-store failures never surface here: cache.Store
// logs them and reports a miss.
var (
	ErrNetwork     = errors.New("network error")
	ErrHTTPStatus  = errors.New("unexpected http status")
	ErrFormat      = errors.New("malformed payload")
	ErrCircuitOpen = errors.New("circuit open")
)

// ErrUnknownSource is returned by Catalog.Lookup.
var ErrUnknownSource = errors.New("source: unknown source")

// FetchError is returned when a fetch failed and no cached copy could be served.
type FetchError struct {
	Source string
	Kind   error
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source %s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{e.Kind, e.Err} }

func formatError(err error) error {
	if errors.Is(err, ErrFormat) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFormat, err)
}

func classify(name string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	// Transport failures, timeouts and cancellation are network errors.
	kind := ErrNetwork
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		kind = ErrCircuitOpen
	case errors.Is(err, ErrFormat):
		kind = ErrFormat
	case httpx.IsStatusError(err):
		kind = ErrHTTPStatus
	}
	return &FetchError{Source: name, Kind: kind, Err: err}
}

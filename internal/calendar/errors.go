package calendar

import (
	"errors"
	"fmt"
)

// ErrRateLimited is wrapped by FetchError when the client refused to call
// the API because the previous call was too recent.
var ErrRateLimited = errors.New("calendar fetch rate limited")

// FetchError reports a failed calendar download: transport failure,
// timeout or a non-2xx status. StatusCode is zero when no response arrived.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("calendar fetch failed: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("calendar fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err (or anything it wraps) is a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ParseError reports a single timestamp that could not be understood.
// It never escapes the parser; offending values are logged and dropped.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse timestamp %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package mtrapi

import (
	"errors"
	"fmt"
)

// NetworkError is a transport failure, a non-2xx status or an unreadable body.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ApplicationError is a well-formed response reporting failure.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return "no arrival data available"
	}
	return e.Message
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsApplicationError(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

package custody

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrForeignURL is returned when a signed request targets a host other than the API.
	ErrForeignURL = errors.New("signed request url is not on the custody api host")
	// ErrEmptyResult is returned when a completed activity carries no result.
	ErrEmptyResult = errors.New("activity completed without a result")
)

// CodeNotFound is the API status code for an unknown organization or user.
const CodeNotFound = 5

// RequestError is a non-2xx response from the custody API.
type RequestError struct {
	StatusCode int
	Code       int
	Message    string
	Details    json.RawMessage
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("custody request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("custody request failed: status %d, code %d: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a RequestError carrying CodeNotFound.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Code == CodeNotFound
}

// ActivityError is returned when an activity ends in a non-successful state.
type ActivityError struct {
	ActivityID string
	Status     string
	Message    string
}

func (e *ActivityError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("activity %s ended with status %s", e.ActivityID, e.Status)
	}
	return fmt.Sprintf("activity %s ended with status %s: %s", e.ActivityID, e.Status, e.Message)
}

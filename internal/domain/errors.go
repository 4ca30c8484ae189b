package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks work stopped by a cancellation request
	ErrCancelled = errors.New("cancelled")
	// ErrInvalidURL is returned for page URLs that are not absolute http(s) URLs
	ErrInvalidURL = errors.New("invalid URL")
	// ErrUnknownCategory is returned when a filter names no category of the table
	ErrUnknownCategory = errors.New("unknown category")
	// ErrJobNotFound is returned by the job registry for unknown IDs
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when acting on a job that already finished
	ErrJobTerminal = errors.New("job already finished")
	// ErrJobActive is returned when deleting a job that is still queued or running
	ErrJobActive = errors.New("job still active")
	// ErrInvalidDestination is returned for download directories outside the base directory
	ErrInvalidDestination = errors.New("destination outside download directory")
)

// DiscoveryError aborts a discovery run; no partial results accompany it
type DiscoveryError struct {
	URL   string
	Cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery of %s failed: %v", e.URL, e.Cause)
}

func (e *DiscoveryError) Unwrap() error { return e.Cause }

// FilesystemError aborts a session before any item is attempted
type FilesystemError struct {
	Op    string
	Path  string
	Cause error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *FilesystemError) Unwrap() error { return e.Cause }

// HTTPStatusError is an item failure caused by a status code of 400 or above
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// IsCancelled reports whether err stems from a cancellation request
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

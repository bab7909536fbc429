package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL   = errors.New("invalid URL")
	ErrCrawlStopped = errors.New("crawl has been stopped")
	ErrNotFound     = errors.New("artifact not found")
	ErrEmptyBody    = errors.New("empty response body")
	ErrBodyTooLarge = errors.New("response body too large")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while parsing HTML.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while reading or writing artifacts.
type StorageError struct {
	Backend string
	Op      string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage error (%s %s %s): %v", e.Backend, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CollisionError reports two distinct URLs resolving to the same storage key.
type CollisionError struct {
	Key      string
	Existing string
	URL      string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("storage key %s already assigned to %s, cannot reuse for %s", e.Key, e.Existing, e.URL)
}

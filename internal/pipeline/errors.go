package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the source cannot be reached or refused the request. It ends the run.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrPageTimeout means a page did not become ready in time. The page is skipped.
	ErrPageTimeout = errors.New("page timeout")
	// ErrNotFound means the requested page does not exist; positional navigation ends there.
	ErrNotFound = errors.New("page not found")
)

// SourceError carries the failing request of an unavailable source.
type SourceError struct {
	URL    string
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("source unavailable: %s: status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("source unavailable: %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("source unavailable: %s: %v", e.URL, e.Err)
	}
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// PageTimeout wraps err as a page timeout for url.
func PageTimeout(url string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrPageTimeout, url)
	}
	return fmt.Errorf("%w: %s: %v", ErrPageTimeout, url, err)
}

// RejectReason classifies why a record failed validation.
type RejectReason string

const (
	MissingRequiredField RejectReason = "missing_required_field"
	MalformedField       RejectReason = "malformed_field"
)

// Rejection is returned by the validator for a record that violates its schema.
type Rejection struct {
	Reason RejectReason
	Field  string
	Rule   string
}

func (r *Rejection) Error() string {
	if r.Rule == "" {
		return fmt.Sprintf("%s(%s)", r.Reason, r.Field)
	}
	return fmt.Sprintf("%s(%s, %s)", r.Reason, r.Field, r.Rule)
}

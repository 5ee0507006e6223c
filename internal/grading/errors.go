package grading

import (
	"errors"
	"fmt"
)

// ErrNoDocuments is returned when none of a job's documents could be normalized.
var ErrNoDocuments = errors.New("no valid client documents could be downloaded")

// ConfigurationError reports a startup precondition that retrying cannot fix,
// such as a missing reference-document directory or environment variable.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SessionInitError reports that a review session could not be made ready.
// It aborts the whole run.
type SessionInitError struct {
	Stage string
	Err   error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("review session init failed at %s: %v", e.Stage, e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}

// StateError reports an operation attempted from the wrong lifecycle state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %q", e.Op, e.State)
}

// NormalizationError reports that one source document could not be fetched
// or converted. Callers treat it as "this document is unavailable".
type NormalizationError struct {
	Locator  string
	MIMEType string
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.MIMEType != "" {
		return fmt.Sprintf("normalize %s (%s): %v", e.Locator, e.MIMEType, e.Err)
	}
	return fmt.Sprintf("normalize %s: %v", e.Locator, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err belongs to a class that no retry can fix.
func IsPermanent(err error) bool {
	var cfgErr *ConfigurationError
	var stateErr *StateError
	return errors.As(err, &cfgErr) || errors.As(err, &stateErr)
}

// Reason returns the message of the innermost error in err's chain. Wrapping
// layers add context for logs; the root cause is what fits a status cell.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	if msg := root.Error(); msg != "" {
		return msg
	}
	return err.Error()
}

// Package errors defines the coded error type surfaced by qms commands.
package errors

import "fmt"

// ErrorCode is a stable, machine-readable failure class.
type ErrorCode string

const (
	StorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	StorageWriteFailed ErrorCode = "STORAGE_WRITE_FAILED"
	// InvalidID is a canonical id without a type prefix.
	InvalidID ErrorCode = "INVALID_ID"
	// ParseFailed is a document that could not be decoded or validated.
	ParseFailed     ErrorCode = "PARSE_FAILED"
	ProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	// IndexLocked means another process holds the rebuild lock.
	IndexLocked   ErrorCode = "INDEX_LOCKED"
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType says how a FixAction is carried out.
type FixActionType string

const (
	RunCommand FixActionType = "run-command"
	EditFile   FixActionType = "edit-file"
)

// FixAction is a suggested remedy printed under an error.
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// QmsError carries a code, a message and suggested fixes around an
// optional cause.
type QmsError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// NewQmsError creates a QmsError with explicit fixes.
func NewQmsError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *QmsError {
	return &QmsError{Code: code, Message: message, SuggestedFixes: suggestedFixes, cause: cause}
}

// Wrap creates a QmsError carrying the default fixes for its code.
func Wrap(code ErrorCode, message string, cause error) *QmsError {
	return NewQmsError(code, message, cause, FixesFor(code))
}

func (e *QmsError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
}

func (e *QmsError) Unwrap() error { return e.cause }

// Is matches any QmsError with the same code, so errors.Is(err,
// &QmsError{Code: IndexLocked}) works through wrapping.
func (e *QmsError) Is(target error) bool {
	t, ok := target.(*QmsError)
	return ok && t.Code == e.Code
}

// WithFix appends a fix and returns e.
func (e *QmsError) WithFix(fix FixAction) *QmsError {
	e.SuggestedFixes = append(e.SuggestedFixes, fix)
	return e
}

// FixesFor returns the default fixes for code, or nil.
func FixesFor(code ErrorCode) []FixAction {
	switch code {
	case StorageUnavailable:
		return []FixAction{{
			Type:        RunCommand,
			Command:     "qms cache status",
			Safe:        true,
			Description: "Inspect the cache file and its directory permissions",
		}}
	case StorageWriteFailed:
		return []FixAction{{
			Type:        RunCommand,
			Command:     "qms cache rebuild",
			Safe:        true,
			Description: "Rebuild the cache from the document tree",
		}}
	case ProjectNotFound:
		return []FixAction{{
			Type:        RunCommand,
			Command:     "qms init",
			Safe:        true,
			Description: "Initialize a project in the current directory",
		}}
	case IndexLocked:
		return []FixAction{{
			Type:        RunCommand,
			Command:     "qms cache status",
			Safe:        true,
			Description: "Retry once the other process has finished",
		}}
	}
	return nil
}

// Find returns the first QmsError in err's chain, or nil.
func Find(err error) *QmsError {
	for err != nil {
		if qe, ok := err.(*QmsError); ok {
			return qe
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// CodeOf returns the code of the first QmsError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if qe := Find(err); qe != nil {
		return qe.Code
	}
	return ""
}

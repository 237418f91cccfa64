// Package errs defines the tagged failure taxonomy shared by the pipeline.
// Every failure site produces the same error shape; the orchestrator
// dispatches on severity alone, never on concrete error strings.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a specific failure condition.
type Kind string

const (
	KindNavigationFailed   Kind = "NAVIGATION_FAILED"
	KindSessionInvalidated Kind = "SESSION_INVALIDATED"
	KindParseInvalid       Kind = "PARSE_INVALID"
	KindOcrUnavailable     Kind = "OCR_UNAVAILABLE"
	KindOcrNoMatch         Kind = "OCR_NO_MATCH"
	KindRenderFailed       Kind = "RENDER_FAILED"
	KindExportFlushFailed  Kind = "EXPORT_FLUSH_FAILED"
)

// Severity determines how the orchestrator reacts to a failure.
type Severity int

const (
	// TransientSkip: retry with backoff; once exhausted, skip the record or
	// page and continue the job.
	TransientSkip Severity = iota
	// TransientFatal: retry with backoff; once exhausted, the job fails.
	TransientFatal
	// Permanent: never retried. Whether the job continues depends on the
	// kind (per-record kinds continue, export flush does not).
	Permanent
)

func (s Severity) String() string {
	switch s {
	case TransientSkip:
		return "transient-skip"
	case TransientFatal:
		return "transient-fatal"
	default:
		return "permanent"
	}
}

// Error carries a failure kind, its severity, and optional context such as
// the offending URL.
type Error struct {
	Kind       Kind
	Severity   Severity
	Message    string
	URL        string
	Underlying error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.URL != "" {
		s += fmt.Sprintf(" (url=%s)", e.URL)
	}
	if e.Underlying != nil {
		s += fmt.Sprintf(": %v", e.Underlying)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches on Kind so callers can use errors.Is with kind sentinels.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithURL attaches the offending URL and returns the error.
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// New builds an Error for the given kind with its canonical severity.
func New(kind Kind, severity Severity, message string, underlying error) *Error {
	return &Error{Kind: kind, Severity: severity, Message: message, Underlying: underlying}
}

// NavigationFailed marks a transient navigation problem for url. The
// orchestrator skips the page once retries are exhausted.
func NavigationFailed(url string, err error) *Error {
	return New(KindNavigationFailed, TransientSkip, "navigation failed", err).WithURL(url)
}

// SessionInvalidated marks a mid-job session loss. One re-login is attempted;
// a second consecutive invalidation is fatal for the job.
func SessionInvalidated(err error) *Error {
	return New(KindSessionInvalidated, TransientFatal, "session invalidated by server", err)
}

// ParseInvalid marks a record whose extracted value failed validation.
func ParseInvalid(message string, err error) *Error {
	return New(KindParseInvalid, Permanent, message, err)
}

// OcrUnavailable marks a recognition tooling problem, as opposed to a
// genuinely illegible source document.
func OcrUnavailable(err error) *Error {
	return New(KindOcrUnavailable, Permanent, "ocr engine unavailable", err)
}

// OcrNoMatch marks a page the engine processed but produced no usable text for.
func OcrNoMatch(message string) *Error {
	if message == "" {
		message = "no usable text recognized"
	}
	return New(KindOcrNoMatch, Permanent, message, nil)
}

// RenderFailed marks a failure producing the document artifact.
func RenderFailed(err error) *Error {
	return New(KindRenderFailed, Permanent, "artifact rendering failed", err)
}

// ExportFlushFailed marks a failure writing the export file. Always fatal.
func ExportFlushFailed(err error) *Error {
	return New(KindExportFlushFailed, Permanent, "export flush failed", err)
}

// KindOf returns the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// SeverityOf classifies err. Timeouts without a tag count as transient;
// anything else untagged is permanent.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	if isTimeout(err) {
		return TransientSkip
	}
	return Permanent
}

// Retryable reports whether err should go through the backoff loop.
func Retryable(err error) bool {
	return SeverityOf(err) != Permanent
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}

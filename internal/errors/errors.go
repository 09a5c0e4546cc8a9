package errors

import (
	stderrors "errors"
	"fmt"
)

// EngineError carries a typed ErrorCode plus the local context (filename,
// track, operation) that CLI output and indexing reports attach to it.
type EngineError struct {
	Code    ErrorCode
	Message string
	Subject string // filename or track identifier, when applicable
}

func (e *EngineError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Decode reports an unreadable or corrupt audio file.
func Decode(subject string, cause error) *EngineError {
	return &EngineError{Code: ErrDecode, Message: cause.Error(), Subject: subject}
}

// EmptyAudio reports a decode that produced zero samples for the window.
func EmptyAudio(subject string) *EngineError {
	return &EngineError{Code: ErrEmptyAudio, Message: "decoded buffer is empty", Subject: subject}
}

// ZeroFeature reports a query summary vector with zero L2 norm.
func ZeroFeature(subject string) *EngineError {
	return &EngineError{Code: ErrZeroFeature, Message: "feature vector has zero norm", Subject: subject}
}

// NoCandidates reports that Stage-2 was invoked but the store has no
// feature-summary rows to screen against.
func NoCandidates() *EngineError {
	return &EngineError{Code: ErrNoCandidates, Message: "no candidates with both mfcc and chroma summaries"}
}

// Store reports a persistent-store failure during a write or read.
func Store(op string, cause error) *EngineError {
	return &EngineError{Code: ErrStore, Message: fmt.Sprintf("%s: %v", op, cause)}
}

// IO reports a filesystem failure opening a track file.
func IO(subject string, cause error) *EngineError {
	return &EngineError{Code: ErrIO, Message: cause.Error(), Subject: subject}
}

// IsCode reports whether err is an EngineError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var ee *EngineError
	return stderrors.As(err, &ee) && ee.Code == code
}

// IsNoMatch reports whether err is one of the kinds that mean "no match
// for this window" rather than a failure: an empty decode window, a
// zero-norm query summary, or a feature store with nothing to screen.
func IsNoMatch(err error) bool {
	return IsCode(err, ErrEmptyAudio) || IsCode(err, ErrZeroFeature) || IsCode(err, ErrNoCandidates)
}

// Package domain defines core types, interfaces, and errors for the extraction pipeline.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies extraction and normalization failures.
type ErrorKind string

// Error kinds surfaced by extractors, the dispatcher and the normalizer.
const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindDecodeFailure     ErrorKind = "decode_failure"
	KindExtraction        ErrorKind = "extraction_failure"
	KindPartial           ErrorKind = "partial_extraction"
	KindPath              ErrorKind = "path_error"
	KindSchemaConflict    ErrorKind = "schema_conflict"
)

// ExtractionError is the single error type for per-file pipeline failures.
// Kind decides where the dispatcher files the outcome.
type ExtractionError struct {
	Kind    ErrorKind
	Path    string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, msg)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func newExtractionError(kind ErrorKind, path string, err error, format string, args ...interface{}) *ExtractionError {
	return &ExtractionError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrUnsupportedFormat reports an extension with no extractor, or one that is
// deliberately rejected.
func ErrUnsupportedFormat(path string, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindUnsupportedFormat, path, nil, format, args...)
}

// ErrDecodeFailure reports content that could not be decoded.
func ErrDecodeFailure(path string, err error, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindDecodeFailure, path, err, format, args...)
}

// ErrExtraction reports a parser failure after every strategy was attempted.
func ErrExtraction(path string, err error, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindExtraction, path, err, format, args...)
}

// ErrPartial reports that primary and fallback strategies both returned no content.
func ErrPartial(path string, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindPartial, path, nil, format, args...)
}

// ErrPath reports a missing or unreadable file or directory.
func ErrPath(path string, err error, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindPath, path, err, format, args...)
}

// ErrSchemaConflict reports a column whose value kinds disagree across sources.
func ErrSchemaConflict(dataset string, format string, args ...interface{}) *ExtractionError {
	return newExtractionError(KindSchemaConflict, dataset, nil, format, args...)
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an
// ExtractionError.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

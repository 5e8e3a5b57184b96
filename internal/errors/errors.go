// Package errors provides structured error types for kbexport.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for kbexport.
const (
	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"

	// Lookup errors
	CodeCollectionNotFound Code = "COLLECTION_NOT_FOUND"

	// Pipeline errors
	CodeDocumentStore   Code = "DOCUMENT_STORE"
	CodeRenderFailed    Code = "RENDER_FAILED"
	CodeBlobFetch       Code = "BLOB_FETCH"
	CodeArchiveFinalize Code = "ARCHIVE_FINALIZE"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryInternal
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeConfigInvalid:      CategoryBadRequest,
	CodeConfigMissing:      CategoryBadRequest,
	CodeCollectionNotFound: CategoryNotFound,
	CodeDocumentStore:      CategoryUnavailable,
	CodeRenderFailed:       CategoryInternal,
	CodeBlobFetch:          CategoryUnavailable,
	CodeArchiveFinalize:    CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// ExportError is the structured error type for kbexport.
type ExportError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *ExportError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *ExportError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *ExportError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *ExportError) MarshalJSON() ([]byte, error) {
	type alias ExportError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an ExportError with the same code.
func (e *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ExportError) WithCause(err error) *ExportError {
	return &ExportError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *ExportError {
	return &ExportError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .kbexport/config.yaml and fix the invalid field",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *ExportError {
	return &ExportError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set in configuration",
		Fix:  fmt.Sprintf("Add '%s' to .kbexport/config.yaml", field),
	}
}

// ErrCollectionNotFound returns an error when a requested collection doesn't exist.
func ErrCollectionNotFound(id string) *ExportError {
	return &ExportError{
		Code: CodeCollectionNotFound,
		What: fmt.Sprintf("collection %s not found", id),
		Why:  "No collection with this ID or name exists in the document store",
		Fix:  "Run 'kbexport export --list' to see available collections",
	}
}

// ErrDocumentStore wraps a document store failure. These abort the export.
func ErrDocumentStore(op string, cause error) *ExportError {
	return &ExportError{
		Code:  CodeDocumentStore,
		What:  fmt.Sprintf("document store %s failed", op),
		Fix:   "Check database connectivity and retry the export",
		Cause: cause,
	}
}

// ErrRenderFailed wraps a content rendering failure. subject names what was
// being rendered, e.g. "document <id>".
func ErrRenderFailed(subject string, cause error) *ExportError {
	return &ExportError{
		Code:  CodeRenderFailed,
		What:  fmt.Sprintf("render %s", subject),
		Cause: cause,
	}
}

// ErrBlobFetch wraps a blob storage read failure for a key.
func ErrBlobFetch(key string, cause error) *ExportError {
	return &ExportError{
		Code:  CodeBlobFetch,
		What:  fmt.Sprintf("fetch attachment %s", key),
		Cause: cause,
	}
}

// ErrArchiveFinalize wraps a failure to persist the finished archive.
func ErrArchiveFinalize(cause error) *ExportError {
	return &ExportError{
		Code:  CodeArchiveFinalize,
		What:  "finalize archive",
		Why:   "The archive could not be written to its temporary location",
		Fix:   "Check free disk space and permissions of export.temp_dir",
		Cause: cause,
	}
}

// AsExportError attempts to convert an error to an ExportError.
// Returns nil if the error is not an ExportError.
func AsExportError(err error) *ExportError {
	var exportErr *ExportError
	if stderrors.As(err, &exportErr) {
		return exportErr
	}
	return nil
}

// HasCode reports whether err wraps an ExportError with the given code.
func HasCode(err error, code Code) bool {
	e := AsExportError(err)
	return e != nil && e.Code == code
}

// Wrap wraps a generic error into an ExportError with unknown code.
func Wrap(err error, what string) *ExportError {
	return &ExportError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}

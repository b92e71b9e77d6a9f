package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases. Every domain error type below
// unwraps to exactly one of these so callers can branch with errors.Is.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrBusinessRule   = errors.New("business rule violation")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Kind classifies an error for callers that need to branch without type switches.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindBusinessRule Kind = "business_rule"
	KindNotFound     Kind = "not_found"
	KindDuplicate    Kind = "duplicate"
	KindConcurrency  Kind = "concurrency"
	KindInternal     Kind = "internal"
)

// KindOf reports the Kind of err by walking its chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrBusinessRule):
		return KindBusinessRule
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindDuplicate
	case errors.Is(err, ErrConflict):
		return KindConcurrency
	default:
		return KindInternal
	}
}

// ValidationError reports a required or malformed field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Validation creates a ValidationError for the given field.
func Validation(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ValidationErrorCollection aggregates field-level validation errors.
type ValidationErrorCollection struct {
	Errors []*ValidationError
}

// Add appends a validation error to the collection.
func (c *ValidationErrorCollection) Add(field string, value any, message string) {
	c.Errors = append(c.Errors, Validation(field, value, message))
}

// Append adds an existing error, flattening nested collections.
func (c *ValidationErrorCollection) Append(err error) {
	var coll *ValidationErrorCollection
	if errors.As(err, &coll) {
		c.Errors = append(c.Errors, coll.Errors...)
		return
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		c.Errors = append(c.Errors, ve)
	}
}

// HasErrors reports whether any error was collected.
func (c *ValidationErrorCollection) HasErrors() bool { return len(c.Errors) > 0 }

// Field returns the first error recorded for the field, if any.
func (c *ValidationErrorCollection) Field(name string) (*ValidationError, bool) {
	for _, e := range c.Errors {
		if e.Field == name {
			return e, true
		}
	}
	return nil, false
}

// Fields returns a map of field names to error messages.
func (c *ValidationErrorCollection) Fields() map[string]string {
	fields := make(map[string]string, len(c.Errors))
	for _, e := range c.Errors {
		if _, ok := fields[e.Field]; !ok {
			fields[e.Field] = e.Message
		}
	}
	return fields
}

// Err returns the collection as an error, or nil when it is empty.
func (c *ValidationErrorCollection) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return c
}

func (c *ValidationErrorCollection) Error() string {
	if len(c.Errors) == 1 {
		return c.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed on %d fields", len(c.Errors))
}

func (c *ValidationErrorCollection) Unwrap() error { return ErrInvalidInput }

// BusinessRuleViolationError reports a named domain rule that was broken.
type BusinessRuleViolationError struct {
	Rule    string
	Message string
}

// BusinessRule creates a BusinessRuleViolationError.
func BusinessRule(rule, message string) *BusinessRuleViolationError {
	return &BusinessRuleViolationError{Rule: rule, Message: message}
}

func (e *BusinessRuleViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *BusinessRuleViolationError) Unwrap() error { return ErrBusinessRule }

// IsRule reports whether err is a BusinessRuleViolationError for rule.
func IsRule(err error, rule string) bool {
	var br *BusinessRuleViolationError
	return errors.As(err, &br) && br.Rule == rule
}

// EntityNotFoundError reports a missing entity.
type EntityNotFoundError struct {
	Entity string
	ID     string
}

// NotFound creates an EntityNotFoundError.
func NotFound(entity, id string) *EntityNotFoundError {
	return &EntityNotFoundError{Entity: entity, ID: id}
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Entity, e.ID)
}

func (e *EntityNotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateEntityError reports a uniqueness conflict on a field.
type DuplicateEntityError struct {
	Entity string
	Field  string
	Value  string
}

// AlreadyExists creates a DuplicateEntityError.
func AlreadyExists(entity, field, value string) *DuplicateEntityError {
	return &DuplicateEntityError{Entity: entity, Field: field, Value: value}
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *DuplicateEntityError) Unwrap() error { return ErrAlreadyExists }

// ConcurrencyError reports an optimistic-locking version mismatch.
type ConcurrencyError struct {
	Entity   string
	ID       string
	Expected int
	Actual   int
}

// Concurrency creates a ConcurrencyError.
func Concurrency(entity, id string, expected, actual int) *ConcurrencyError {
	return &ConcurrencyError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently: expected version %d, found %d",
		e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConflict }

// AppError represents a structured API error with HTTP status mapping.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Rule    string            `json:"rule,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusinessRule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToAppError converts any error into the API envelope. Internal errors only
// carry their underlying message when exposeInternal is set (development).
func ToAppError(err error, exposeInternal bool) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	status := HTTPStatus(err)

	var (
		coll *ValidationErrorCollection
		ve   *ValidationError
		br   *BusinessRuleViolationError
		nf   *EntityNotFoundError
		dup  *DuplicateEntityError
		ce   *ConcurrencyError
	)
	switch {
	case errors.As(err, &coll):
		return &AppError{Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: coll.Fields(), Status: status, Err: err}
	case errors.As(err, &ve):
		return &AppError{Code: "VALIDATION_ERROR", Message: ve.Message, Fields: map[string]string{ve.Field: ve.Message}, Status: status, Err: err}
	case errors.As(err, &br):
		return &AppError{Code: "BUSINESS_RULE_VIOLATION", Message: br.Message, Rule: br.Rule, Status: status, Err: err}
	case errors.As(err, &nf):
		return &AppError{Code: "NOT_FOUND", Message: nf.Error(), Status: status, Err: err}
	case errors.As(err, &dup):
		return &AppError{Code: "ALREADY_EXISTS", Message: dup.Error(), Status: status, Err: err}
	case errors.As(err, &ce):
		return &AppError{Code: "CONFLICT", Message: ce.Error(), Status: status, Err: err}
	}

	if status != http.StatusInternalServerError {
		return &AppError{Code: codeForStatus(status), Message: err.Error(), Status: status, Err: err}
	}

	out := Internal(err)
	if exposeInternal {
		out.Message = err.Error()
	}
	return out
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "BUSINESS_RULE_VIOLATION"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

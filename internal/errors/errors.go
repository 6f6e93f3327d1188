// Package errors provides structured error types for minirel.
// All errors include a category, code and message so that front ends can
// translate them into user-visible messages and transport status codes.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the kind of failure.
type ErrorCategory string

const (
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryConstraint ErrorCategory = "CONSTRAINT"
	ErrCategoryNotFound   ErrorCategory = "NOT_FOUND"
	ErrCategoryType       ErrorCategory = "TYPE"
	ErrCategoryStatement  ErrorCategory = "STATEMENT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Schema codes
	CodeTableExists      = "TABLE_EXISTS"
	CodeDuplicateColumn  = "DUPLICATE_COLUMN"
	CodeUnsupportedType  = "UNSUPPORTED_TYPE"
	CodeInvalidColumnDef = "INVALID_COLUMN_DEF"

	// Constraint codes
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"

	// Not-found codes
	CodeTableNotFound  = "TABLE_NOT_FOUND"
	CodeColumnNotFound = "COLUMN_NOT_FOUND"

	// Type codes
	CodeTypeMismatch = "TYPE_MISMATCH"

	// Statement codes
	CodeSyntaxError           = "SYNTAX_ERROR"
	CodeInvalidPredicate      = "INVALID_PREDICATE"
	CodeArgumentCountMismatch = "ARGUMENT_COUNT_MISMATCH"
	CodeUnknownTableAlias     = "UNKNOWN_TABLE_ALIAS"
	CodeUnsupportedOperator   = "UNSUPPORTED_OPERATOR"
	CodeInvalidProjection     = "INVALID_PROJECTION"
	CodeJoinTableMismatch     = "JOIN_TABLE_MISMATCH"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinel errors for errors.Is checks. Matching compares category and code only.
var (
	ErrTableExists         = New(ErrCategorySchema, CodeTableExists, "table already exists")
	ErrDuplicateColumn     = New(ErrCategorySchema, CodeDuplicateColumn, "duplicate column")
	ErrUnsupportedType     = New(ErrCategorySchema, CodeUnsupportedType, "unsupported column type")
	ErrInvalidColumnDef    = New(ErrCategorySchema, CodeInvalidColumnDef, "invalid column definition")
	ErrConstraintViolation = New(ErrCategoryConstraint, CodeConstraintViolation, "constraint violation")
	ErrTableNotFound       = New(ErrCategoryNotFound, CodeTableNotFound, "table not found")
	ErrColumnNotFound      = New(ErrCategoryNotFound, CodeColumnNotFound, "column not found")
	ErrTypeMismatch        = New(ErrCategoryType, CodeTypeMismatch, "type mismatch")
	ErrSyntax              = New(ErrCategoryStatement, CodeSyntaxError, "syntax error")
	ErrInvalidPredicate    = New(ErrCategoryStatement, CodeInvalidPredicate, "invalid predicate")
	ErrArgumentCount       = New(ErrCategoryStatement, CodeArgumentCountMismatch, "argument count mismatch")
	ErrUnknownTableAlias   = New(ErrCategoryStatement, CodeUnknownTableAlias, "unknown table alias")
	ErrUnsupportedOperator = New(ErrCategoryStatement, CodeUnsupportedOperator, "unsupported operator")
	ErrInvalidProjection   = New(ErrCategoryStatement, CodeInvalidProjection, "invalid projection")
	ErrJoinTableMismatch   = New(ErrCategoryStatement, CodeJoinTableMismatch, "join table mismatch")
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *Error {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message returns the human-readable message of err without the
// category/code prefix, falling back to err.Error() for foreign errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// Convenience constructors for common errors.

func NewSchemaError(code, format string, args ...interface{}) *Error {
	return Newf(ErrCategorySchema, code, format, args...)
}

func NewStatementError(code, format string, args ...interface{}) *Error {
	return Newf(ErrCategoryStatement, code, format, args...)
}

func NewTableNotFound(table string) *Error {
	return Newf(ErrCategoryNotFound, CodeTableNotFound, "table '%s' does not exist", table).
		WithDetails(map[string]interface{}{"table": table})
}

func NewColumnNotFound(table, column string) *Error {
	return Newf(ErrCategoryNotFound, CodeColumnNotFound, "column '%s' does not exist in table '%s'", column, table).
		WithDetails(map[string]interface{}{"table": table, "column": column})
}

// NewConstraintViolation reports a primary-key or unique collision.
// value is the offending (normalized) value.
func NewConstraintViolation(column string, value interface{}) *Error {
	return Newf(ErrCategoryConstraint, CodeConstraintViolation,
		"unique constraint violated for column '%s' with value %v", column, value).
		WithDetails(map[string]interface{}{"column": column, "value": value})
}

func NewTypeMismatch(column, declared string, value interface{}) *Error {
	return Newf(ErrCategoryType, CodeTypeMismatch,
		"invalid %s value for column '%s': %#v", declared, column, value).
		WithDetails(map[string]interface{}{"column": column, "value": value})
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

package errors

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common application errors
var (
	ErrNotFound        = NewNotFoundError("resource", "resource not found")
	ErrAlreadyExists   = NewAlreadyExistsError("resource", "resource already exists")
	ErrInvalidArgument = NewValidationError("", "invalid argument")
	ErrInternal        = NewInternalError("internal server error", nil)
	ErrUnauthenticated = NewUnauthenticatedError("invalid username or password")
)

// opaqueMessage is what clients see for infrastructure failures.
const opaqueMessage = "internal server error"

// FieldViolation describes a single rejected input field.
type FieldViolation struct {
	Field       string
	Description string
}

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field      string
	Message    string
	Violations []FieldViolation
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WithViolations attaches per-field details to the error.
func (e *ValidationError) WithViolations(v ...FieldViolation) *ValidationError {
	e.Violations = append(e.Violations, v...)
	return e
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// GRPCStatus returns the gRPC status for this error.
// Field violations travel as a google.rpc.BadRequest detail.
func (e *ValidationError) GRPCStatus() *status.Status {
	st := status.New(codes.InvalidArgument, e.Message)
	if len(e.Violations) == 0 {
		return st
	}

	br := &errdetails.BadRequest{}
	for _, v := range e.Violations {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Description,
		})
	}

	detailed, err := st.WithDetails(br)
	if err != nil {
		return st
	}
	return detailed
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// GRPCStatus returns the gRPC status for this error
func (e *NotFoundError) GRPCStatus() *status.Status {
	return status.New(codes.NotFound, e.Error())
}

// AlreadyExistsError represents a resource already exists error
type AlreadyExistsError struct {
	Resource string
	Message  string
}

// NewAlreadyExistsError creates a new already exists error
func NewAlreadyExistsError(resource, message string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *AlreadyExistsError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

// GRPCStatus returns the gRPC status for this error
func (e *AlreadyExistsError) GRPCStatus() *status.Status {
	return status.New(codes.AlreadyExists, e.Error())
}

// UnauthenticatedError is returned for every failed login, whatever the cause,
// so callers cannot tell a missing account from a wrong password.
type UnauthenticatedError struct {
	Message string
}

// NewUnauthenticatedError creates a new unauthenticated error
func NewUnauthenticatedError(message string) *UnauthenticatedError {
	return &UnauthenticatedError{Message: message}
}

// Error implements the error interface
func (e *UnauthenticatedError) Error() string {
	return e.Message
}

// GRPCStatus returns the gRPC status for this error
func (e *UnauthenticatedError) GRPCStatus() *status.Status {
	return status.New(codes.Unauthenticated, e.Message)
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error
func (e *InternalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Message)
}

// HashingError reports a failure of the password hashing algorithm itself
// (randomness, malformed stored hash, no worker slot). A password that simply
// does not match is never a HashingError.
type HashingError struct {
	Op  string
	Err error
}

// NewHashingError creates a new hashing error
func NewHashingError(op string, err error) *HashingError {
	return &HashingError{Op: op, Err: err}
}

// Error implements the error interface
func (e *HashingError) Error() string {
	return fmt.Sprintf("hashing failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *HashingError) Unwrap() error {
	return e.Err
}

// GRPCStatus hides the cause from clients.
func (e *HashingError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, opaqueMessage)
}

// StorageError reports a failed lookup or insert against the user store.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError creates a new storage error
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// GRPCStatus hides the cause from clients.
func (e *StorageError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, opaqueMessage)
}

// GRPCStatuser interface for errors that can provide gRPC status
type GRPCStatuser interface {
	GRPCStatus() *status.Status
}

package tool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrNilSchema is returned when a tool declares no input schema.
	ErrNilSchema = errors.New("tool must declare an input schema")

	// ErrRegistrySealed is returned by Register once the registry is sealed.
	ErrRegistrySealed = errors.New("tool registry is sealed")

	// ErrNotFound classifies references to entities missing from the store.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports an argument that violates the tool's declared
// shape. It is always raised before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a *NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// StoreError wraps a failure reported by the data store adapter. Its
// message is the adapter's message, unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// StoreFailure wraps err as a *StoreError unless it already is one or is nil.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ErrorKind classifies an error envelope for transports that map it onto
// their own status codes.
type ErrorKind string

// Error kinds.
const (
	KindNone        ErrorKind = ""
	KindUnknownTool ErrorKind = "unknown_tool"
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindStore       ErrorKind = "store"
	KindInternal    ErrorKind = "internal"
)

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	var (
		ve *ValidationError
		se *StoreError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrToolNotFound):
		return KindUnknownTool
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &se):
		return KindStore
	default:
		return KindInternal
	}
}

// joinValidation joins errs into one error whose message lists every
// violation on a single line.
func joinValidation(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &multiValidation{errs: errs}
}

type multiValidation struct{ errs []error }

func (m *multiValidation) Error() string {
	parts := make([]string, len(m.errs))
	for i, e := range m.errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (m *multiValidation) Unwrap() []error { return m.errs }

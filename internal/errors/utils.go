package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a MistError if the
// input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *MistError {
	if err == nil {
		return nil
	}

	// If it's already a MistError, keep its context on the wrapper
	var me *MistError
	if errors.As(err, &me) {
		return &MistError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   me,
			Context: me.Context,
			Node:    me.Node,
		}
	}

	return &MistError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// FromPanic converts a recovered panic value into an error. Runtime errors
// raised by must-style constructors are returned unchanged.
func FromPanic(r interface{}) error {
	switch v := r.(type) {
	case nil:
		return nil
	case *MistError:
		return v
	case error:
		return NewInternalError(ErrCodeInternalError, "panic", v)
	default:
		return NewInternalError(ErrCodeInternalError, fmt.Sprintf("panic: %v", v), nil)
	}
}

// GetErrorContext returns the context map of a MistError, or nil.
func GetErrorContext(err error) map[string]interface{} {
	var me *MistError
	if errors.As(err, &me) {
		return me.Context
	}
	return nil
}

// CombineErrors joins the non-nil errors, returning nil if there are none.
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}

// As is errors.As from the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

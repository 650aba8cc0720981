package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeRouting  ErrorType = "routing"
	ErrorTypeState    ErrorType = "state"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// MistError is a structured error type with context.
type MistError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	// Node names the tag or route the error was raised for, if any.
	Node string
}

// Error implements the error interface.
func (e *MistError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Node != "" {
		parts = append(parts, "node:"+e.Node)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *MistError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same type and code. This lets the
// package-level sentinels match any error raised with the same code.
func (e *MistError) Is(target error) bool {
	var t *MistError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *MistError) WithContext(key string, value interface{}) *MistError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithNode records the tag or route the error concerns.
func (e *MistError) WithNode(node string) *MistError {
	e.Node = node

	return e
}

// Error creation functions

// NewRenderError creates a render or reconciliation error.
func NewRenderError(code, message string) *MistError {
	return &MistError{
		Type:    ErrorTypeRender,
		Code:    code,
		Message: message,
	}
}

// NewRoutingError creates a routing error.
func NewRoutingError(code, message string) *MistError {
	return &MistError{
		Type:    ErrorTypeRouting,
		Code:    code,
		Message: message,
	}
}

// NewStateError creates a store error.
func NewStateError(code, message string, cause error) *MistError {
	return &MistError{
		Type:    ErrorTypeState,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *MistError {
	return &MistError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *MistError {
	return &MistError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *MistError {
	return &MistError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes.
const (
	ErrCodeMountTargetNotFound    = "ERR_MOUNT_TARGET_NOT_FOUND"
	ErrCodeInvalidNodeDescriptor  = "ERR_INVALID_NODE_DESCRIPTOR"
	ErrCodeInvalidEventBinding    = "ERR_INVALID_EVENT_BINDING"
	ErrCodeNoRouteDefined         = "ERR_NO_ROUTE_DEFINED"
	ErrCodeUnsupportedLocatorKind = "ERR_UNSUPPORTED_LOCATOR_KIND"
	ErrCodeNoRoutes               = "ERR_NO_ROUTES"
	ErrCodeEffectFailed           = "ERR_EFFECT_FAILED"
	ErrCodeStateFile              = "ERR_STATE_FILE"
	ErrCodeConfigInvalid          = "ERR_CONFIG_INVALID"
	ErrCodeInternalError          = "ERR_INTERNAL"
)

// Sentinels for errors.Is comparisons. Every error raised by the runtime with
// one of the codes above matches the sentinel with the same code.
var (
	ErrMountTargetNotFound    = NewRenderError(ErrCodeMountTargetNotFound, "mount target not found")
	ErrInvalidNodeDescriptor  = NewRenderError(ErrCodeInvalidNodeDescriptor, "invalid node descriptor")
	ErrInvalidEventBinding    = NewRenderError(ErrCodeInvalidEventBinding, "invalid event binding")
	ErrNoRouteDefined         = NewRoutingError(ErrCodeNoRouteDefined, "no route defined")
	ErrUnsupportedLocatorKind = NewRoutingError(ErrCodeUnsupportedLocatorKind, "unsupported locator kind")
	ErrNoRoutes               = NewRoutingError(ErrCodeNoRoutes, "router needs at least one route")
)

// Helper functions for the runtime taxonomy

// MountTargetNotFound reports a selector that matched no host element.
func MountTargetNotFound(selector string) *MistError {
	return NewRenderError(ErrCodeMountTargetNotFound,
		fmt.Sprintf("mount point %s not found", selector)).
		WithContext("selector", selector)
}

// InvalidNodeDescriptor reports a construction input that is neither an
// element descriptor nor a string or number.
func InvalidNodeDescriptor(tag string, format string, args ...interface{}) *MistError {
	return NewRenderError(ErrCodeInvalidNodeDescriptor, fmt.Sprintf(format, args...)).
		WithNode(tag)
}

// InvalidEventBinding reports an event property holding a non-callable value.
func InvalidEventBinding(tag, name string, value interface{}) *MistError {
	return NewRenderError(ErrCodeInvalidEventBinding,
		fmt.Sprintf("event listener %s has to have a handler as value, got %T", name, value)).
		WithNode(tag).
		WithContext("property", name)
}

// NoRouteDefined reports a failed lookup for both the locator and the 404 route.
func NoRouteDefined(kind, value string) *MistError {
	return NewRoutingError(ErrCodeNoRouteDefined,
		fmt.Sprintf("can't find any defined routes with %s of '%s'", kind, value)).
		WithContext("kind", kind).
		WithContext("value", value)
}

// UnsupportedLocatorKind reports a locator kind other than path or name.
func UnsupportedLocatorKind(kind string) *MistError {
	return NewRoutingError(ErrCodeUnsupportedLocatorKind,
		fmt.Sprintf("wrong router locator kind %q provided", kind)).
		WithContext("kind", kind)
}

// Error recovery and handling utilities

// IsRenderError checks if an error was raised while rendering or patching.
func IsRenderError(err error) bool {
	var me *MistError
	if errors.As(err, &me) {
		return me.Type == ErrorTypeRender
	}

	return false
}

// IsRoutingError checks if an error is routing-related.
func IsRoutingError(err error) bool {
	var me *MistError
	if errors.As(err, &me) {
		return me.Type == ErrorTypeRouting
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger    Logger
	collector *ErrorCollector
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler. Either argument may be nil.
func NewErrorHandler(logger Logger, collector *ErrorCollector) *ErrorHandler {
	return &ErrorHandler{
		logger:    logger,
		collector: collector,
	}
}

// Handle processes an error with appropriate logging and collection.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	if h.collector != nil {
		h.collector.AddError(err)
	}

	var me *MistError
	if errors.As(err, &me) {
		h.handleMistError(ctx, me)
	} else {
		h.handleGenericError(ctx, err)
	}
}

func (h *ErrorHandler) handleMistError(ctx context.Context, err *MistError) {
	if h.logger == nil {
		return
	}
	switch err.Type {
	case ErrorTypeRouting:
		h.logger.Warn(ctx, err, "Routing error occurred",
			"type", err.Type,
			"code", err.Code)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", err.Type,
			"code", err.Code,
			"node", err.Node)
	}
}

func (h *ErrorHandler) handleGenericError(ctx context.Context, err error) {
	if h.logger != nil {
		h.logger.Error(ctx, err, "Unhandled error occurred")
	}
}

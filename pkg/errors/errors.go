// Unified error handling for the galaxy control host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Speaker catalog load/validation errors
	ErrCatalog ErrorCode = "CATALOG"

	// Guard failures: the operator must adjust the request
	ErrArrayRequest  ErrorCode = "ARRAY_REQUEST"
	ErrArrayCapacity ErrorCode = "ARRAY_CAPACITY"
	ErrBeamRequest   ErrorCode = "BEAM_REQUEST"

	// Device communication
	ErrSink      ErrorCode = "SINK"
	ErrTransport ErrorCode = "TRANSPORT"

	// Action dispatch
	ErrAction  ErrorCode = "ACTION"
	ErrRuntime ErrorCode = "RUNTIME"
)

// HostError is the unified error type for the host
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or action context
	Section string

	// Option is the config option or action parameter (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional key/value detail
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	where := e.Section
	if e.Option != "" {
		where = e.Option
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Code, where, msg)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the option or parameter name
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// Newf creates a new HostError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *HostError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *HostError {
	return Newf(ErrConfigSection, "section '%s' not found", section).SetSection(section)
}

// ConfigValidationError creates an error for a config validation failure
func ConfigValidationError(section, option, reason string) *HostError {
	return Newf(ErrConfigValidation, "option '%s' in section '%s': %s", option, section, reason).
		SetSection(section).
		SetOption(option)
}

// ArrayRequestError reports an invalid or incomplete array request.
func ArrayRequestError(param, reason string) *HostError {
	return New(ErrArrayRequest, reason).SetSection("configure_array").SetOption(param)
}

// BeamRequestError reports an invalid beam-control request.
func BeamRequestError(param, reason string) *HostError {
	return New(ErrBeamRequest, reason).SetSection("beam_control").SetOption(param)
}

// SinkError wraps a failure of the command sink.
func SinkError(err error, sent, total int) *HostError {
	return Wrap(err, ErrSink, fmt.Sprintf("command sink failed after %d of %d commands", sent, total)).
		SetContext("sent", sent).
		SetContext("total", total)
}

// TransportError wraps a device connection failure.
func TransportError(op string, err error) *HostError {
	return Wrap(err, ErrTransport, fmt.Sprintf("device %s failed", op))
}

// FromPanic converts a recovered panic value into a HostError.
func FromPanic(r interface{}) *HostError {
	switch x := r.(type) {
	case runtime.Error:
		return New(ErrRuntime, x.Error())
	case error:
		return Wrap(x, ErrRuntime, "panic")
	default:
		return Newf(ErrRuntime, "panic: %v", x)
	}
}

// Is reports whether any error in err's chain is a HostError with code.
func Is(err error, code ErrorCode) bool {
	var he *HostError
	if stderrors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// Code returns the HostError code in err's chain, or "" when there is none.
func Code(err error) ErrorCode {
	var he *HostError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	switch Code(err) {
	case ErrConfigSection, ErrConfigOption, ErrConfigValidation:
		return true
	}
	return false
}

// IsGuard reports whether err is a request guard failure: the invocation
// ends early without touching the device.
func IsGuard(err error) bool {
	switch Code(err) {
	case ErrArrayRequest, ErrArrayCapacity, ErrBeamRequest:
		return true
	}
	return false
}

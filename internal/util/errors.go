package util

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the transformation error taxonomy.
var (
	ErrFormat         = errors.New("invalid source format")
	ErrConfig         = errors.New("invalid mapping configuration")
	ErrMapping        = errors.New("mapping failed")
	ErrScript         = errors.New("script failed")
	ErrEncode         = errors.New("encoding failed")
	ErrTimeout        = errors.New("timeout")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrOverCapacity   = errors.New("too many concurrent transformations")
	ErrNoValueWritten = errors.New("no value was written to the target")
)

// FormatError reports source data that cannot be decoded.
type FormatError struct {
	Protocol string
	// Offset is the byte offset of the failure, or -1 when unknown.
	Offset  int64
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s format error at offset %d: %s", e.Protocol, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s format error: %s", e.Protocol, e.Message)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *FormatError) Is(target error) bool {
	if target == ErrFormat {
		return true
	}
	_, ok := target.(*FormatError)
	return ok || errors.Is(e.Cause, target)
}

// NewFormatError creates a new FormatError.
func NewFormatError(protocol string, offset int64, message string) *FormatError {
	return &FormatError{Protocol: protocol, Offset: offset, Message: message}
}

// NewFormatErrorWithCause creates a new FormatError with a cause.
func NewFormatErrorWithCause(protocol string, offset int64, message string, cause error) *FormatError {
	return &FormatError{Protocol: protocol, Offset: offset, Message: message, Cause: cause}
}

// ConfigError represents an invalid mapping or service configuration.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfig {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// MappingError reports a rule whose path could not be parsed, resolved or written.
type MappingError struct {
	RuleIndex int
	Path      string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("mapping error in rule %d at %q: %s", e.RuleIndex, e.Path, msg)
	}
	return fmt.Sprintf("mapping error in rule %d: %s", e.RuleIndex, msg)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *MappingError) Is(target error) bool {
	if target == ErrMapping {
		return true
	}
	_, ok := target.(*MappingError)
	return ok || errors.Is(e.Cause, target)
}

// NewMappingError creates a new MappingError.
func NewMappingError(ruleIndex int, path, message string, cause error) *MappingError {
	return &MappingError{RuleIndex: ruleIndex, Path: path, Message: message, Cause: cause}
}

// ScriptError reports a sandboxed script that failed to compile or run.
type ScriptError struct {
	RuleIndex int
	Language  string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.RuleIndex >= 0 {
		return fmt.Sprintf("%s script error in rule %d: %s", e.Language, e.RuleIndex, msg)
	}
	return fmt.Sprintf("%s script error: %s", e.Language, msg)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ScriptError) Is(target error) bool {
	if target == ErrScript {
		return true
	}
	_, ok := target.(*ScriptError)
	return ok || errors.Is(e.Cause, target)
}

// NewScriptError creates a new ScriptError that is not yet bound to a rule.
func NewScriptError(language, message string, cause error) *ScriptError {
	return &ScriptError{RuleIndex: -1, Language: language, Message: message, Cause: cause}
}

// EncodeError reports a target document that cannot be rendered.
type EncodeError struct {
	Protocol string
	Path     string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s encode error at %s: %s", e.Protocol, e.Path, e.Message)
	}
	return fmt.Sprintf("%s encode error: %s", e.Protocol, e.Message)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *EncodeError) Is(target error) bool {
	if target == ErrEncode {
		return true
	}
	_, ok := target.(*EncodeError)
	return ok || errors.Is(e.Cause, target)
}

// NewEncodeError creates a new EncodeError.
func NewEncodeError(protocol, path, message string) *EncodeError {
	return &EncodeError{Protocol: protocol, Path: path, Message: message}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// ErrorKind returns the short taxonomy name of err, used in warnings and
// metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrScript):
		return "script"
	case errors.Is(err, ErrMapping):
		return "mapping"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrOverCapacity):
		return "over_capacity"
	default:
		return "internal"
	}
}

// IsClientError returns true if the error was caused by the caller's input.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrRateLimited)
}

package claimform

import (
	"errors"
	"fmt"
)

// Sentinel errors for claim form generation. Typed errors below unwrap to them.
var (
	// ErrTemplate is matched by every *TemplateError
	ErrTemplate = errors.New("claim form template error")
	// ErrConfiguration is matched by every *ConfigurationError
	ErrConfiguration = errors.New("claim form configuration error")

	ErrTemplateNotFound = errors.New("template file not found")
	ErrInvalidTemplate  = errors.New("invalid template structure")
)

// TemplateError reports a template that cannot be located, read or copied.
// Rendering stops at the first TemplateError; no partial document is produced.
type TemplateError struct {
	Path   string
	Reason string
	Err    error
}

func (e *TemplateError) Error() string {
	msg := "template"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause
func (e *TemplateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTemplate) hold for any TemplateError
func (e *TemplateError) Is(target error) bool { return target == ErrTemplate }

func templateError(path, reason string, err error) error {
	return &TemplateError{Path: path, Reason: reason, Err: err}
}

// ConfigurationError reports an invalid page size, layout or header.
// It is returned before any page is built.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) hold for any ConfigurationError
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

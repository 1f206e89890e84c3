package models

import (
	"errors"
	"fmt"
)

// NotFoundError reports a template, guardrail config, version, or memory
// entry that does not exist or is outside the caller's tenant scope. The
// two cases are deliberately indistinguishable.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// ValidationError reports malformed input: empty names, bad rule
// structures, cloning a non-shareable template.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// SyntaxError reports template content that fails to parse.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "template syntax: " + e.Msg }

// RenderError reports a runtime rendering failure. Variable is set when
// the failure was a reference to an undefined variable.
type RenderError struct {
	Variable string
	Msg      string
}

func (e *RenderError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("render: undefined variable %q", e.Variable)
	}
	return "render: " + e.Msg
}

// ConflictError reports a duplicate name within a tenant scope.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

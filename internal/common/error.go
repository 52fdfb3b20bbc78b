package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorValidation is matched by every *ValidationError via errors.Is.
var ErrorValidation = errors.New("validation error")

// ValidationError reports field-level problems with caller input.
// Fields maps a field name to a human readable reason.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a problem for field. The first reason per field wins.
func (e *ValidationError) Add(field, reason string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = reason
}

// Empty reports whether no problems were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns e when at least one field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", n, e.Fields[n]))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

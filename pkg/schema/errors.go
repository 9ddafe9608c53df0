package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is one problem found in a pipeline document.
type ValidationError struct {
	// Path locates the offending value inside the document, e.g.
	// "stages.up.suffix", "naming.trim[1]" or "pipeline[2].route.keep[0]".
	Path   string
	Reason string
	// Value is the offending value, nil when the value is missing.
	Value any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return e.Path + ": " + e.Reason
	}
	return fmt.Sprintf("%s: %s (got %T)", e.Path, e.Reason, e.Value)
}

// Section returns the top-level document section the error belongs to.
func (e *ValidationError) Section() string {
	if i := strings.IndexAny(e.Path, ".["); i >= 0 {
		return e.Path[:i]
	}
	return e.Path
}

// AggregateError carries every problem found while parsing one document.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d problems in pipeline document:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns the problems carried by an AggregateError found
// anywhere in err's chain, or nil.
func ValidationErrors(err error) []error {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Errors
	}
	return nil
}

// at prefixes the path of a nested ValidationError. Other errors become a
// ValidationError at path.
func at(path string, err error, value any) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ValidationError{Path: path + ve.Path, Reason: ve.Reason, Value: ve.Value}
	}
	return &ValidationError{Path: path, Reason: err.Error(), Value: value}
}

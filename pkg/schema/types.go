package schema

import (
	"fmt"
	"reflect"
)

// Type checks the value of one document field.
type Type interface {
	// Name is the type as written in error messages, e.g. "string" or "[string]".
	Name() string
	// Validate returns an error when value does not conform. Errors about a
	// nested value are *ValidationError with a path relative to the field.
	Validate(value any) error
}

// scalar is a leaf type decided by a single predicate.
type scalar struct {
	name    string
	accepts func(any) bool
}

func (s scalar) Name() string { return s.name }

func (s scalar) Validate(value any) error {
	if s.accepts(value) {
		return nil
	}
	return fmt.Errorf("expected %s", s.name)
}

// list accepts a sequence whose every element conforms to elem.
type list struct {
	elem Type
}

func (l list) Name() string { return "[" + l.elem.Name() + "]" }

func (l list) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s", l.Name())
	}
	for i := range rv.Len() {
		v := rv.Index(i).Interface()
		if err := l.elem.Validate(v); err != nil {
			return at(fmt.Sprintf("[%d]", i), err, v)
		}
	}
	return nil
}

// String accepts strings. Stage names, suffixes and paths are all strings.
func String() Type {
	return scalar{name: "string", accepts: func(v any) bool {
		_, ok := v.(string)
		return ok
	}}
}

// Int accepts integers. Whole float64 values pass too, since JSON decodes
// every number as float64.
func Int() Type {
	return scalar{name: "int", accepts: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	}}
}

// Slice accepts lists of elem.
func Slice(elem Type) Type { return list{elem: elem} }

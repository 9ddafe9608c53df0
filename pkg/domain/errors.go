package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrRouting       = errors.New("routing error")
	ErrCapability    = errors.New("capability error")
	ErrCacheRead     = errors.New("cache read error")
)

// ConfigurationError reports a bad graph definition. Always fatal at compile time.
type ConfigurationError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Stage != "" {
		msg += fmt.Sprintf(" at stage %q", e.Stage)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigurationError) Unwrap() error        { return e.Err }

// Configuration builds a ConfigurationError.
func Configuration(stage, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// RoutingError reports a port name outside a stage's declared set.
// At run time it is fatal for the whole run.
type RoutingError struct {
	Stage string
	Port  string
	// Declared lists the ports the stage does declare.
	Declared []string
	// Reason overrides the default "no such port" message.
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("routing error: stage %q port %q: %s", e.Stage, e.Port, e.Reason)
	}
	return fmt.Sprintf("routing error: stage %q has no port %q (declared: %v)", e.Stage, e.Port, e.Declared)
}

func (e *RoutingError) Is(target error) bool { return target == ErrRouting }

// CapabilityError reports that a stage cannot process an item under the
// current environment. It aborts only the current root item's lineage.
type CapabilityError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("stage %q cannot process item: %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }
func (e *CapabilityError) Unwrap() error        { return e.Err }

// Capability builds a CapabilityError.
func Capability(stage, reason string, err error) *CapabilityError {
	return &CapabilityError{Stage: stage, Reason: reason, Err: err}
}

// CacheReadError reports a checkpoint file that exists but cannot be used.
// The checkpoint manager treats it as a cache miss.
type CacheReadError struct {
	Path string
	Err  error
}

func (e *CacheReadError) Error() string {
	return fmt.Sprintf("unreadable cache entry %s: %v", e.Path, e.Err)
}

func (e *CacheReadError) Is(target error) bool { return target == ErrCacheRead }
func (e *CacheReadError) Unwrap() error        { return e.Err }

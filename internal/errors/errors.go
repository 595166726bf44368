// Package errors defines the assetforge error taxonomy and the collector
// used by the orchestrator to aggregate per-plugin failures without
// aborting the run.
package errors

import (
	"fmt"
	"sync"
	"time"
)

// PluginError is a failure raised by a plugin lifecycle call. It is recovered
// by the orchestrator: logged with the plugin name as scope, counted, and
// never allowed to block the remaining plugins.
type PluginError struct {
	Plugin    string
	Phase     string // "init", "build", "clean" or "watch"
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (pe *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %s failed: %v", pe.Plugin, pe.Phase, pe.Err)
}

// Unwrap returns the underlying cause
func (pe *PluginError) Unwrap() error {
	return pe.Err
}

// NewPluginError wraps err as a lifecycle failure of the named plugin.
func NewPluginError(plugin, phase string, err error) *PluginError {
	return &PluginError{
		Plugin:    plugin,
		Phase:     phase,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// CycleError reports a circular plugin dependency. It is fatal to the sort
// step only; callers may proceed with a best-effort order.
type CycleError struct {
	Plugin string // a plugin that participates in the cycle
}

// Error implements the error interface
func (ce *CycleError) Error() string {
	return fmt.Sprintf("circular dependency involving plugin %q", ce.Plugin)
}

// ValidationError reports malformed asset metadata. It names the offending
// file and the constraint violated rather than exposing a parser trace.
type ValidationError struct {
	File       string
	Constraint string
	Err        error
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	if ve.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", ve.File, ve.Constraint, ve.Err)
	}
	return fmt.Sprintf("%s: %s", ve.File, ve.Constraint)
}

// Unwrap returns the underlying cause
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// RetryableError marks a failure the caller may safely retry, such as a
// request that was in flight when the editor process crashed.
type RetryableError struct {
	Err error
}

// Error implements the error interface
func (re *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", re.Err)
}

// Unwrap returns the underlying cause
func (re *RetryableError) Unwrap() error {
	return re.Err
}

// IsRetryable reports whether err is a RetryableError.
func IsRetryable(err error) bool {
	for err != nil {
		if _, ok := err.(*RetryableError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Collector aggregates errors across one orchestration run. The aggregate
// count decides the process exit code.
type Collector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
	}
}

// Record adds an error to the collector. Nil errors are ignored.
func (c *Collector) Record(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Count returns the number of recorded errors
func (c *Collector) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors)
}

// HasErrors returns true if any error was recorded
func (c *Collector) HasErrors() bool {
	return c.Count() > 0
}

// Errors returns a copy of all recorded errors
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// ByPlugin returns recorded plugin errors for the named plugin.
func (c *Collector) ByPlugin(name string) []*PluginError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []*PluginError
	for _, err := range c.errors {
		if pe, ok := err.(*PluginError); ok && pe.Plugin == name {
			out = append(out, pe)
		}
	}
	return out
}

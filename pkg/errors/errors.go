// Package errors provides the error and warning system used across the
// boosting library. Errors are structured types carrying stack traces via
// cockroachdb/errors; warnings are routed through a process-wide handler so
// callers can silence or redirect non-fatal diagnostics.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("xgboost-warning: %v\n", w)
	}
	// zerolog sink, injected lazily to avoid an import cycle with pkg/log
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the library-wide warning handler.
// Pass a no-op function to silence warnings entirely.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a non-fatal diagnostic. Warnings never abort the operation
// that raised them.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// StaleCacheWarning is raised when a matrix registered in the prediction
// buffer cache no longer has the row count it was registered with. The
// cached buffer range is bypassed and predictions are recomputed in full;
// correctness is unaffected.
type StaleCacheWarning struct {
	NumRowRegistered int
	NumRowCurrent    int
}

func (w *StaleCacheWarning) Error() string {
	return fmt.Sprintf("number of rows in input matrix changed from %d to %d since caching, ignoring cached results",
		w.NumRowRegistered, w.NumRowCurrent)
}

// MarshalZerologObject attaches the structured warning fields to a zerolog event.
func (w *StaleCacheWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("num_row_registered", w.NumRowRegistered).
		Int("num_row_current", w.NumRowCurrent).
		Str("type", "StaleCacheWarning")
}

// NewStaleCacheWarning creates a StaleCacheWarning.
func NewStaleCacheWarning(registered, current int) *StaleCacheWarning {
	return &StaleCacheWarning{NumRowRegistered: registered, NumRowCurrent: current}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// NotInitializedError reports a call that requires InitModel or LoadModel
// to have completed first.
type NotInitializedError struct {
	Component string
	Method    string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("xgboost: %s: model is not initialized. Call InitModel() or LoadModel() before %s()", e.Component, e.Method)
}

// MarshalZerologObject attaches the structured error fields to a zerolog event.
func (e *NotInitializedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("method", e.Method).
		Str("type", "NotInitializedError")
}

// NewNotInitializedError creates a NotInitializedError with a stack trace.
func NewNotInitializedError(component, method string) error {
	err := &NotInitializedError{Component: component, Method: method}
	return errors.WithStack(err)
}

// UnknownPluginError reports an objective, booster or metric name that is
// not present in the corresponding registry. It is raised lazily, at the
// point the name string is resolved into a concrete instance.
type UnknownPluginError struct {
	Kind string // "objective", "booster", "metric"
	Name string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("xgboost: unknown %s type %q", e.Kind, e.Name)
}

// MarshalZerologObject attaches the structured error fields to a zerolog event.
func (e *UnknownPluginError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("kind", e.Kind).
		Str("name", e.Name).
		Str("type", "UnknownPluginError")
}

// NewUnknownPluginError creates an UnknownPluginError with a stack trace.
func NewUnknownPluginError(kind, name string) error {
	err := &UnknownPluginError{Kind: kind, Name: name}
	return errors.WithStack(err)
}

// FormatError reports a malformed or truncated model stream. Loading must
// never leave a partially parsed model behind one of these.
type FormatError struct {
	Op     string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("xgboost: %s: wrong model format: %s", e.Op, e.Reason)
}

// MarshalZerologObject attaches the structured error fields to a zerolog event.
func (e *FormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "FormatError")
}

// NewFormatError creates a FormatError with a stack trace.
func NewFormatError(op, reason string) error {
	err := &FormatError{Op: op, Reason: reason}
	return errors.WithStack(err)
}

// DimensionError reports input whose dimensions disagree with what the
// model expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("xgboost: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError reports a parameter value that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("xgboost: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject attaches the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError reports invalid API usage, such as registering cache data twice
// or running the interactive update against an uncached matrix.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("xgboost: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general error raised while driving the model.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xgboost: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("xgboost: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an existing error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an existing error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Package errors provides centralized error handling with per-component
// categorization. It wraps the standard library errors package, so callers
// use this package's Is/As/New without a second import.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization.
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryDatabase       ErrorCategory = "database"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryGeneric        ErrorCategory = "generic"

	// Annotation pipeline categories.
	CategoryObjectStorage  ErrorCategory = "object-storage"
	CategoryPaperDocument  ErrorCategory = "paper-document"
	CategoryPDFExtraction  ErrorCategory = "pdf-extraction"
	CategoryImageUpload    ErrorCategory = "image-upload"
	CategorySpeciesLLM     ErrorCategory = "species-llm"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategorySegmentation   ErrorCategory = "segmentation-parsing"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category, and context data.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface.
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches other enhanced errors by category, and otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetCategory returns the error category as a string.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new error builder from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected from the call stack if
// not set).
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a key/value pair of context data to the error.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the EnhancedError.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = detectComponent()
	}
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Component registry mapping package path fragments to component names.
var (
	componentRegistry = make(map[string]string)
	registryMutex     sync.RWMutex
)

// RegisterComponent registers a package path pattern with a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("objectstore", "objectstore")
	RegisterComponent("reconciler", "reconciler")
	RegisterComponent("pdfops", "pdfops")
	RegisterComponent("species", "species")
	RegisterComponent("session", "session")
	RegisterComponent("datastore", "datastore")
	RegisterComponent("api", "api")
	RegisterComponent("conf", "configuration")
	RegisterComponent("httpclient", "httpclient")
}

// detectComponent walks a few frames up the call stack and matches the
// caller's package path against the registry.
func detectComponent() string {
	pcs := make([]uintptr, 8)
	// Skip runtime.Callers, detectComponent, and Build.
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return ComponentUnknown
	}
	frames := runtime.CallersFrames(pcs[:n])

	registryMutex.RLock()
	defer registryMutex.RUnlock()

	for {
		frame, more := frames.Next()
		for pattern, component := range componentRegistry {
			if strings.Contains(frame.Function, "/internal/"+pattern+".") ||
				strings.Contains(frame.Function, "/internal/"+pattern+"/") {
				return component
			}
		}
		if !more {
			break
		}
	}
	return ComponentUnknown
}

// Standard library re-exports so callers need only this package.

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error wrapping the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Unwrap returns the result of calling Unwrap on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// NewStd creates a plain standard library error without enhancement.
func NewStd(text string) error {
	return stderrors.New(text)
}

package forge

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common failures.
var (
	// ErrTemplateNotFound is returned when a referenced template does not
	// exist in the store, even after lazy discovery.
	ErrTemplateNotFound = errors.New("forge: template not found")

	// ErrUnknownScenario is returned when a scenario name has not been
	// registered.
	ErrUnknownScenario = errors.New("forge: unknown scenario")

	// ErrCircularDependency is returned when the template dependency graph
	// contains a cycle.
	ErrCircularDependency = errors.New("forge: circular dependency")

	// ErrCircularExtension is returned when a scenario extends chain
	// revisits a scenario already being resolved.
	ErrCircularExtension = errors.New("forge: circular scenario extension")

	// ErrCreationFailed is returned when a creation step fails.
	ErrCreationFailed = errors.New("forge: entity creation failed")

	// ErrInvalidCreateFunc is returned when a creation override is nil or
	// names an operation that has not been registered.
	ErrInvalidCreateFunc = errors.New("forge: invalid create function")
)

// TemplateNotFoundError reports a reference that could not be resolved.
type TemplateNotFoundError struct {
	kind  string
	name  string
	known []Ref // Registered templates, for diagnostics.
}

// Error returns the error string.
func (e *TemplateNotFoundError) Error() string {
	if len(e.known) == 0 {
		return fmt.Sprintf("forge: template %s.%s not found (no templates registered)", e.kind, e.name)
	}
	names := make([]string, len(e.known))
	for i, r := range e.known {
		names[i] = r.String()
	}
	return fmt.Sprintf("forge: template %s.%s not found (known: %s)", e.kind, e.name, strings.Join(names, ", "))
}

// Is reports whether the target error matches TemplateNotFoundError.
// This allows errors.Is(err, ErrTemplateNotFound) to return true.
func (e *TemplateNotFoundError) Is(err error) bool {
	return err == ErrTemplateNotFound
}

// Kind returns the requested template kind.
func (e *TemplateNotFoundError) Kind() string { return e.kind }

// Name returns the requested template name.
func (e *TemplateNotFoundError) Name() string { return e.name }

// Known returns the templates that were registered when the lookup failed.
func (e *TemplateNotFoundError) Known() []Ref { return e.known }

// NewTemplateNotFoundError returns a new TemplateNotFoundError for the given
// reference. The known list is included in the message for diagnostics.
func NewTemplateNotFoundError(kind, name string, known []Ref) *TemplateNotFoundError {
	return &TemplateNotFoundError{kind: kind, name: name, known: known}
}

// IsTemplateNotFound returns true if the error is a TemplateNotFoundError.
func IsTemplateNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *TemplateNotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrTemplateNotFound)
}

// UnknownScenarioError reports a scenario name that has not been registered.
type UnknownScenarioError struct {
	name string
}

// Error returns the error string.
func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("forge: unknown scenario %q", e.name)
}

// Is reports whether the target error matches UnknownScenarioError.
func (e *UnknownScenarioError) Is(err error) bool {
	return err == ErrUnknownScenario
}

// Name returns the scenario name.
func (e *UnknownScenarioError) Name() string { return e.name }

// NewUnknownScenarioError returns a new UnknownScenarioError.
func NewUnknownScenarioError(name string) *UnknownScenarioError {
	return &UnknownScenarioError{name: name}
}

// IsUnknownScenario returns true if the error is an UnknownScenarioError.
func IsUnknownScenario(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownScenarioError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownScenario)
}

// UnknownScenarioReferenceError reports a scenario that overrides a template
// missing from the store.
type UnknownScenarioReferenceError struct {
	scenario string
	kind     string
	name     string
}

// Error returns the error string.
func (e *UnknownScenarioReferenceError) Error() string {
	return fmt.Sprintf("forge: scenario %q references unknown template %s.%s", e.scenario, e.kind, e.name)
}

// Is reports whether the target error matches UnknownScenarioReferenceError.
func (e *UnknownScenarioReferenceError) Is(err error) bool {
	return err == ErrTemplateNotFound
}

// Scenario returns the scenario holding the unresolved reference.
func (e *UnknownScenarioReferenceError) Scenario() string { return e.scenario }

// Kind returns the referenced template kind.
func (e *UnknownScenarioReferenceError) Kind() string { return e.kind }

// Name returns the referenced template name.
func (e *UnknownScenarioReferenceError) Name() string { return e.name }

// NewUnknownScenarioReferenceError returns a new UnknownScenarioReferenceError.
func NewUnknownScenarioReferenceError(scenario, kind, name string) *UnknownScenarioReferenceError {
	return &UnknownScenarioReferenceError{scenario: scenario, kind: kind, name: name}
}

// IsUnknownScenarioReference returns true if the error is an
// UnknownScenarioReferenceError.
func IsUnknownScenarioReference(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownScenarioReferenceError
	return errors.As(err, &e)
}

// CircularDependencyError reports a cycle in the template dependency graph.
// The path starts and ends at the same reference for readability, e.g.
// "Post.a -> Blog.b -> Post.a".
type CircularDependencyError struct {
	path []Ref
}

// Error returns the error string.
func (e *CircularDependencyError) Error() string {
	names := make([]string, len(e.path))
	for i, r := range e.path {
		names[i] = r.String()
	}
	return fmt.Sprintf("forge: circular dependency: %s", strings.Join(names, " -> "))
}

// Is reports whether the target error matches CircularDependencyError.
func (e *CircularDependencyError) Is(err error) bool {
	return err == ErrCircularDependency
}

// Path returns the cycle path. The first and last elements are equal.
func (e *CircularDependencyError) Path() []Ref { return e.path }

// NewCircularDependencyError returns a new CircularDependencyError for the
// given cycle path.
func NewCircularDependencyError(path []Ref) *CircularDependencyError {
	return &CircularDependencyError{path: path}
}

// IsCircularDependency returns true if the error is a CircularDependencyError.
func IsCircularDependency(err error) bool {
	if err == nil {
		return false
	}
	var e *CircularDependencyError
	return errors.As(err, &e) || errors.Is(err, ErrCircularDependency)
}

// CircularExtensionError reports a cycle in a scenario extends chain.
type CircularExtensionError struct {
	path []string
}

// Error returns the error string.
func (e *CircularExtensionError) Error() string {
	return fmt.Sprintf("forge: circular scenario extension: %s", strings.Join(e.path, " -> "))
}

// Is reports whether the target error matches CircularExtensionError.
func (e *CircularExtensionError) Is(err error) bool {
	return err == ErrCircularExtension
}

// Path returns the extension path. The first and last elements are equal.
func (e *CircularExtensionError) Path() []string { return e.path }

// NewCircularExtensionError returns a new CircularExtensionError for the
// given extends path.
func NewCircularExtensionError(path []string) *CircularExtensionError {
	return &CircularExtensionError{path: path}
}

// IsCircularExtension returns true if the error is a CircularExtensionError.
func IsCircularExtension(err error) bool {
	if err == nil {
		return false
	}
	var e *CircularExtensionError
	return errors.As(err, &e) || errors.Is(err, ErrCircularExtension)
}

// CreationError reports a failed creation step, carrying the template
// reference and the underlying cause.
type CreationError struct {
	kind  string
	name  string
	cause error
}

// Error returns the error string.
func (e *CreationError) Error() string {
	return fmt.Sprintf("forge: creating %s.%s: %v", e.kind, e.name, e.cause)
}

// Is reports whether the target error matches CreationError.
func (e *CreationError) Is(err error) bool {
	return err == ErrCreationFailed
}

// Unwrap returns the underlying cause.
func (e *CreationError) Unwrap() error { return e.cause }

// Kind returns the template kind the step was creating.
func (e *CreationError) Kind() string { return e.kind }

// Name returns the template name the step was creating.
func (e *CreationError) Name() string { return e.name }

// NewCreationError returns a new CreationError wrapping cause.
func NewCreationError(kind, name string, cause error) *CreationError {
	return &CreationError{kind: kind, name: name, cause: cause}
}

// IsCreationFailed returns true if the error is a CreationError.
func IsCreationFailed(err error) bool {
	if err == nil {
		return false
	}
	var e *CreationError
	return errors.As(err, &e) || errors.Is(err, ErrCreationFailed)
}

// InvalidCreateFuncError reports a creation override that cannot be invoked:
// a nil function, or a named operation with no registration.
type InvalidCreateFuncError struct {
	signature string
}

// Error returns the error string.
func (e *InvalidCreateFuncError) Error() string {
	return fmt.Sprintf("forge: invalid create function: %s", e.signature)
}

// Is reports whether the target error matches InvalidCreateFuncError.
func (e *InvalidCreateFuncError) Is(err error) bool {
	return err == ErrInvalidCreateFunc
}

// Signature describes the offending override.
func (e *InvalidCreateFuncError) Signature() string { return e.signature }

// NewInvalidCreateFuncError returns a new InvalidCreateFuncError.
func NewInvalidCreateFuncError(signature string) *InvalidCreateFuncError {
	return &InvalidCreateFuncError{signature: signature}
}

// IsInvalidCreateFunc returns true if the error is an InvalidCreateFuncError.
func IsInvalidCreateFunc(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidCreateFuncError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidCreateFunc)
}

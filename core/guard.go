package core

import (
	"reflect"
	"sync"
)

// Validator answers whether an owner is still eligible to receive results.
// It models UI-style lifecycle checks ("is the container that started this
// work still alive?") without this package knowing any UI framework type.
//
// Implementations must be safe for concurrent use; the controller consults
// them from the coordination context before every resumption.
type Validator interface {
	IsValid(owner any) bool
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(owner any) bool

func (f ValidatorFunc) IsValid(owner any) bool {
	return f(owner)
}

// GuardRegistry maps owner kinds to validators. Owners of a kind with no
// registered validator are always considered valid.
type GuardRegistry struct {
	mu    sync.RWMutex
	kinds map[reflect.Type]Validator
}

// NewGuardRegistry creates an empty guard registry.
func NewGuardRegistry() *GuardRegistry {
	return &GuardRegistry{kinds: make(map[reflect.Type]Validator)}
}

// Register installs a validator for the dynamic type of sample. A later
// registration for the same kind replaces the earlier one.
func (g *GuardRegistry) Register(sample any, v Validator) {
	if sample == nil || v == nil {
		return
	}
	g.registerType(reflect.TypeOf(sample), v)
}

func (g *GuardRegistry) registerType(kind reflect.Type, v Validator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kinds[kind] = v
}

// IsValid reports whether owner may still receive results. A nil owner and
// owners of unregistered kinds are valid.
func (g *GuardRegistry) IsValid(owner any) bool {
	if owner == nil {
		return true
	}
	g.mu.RLock()
	v, ok := g.kinds[reflect.TypeOf(owner)]
	g.mu.RUnlock()
	if !ok {
		return true
	}
	return v.IsValid(owner)
}

// RegisterValidator installs a typed validity predicate for owner kind T on
// the registry. Owners that are not of type T are unaffected.
//
// Example:
//
//	core.RegisterValidator(guards, func(w *Window) bool {
//	    return !w.Closed()
//	})
func RegisterValidator[T any](g *GuardRegistry, fn func(owner T) bool) {
	kind := reflect.TypeOf((*T)(nil)).Elem()
	g.registerType(kind, ValidatorFunc(func(owner any) bool {
		t, ok := owner.(T)
		if !ok {
			return true
		}
		return fn(t)
	}))
}

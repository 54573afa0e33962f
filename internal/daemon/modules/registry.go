package modules

import (
	"errors"
	"fmt"

	"github.com/resolvekit/resolverd/internal/daemon/common/log"
)

// Registry is the ordered, name-unique collection of loaded modules. Order is
// significant: it defines config-application order and the invocation order
// of the resolution pipeline. The registry is mutated only from the engine's
// control goroutine, so it carries no lock.
type Registry struct {
	mods     []*Module
	native   Loader
	scripted Loader
	binder   Binder
	logger   log.Logger
}

// NewRegistry returns an empty registry using the given loaders and binder.
// scripted and binder may be nil when no scripting environment is attached.
func NewRegistry(native, scripted Loader, binder Binder, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Registry{
		native:   native,
		scripted: scripted,
		binder:   binder,
		logger:   logger,
	}
}

// Len returns the number of registered modules.
func (r *Registry) Len() int { return len(r.mods) }

// Names returns module names in precedence order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.mods))
	for i, m := range r.mods {
		names[i] = m.Name
	}
	return names
}

// At returns the module at index i.
func (r *Registry) At(i int) *Module { return r.mods[i] }

// Get returns the named module.
func (r *Registry) Get(name string) (*Module, bool) {
	if i, ok := r.Find(name); ok {
		return r.mods[i], true
	}
	return nil, false
}

// Find returns the index of the named module. Linear scan, first match.
func (r *Registry) Find(name string) (int, bool) {
	for i, m := range r.mods {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Register loads the named module and appends it to the registry. A module
// with the same name is first unregistered; the new instance does not inherit
// the old position. When precedence ("<" or ">") and ref are given, the
// reference must already be registered or the call fails before any load is
// attempted. The native loader runs first; ErrNotFound falls back to the
// scripted loader. On success with precedence, the module is relocated with a
// single contiguous shift: ">" places it immediately after ref, "<" places it
// at ref's index, moving ref and everything after one position later. O(n) in
// registry size.
func (r *Registry) Register(name, precedence, ref string) error {
	if name == "" {
		return ErrInvalidName
	}
	switch precedence {
	case "", "<", ">":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPrecedence, precedence)
	}
	if precedence != "" && ref == "" {
		return fmt.Errorf("%w: %q requires a reference module", ErrInvalidPrecedence, precedence)
	}

	// Replace semantics: drop any previous instance first.
	_ = r.Unregister(name)

	// Resolve the reference before loading anything, so a bad reference
	// leaves no partially loaded module behind.
	refPos := len(r.mods)
	if precedence != "" {
		var ok bool
		refPos, ok = r.Find(ref)
		if !ok {
			return fmt.Errorf("%w: %q", ErrReferenceNotFound, ref)
		}
	}

	mod, err := r.load(name)
	if err != nil {
		return err
	}

	r.mods = append(r.mods, mod)

	if precedence != "" {
		target := len(r.mods) - 1
		switch precedence {
		case ">":
			if refPos+1 < len(r.mods)-1 {
				target = refPos + 1
			}
		case "<":
			target = refPos
		}
		r.relocate(len(r.mods)-1, target)
	}

	if mod.HasBindings() && r.binder != nil {
		if err := r.binder.BindModule(mod); err != nil {
			// Hook failure does not undo registration.
			r.logger.Debug(map[string]any{"module": name, "error": err.Error()}, "module registration hook failed")
		}
	}

	r.logger.Info(map[string]any{"module": name, "position": r.position(name)}, "module registered")
	return nil
}

// Unregister detaches the named module's bindings, runs its finalize hook and
// removes it, preserving the order of the remaining entries.
func (r *Registry) Unregister(name string) error {
	i, ok := r.Find(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	r.unload(r.mods[i])
	r.mods = append(r.mods[:i], r.mods[i+1:]...)
	return nil
}

// UnregisterAll unloads every module in registration order. Used at engine
// teardown.
func (r *Registry) UnregisterAll() {
	for _, m := range r.mods {
		r.unload(m)
	}
	r.mods = nil
}

func (r *Registry) load(name string) (*Module, error) {
	mod, err := r.native.Load(name)
	if err == nil {
		return mod, nil
	}
	if errors.Is(err, ErrNotFound) && r.scripted != nil {
		return r.scripted.Load(name)
	}
	return nil, err
}

func (r *Registry) unload(m *Module) {
	if r.binder != nil {
		r.binder.UnbindModule(m.Name)
	}
	if m.Deinit != nil {
		if err := m.Deinit(); err != nil {
			r.logger.Warn(map[string]any{"module": m.Name, "error": err.Error()}, "module finalize failed")
		}
	}
}

// relocate moves the element at index from to index to with one contiguous
// shift, preserving the relative order of all untouched entries.
func (r *Registry) relocate(from, to int) {
	if from == to {
		return
	}
	m := r.mods[from]
	if to < from {
		copy(r.mods[to+1:from+1], r.mods[to:from])
	} else {
		copy(r.mods[from:to], r.mods[from+1:to+1])
	}
	r.mods[to] = m
}

func (r *Registry) position(name string) int {
	i, _ := r.Find(name)
	return i
}

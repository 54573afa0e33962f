// Package modules implements the ordered registry of resolution modules and
// the generic dispatch path from scripted callers into module callbacks.
package modules

import (
	"errors"
	"time"
)

var (
	// ErrNotFound reports a missing module. The native loader returns it to
	// trigger fallback to the scripted loader.
	ErrNotFound = errors.New("modules: not found")

	// ErrReferenceNotFound reports a precedence reference to a module that is
	// not registered.
	ErrReferenceNotFound = errors.New("modules: precedence reference not found")

	// ErrInvalidName reports an empty module name.
	ErrInvalidName = errors.New("modules: invalid module name")

	// ErrInvalidPrecedence reports a precedence operator other than "<" or
	// ">", or one given without a reference module.
	ErrInvalidPrecedence = errors.New("modules: invalid precedence operator")
)

// Host is the engine-side surface handed to module callbacks. Callbacks
// receive it explicitly rather than recovering the engine from ambient state.
type Host interface {
	// ModuleNames returns the loaded module names in precedence order.
	ModuleNames() []string

	// PeerScores returns a snapshot of the peer reputation table.
	PeerScores() map[string]float64

	// EvictPeer drops one peer from the reputation table.
	EvictPeer(peer string) bool

	// SetPeerScore records a peer's score in the reputation table.
	SetPeerScore(peer string, score float64)

	// Uptime reports how long the engine has been running.
	Uptime() time.Duration
}

// Prop is one named property entry point of a module.
type Prop struct {
	Name string
	Info string
	Cb   Callback
}

// Module is a named unit exposing an optional configuration entry point and
// named property entry points. The registry owns it exclusively.
type Module struct {
	Name string

	// Config is the configuration entry point, nil when the module has none.
	Config Callback

	// Props are the named property entry points, in declaration order.
	Props []Prop

	// Deinit is the unload/finalize hook, nil when the module has none.
	Deinit func() error

	// Data is module-private state, opaque to the registry.
	Data any
}

// HasBindings reports whether the module exposes anything to scripted callers.
func (m *Module) HasBindings() bool {
	return m.Config != nil || len(m.Props) > 0
}

// Prop returns the named property callback.
func (m *Module) Prop(name string) (Callback, bool) {
	for _, p := range m.Props {
		if p.Name == name {
			return p.Cb, true
		}
	}
	return nil, false
}

// Loader creates modules by name. ErrNotFound is the distinguished "try the
// next loader" error; any other error aborts the load.
type Loader interface {
	Load(name string) (*Module, error)
}

// Binder installs and removes a module's scripted-visible bindings.
type Binder interface {
	// BindModule installs bindings and invokes the scripting environment's
	// module-registration hook. Hook failure is not fatal to registration.
	BindModule(m *Module) error

	// UnbindModule detaches the module's bindings.
	UnbindModule(name string)
}

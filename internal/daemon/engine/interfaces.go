package engine

import (
	"github.com/resolvekit/resolverd/internal/daemon/modules"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// Scripting is the command-evaluation collaborator: it evaluates operator
// commands and configuration scripts, loads scripted modules and owns their
// scripted-visible bindings. script.Environment is the production
// implementation.
type Scripting interface {
	// Bootstrap evaluates the sandbox script. Failure is configuration-fatal.
	Bootstrap() error

	// EvalFile evaluates an operator-supplied configuration script.
	EvalFile(path string) error

	// EvalDefaults evaluates the built-in default-configuration script.
	EvalDefaults() error

	// Eval evaluates one command. hasResult is false when no value was
	// produced.
	Eval(cmd string, raw bool) (v value.Value, hasResult bool, err error)

	// EvalCommand evaluates a fanned-out command and serializes the result.
	EvalCommand(cmd string) string

	// Load is the scripted module loader.
	Load(name string) (*modules.Module, error)

	// BindModule installs a module's scripted-visible bindings.
	BindModule(m *modules.Module) error

	// UnbindModule detaches a module's scripted-visible bindings.
	UnbindModule(name string)
}

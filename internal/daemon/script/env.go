// Package script hosts the embedded scripting environment the operator
// command surface runs in. Commands and configuration scripts are Go
// fragments evaluated by a yaegi interpreter; native engine functionality is
// exposed to them as the "ctl" package.
//
// Scripted modules are single files in the module directory, evaluated in
// their own interpreter. A module file may declare:
//
//	func Config(arg string) error                       // optional
//	var Props = map[string]func(string) (string, error) // optional
//	func Deinit() error                                 // optional
package script

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/resolvekit/resolverd/internal/daemon/common/log"
	"github.com/resolvekit/resolverd/internal/daemon/modules"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

//go:embed sandbox.gox
var sandboxSrc string

//go:embed defaults.gox
var defaultsSrc string

// ErrBootstrap reports a sandbox script failure. It is fatal to startup;
// user and default configuration script failures are not.
var ErrBootstrap = errors.New("script: bootstrap failed")

// Hooks are the native engine entry points exposed to scripted callers.
// Every hook receives its context explicitly; nothing is recovered from
// ambient state.
type Hooks struct {
	// Quit requests an engine stop.
	Quit func()

	// Verbose toggles debug logging and returns the new state.
	Verbose func(on bool) bool

	// Option gets or sets a resolver option flag.
	Option func(name string, set ...bool) (bool, error)

	// Fanout broadcasts a command to the leader and all siblings.
	Fanout func(cmd string) []any

	// Load registers a module, with optional precedence and reference.
	Load func(name, precedence, ref string) error

	// Unload unregisters a module.
	Unload func(name string) error

	// Invoke dispatches into a module callback.
	Invoke func(m *modules.Module, cb modules.Callback, arg any) (value.Value, bool, error)
}

// Config configures a scripting environment.
type Config struct {
	ModuleDir string
	Logger    log.Logger
	Hooks     Hooks
}

// Environment is the per-process scripting state. It implements the
// command-evaluation collaborator, the scripted module loader and the module
// binder. Not safe for concurrent use; the engine serializes access on its
// control goroutine.
type Environment struct {
	interp    *interp.Interpreter
	hooks     Hooks
	moduleDir string
	logger    log.Logger

	// modTable is the script-visible module surface: module name to bound
	// callbacks keyed by "config" or property name.
	modTable map[string]map[string]func(string) (any, error)
}

// New builds a scripting environment with the ctl package bound.
func New(cfg Config) (*Environment, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	e := &Environment{
		interp:    interp.New(interp.Options{}),
		hooks:     cfg.Hooks,
		moduleDir: cfg.ModuleDir,
		logger:    logger,
		modTable:  map[string]map[string]func(string) (any, error){},
	}
	if err := e.interp.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: stdlib symbols: %w", err)
	}
	if err := e.interp.Use(e.exports()); err != nil {
		return nil, fmt.Errorf("script: ctl symbols: %w", err)
	}
	return e, nil
}

// exports builds the "ctl" binary package visible to scripts.
func (e *Environment) exports() interp.Exports {
	return interp.Exports{
		"ctl/ctl": {
			"Help":      reflect.ValueOf(e.helpText),
			"Quit":      reflect.ValueOf(func() { e.hooks.Quit() }),
			"Hostname":  reflect.ValueOf(hostname),
			"Verbose":   reflect.ValueOf(func(on bool) bool { return e.hooks.Verbose(on) }),
			"Option":    reflect.ValueOf(func(name string, set ...bool) (bool, error) { return e.hooks.Option(name, set...) }),
			"ToJSON":    reflect.ValueOf(toJSON),
			"Fanout":    reflect.ValueOf(func(cmd string) []any { return e.hooks.Fanout(cmd) }),
			"Load":      reflect.ValueOf(func(name, precedence, ref string) error { return e.hooks.Load(name, precedence, ref) }),
			"Unload":    reflect.ValueOf(func(name string) error { return e.hooks.Unload(name) }),
			"Modules":   reflect.ValueOf(e.modTable),
			"ModuleDir": reflect.ValueOf(e.moduleDir),
		},
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

func toJSON(v any) string {
	return value.Encode(value.FromGo(v))
}

func (e *Environment) helpText() string {
	return `help()                  show this help
quit()                  stop the engine
hostname()              hostname
verbose(true|false)     toggle verbose mode
option(opt[, new_val])  get/set a resolver option
tojson(val)             serialize a value
fanout(cmd)             run a command on all workers
load(name[, op, ref])   load a module, optionally with precedence
unload(name)            unload a module
mod(name)               access a module's callable surface`
}

// Bootstrap evaluates the embedded sandbox script that establishes the
// command environment. Failure is fatal to startup.
func (e *Environment) Bootstrap() error {
	if _, err := e.interp.Eval(sandboxSrc); err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}
	return nil
}

// EvalFile evaluates an operator-supplied configuration script by path.
func (e *Environment) EvalFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("script: read %s: %w", path, err)
	}
	if _, err := e.interp.Eval(string(src)); err != nil {
		return fmt.Errorf("script: %s: %w", path, err)
	}
	return nil
}

// EvalDefaults evaluates the built-in default-configuration script.
func (e *Environment) EvalDefaults() error {
	if _, err := e.interp.Eval(defaultsSrc); err != nil {
		return fmt.Errorf("script: defaults: %w", err)
	}
	return nil
}

// Eval evaluates one operator command. hasResult is false when the command
// produced no value. The raw flag is accepted for contract compatibility;
// results are returned structured either way.
func (e *Environment) Eval(cmd string, raw bool) (value.Value, bool, error) {
	_ = raw
	res, err := e.interp.Eval(cmd)
	if err != nil {
		return value.Null(), false, err
	}
	if !res.IsValid() || !res.CanInterface() {
		return value.Null(), false, nil
	}
	return value.FromGo(res.Interface()), true, nil
}

// EvalCommand evaluates a fanned-out command and serializes its result, the
// sibling side of the fan-out protocol. An evaluation error is reported as
// its message string; no result yields an empty response.
func (e *Environment) EvalCommand(cmd string) string {
	v, has, err := e.Eval(cmd, true)
	if err != nil {
		return value.Encode(value.String(err.Error()))
	}
	if !has {
		return ""
	}
	return value.Encode(v)
}

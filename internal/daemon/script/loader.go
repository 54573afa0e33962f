package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/resolvekit/resolverd/internal/daemon/modules"
)

// Load implements the scripted module loader. The module source is
// <moduleDir>/<name>.go, evaluated in its own interpreter so module state
// stays private. A missing file reports modules.ErrNotFound so the registry
// knows there is nothing to fall back to.
func (e *Environment) Load(name string) (*modules.Module, error) {
	path := filepath.Join(e.moduleDir, name+".go")
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, modules.ErrNotFound
		}
		return nil, fmt.Errorf("script: module %s: %w", name, err)
	}

	mi := interp.New(interp.Options{})
	if err := mi.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: module %s: %w", name, err)
	}
	if err := mi.Use(e.exports()); err != nil {
		return nil, fmt.Errorf("script: module %s: %w", name, err)
	}
	if _, err := mi.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("script: module %s: %w", name, err)
	}

	mod := &modules.Module{Name: name}

	if v, err := mi.Eval("Config"); err == nil && v.IsValid() {
		if fn, ok := v.Interface().(func(string) error); ok {
			mod.Config = modules.ScriptedConfig(fn)
		}
	}
	if v, err := mi.Eval("Props"); err == nil && v.IsValid() {
		if props, ok := v.Interface().(map[string]func(string) (string, error)); ok {
			names := make([]string, 0, len(props))
			for n := range props {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				mod.Props = append(mod.Props, modules.Prop{Name: n, Cb: modules.ScriptedProp(props[n])})
			}
		}
	}
	if v, err := mi.Eval("Deinit"); err == nil && v.IsValid() {
		if fn, ok := v.Interface().(func() error); ok {
			mod.Deinit = fn
		}
	}

	e.logger.Debug(map[string]any{"module": name, "props": len(mod.Props)}, "scripted module loaded")
	return mod, nil
}

// BindModule installs the module's scripted-visible surface and invokes the
// sandbox's modules_register hook when present. The hook error is returned
// for the caller to log; binding itself cannot fail.
func (e *Environment) BindModule(m *modules.Module) error {
	table := map[string]func(string) (any, error){}
	if m.Config != nil {
		table["config"] = e.bindCallback(m, m.Config)
	}
	for _, p := range m.Props {
		table[p.Name] = e.bindCallback(m, p.Cb)
	}
	e.modTable[m.Name] = table

	hook, err := e.interp.Eval("modules_register")
	if err != nil || !hook.IsValid() {
		return nil // sandbox defines no hook
	}
	fn, ok := hook.Interface().(func(string))
	if !ok {
		return fmt.Errorf("script: modules_register has unexpected signature")
	}
	if herr := callHook(fn, m.Name); herr != nil {
		return herr
	}
	return nil
}

// UnbindModule detaches a module's scripted-visible surface.
func (e *Environment) UnbindModule(name string) {
	delete(e.modTable, name)
}

// bindCallback adapts a module callback into the script-facing shape:
// serialized text in, structured value out.
func (e *Environment) bindCallback(m *modules.Module, cb modules.Callback) func(string) (any, error) {
	return func(arg string) (any, error) {
		var parsed any = arg
		if arg == "" {
			parsed = nil
		}
		v, has, err := e.hooks.Invoke(m, cb, parsed)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		return v.Interface(), nil
	}
}

// callHook shields the environment from a panicking registration hook.
func callHook(fn func(string), name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script: modules_register panicked: %v", r)
		}
	}()
	fn(name)
	return nil
}

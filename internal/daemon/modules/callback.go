package modules

// Callback is one invocable entry point of a module: either the configuration
// entry point or a named property, native or scripted. The variant itself
// tells dispatch whether the call is one-way, so no identity comparison
// against the module's config pointer is needed.
type Callback interface {
	// Call runs the callback. hasResult is false for one-way callbacks and
	// for properties that produced no output.
	Call(h Host, m *Module, arg string) (result string, hasResult bool, err error)

	// IsConfig reports whether this is a configuration entry point.
	IsConfig() bool
}

// NativeConfig is a configuration entry point implemented in-process.
type NativeConfig func(m *Module, arg string) error

func (f NativeConfig) Call(_ Host, m *Module, arg string) (string, bool, error) {
	return "", false, f(m, arg)
}

func (NativeConfig) IsConfig() bool { return true }

// NativeProp is a named property entry point implemented in-process. The
// returned string, when non-empty by convention, is a serialized result.
type NativeProp func(h Host, m *Module, arg string) (string, error)

func (f NativeProp) Call(h Host, m *Module, arg string) (string, bool, error) {
	res, err := f(h, m, arg)
	if err != nil {
		return "", false, err
	}
	if res == "" {
		return "", false, nil
	}
	return res, true, nil
}

func (NativeProp) IsConfig() bool { return false }

// ScriptedConfig wraps a configuration function extracted from a scripted
// module. The script closes over its own environment, so no Host is passed.
type ScriptedConfig func(arg string) error

func (f ScriptedConfig) Call(_ Host, _ *Module, arg string) (string, bool, error) {
	return "", false, f(arg)
}

func (ScriptedConfig) IsConfig() bool { return true }

// ScriptedProp wraps a property function extracted from a scripted module.
type ScriptedProp func(arg string) (string, error)

func (f ScriptedProp) Call(_ Host, _ *Module, arg string) (string, bool, error) {
	res, err := f(arg)
	if err != nil {
		return "", false, err
	}
	if res == "" {
		return "", false, nil
	}
	return res, true, nil
}

func (ScriptedProp) IsConfig() bool { return false }

package modules

import (
	"fmt"

	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// Invoke runs a module callback on behalf of a scripted caller. Scalar
// arguments cross unchanged as text; structured arguments are serialized
// first, so the callback only ever sees text or nothing.
//
// Configuration entry points are one-way: no result is produced and a raised
// error propagates verbatim. For properties, a returned serialized result is
// parsed back into a structured value; if parsing fails the raw string is
// surfaced instead — invalid serialized output is never fatal, only
// unstructured.
func Invoke(h Host, m *Module, cb Callback, arg any) (value.Value, bool, error) {
	if m == nil || cb == nil {
		return value.Null(), false, fmt.Errorf("modules: invoke on nil module or callback")
	}

	res, hasRes, err := cb.Call(h, m, marshalArg(arg))
	if err != nil {
		return value.Null(), false, err
	}
	if cb.IsConfig() || !hasRes {
		return value.Null(), false, nil
	}

	parsed, perr := value.Decode(res)
	if perr != nil {
		return value.String(res), true, nil
	}
	return parsed, true, nil
}

// marshalArg flattens the caller's argument to the text form callbacks
// expect. Structured values go through the interchange encoder; scalars pass
// through as their plain text.
func marshalArg(arg any) string {
	switch t := arg.(type) {
	case nil:
		return ""
	case string:
		return t
	case []value.Entry:
		return marshalValue(value.FromEntries(t))
	case value.Value:
		return marshalValue(t)
	default:
		return marshalValue(value.FromGo(t))
	}
}

func marshalValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return ""
	case value.KindString:
		return v.AsString()
	default:
		return value.Encode(v)
	}
}

package value

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrDecode is returned when the input is not a well-formed encoded value.
// Callers at marshalling boundaries degrade to surfacing the raw text.
var ErrDecode = errors.New("value: malformed encoding")

// Encode renders the value as deterministic JSON text. Object keys are
// emitted in lexical order. An empty array encodes as "{}": the array/object
// distinction is lost for the empty case, so decoding always yields an empty
// object. That asymmetry is part of the contract.
func Encode(v Value) string {
	var b strings.Builder
	encodeTo(&b, v)
	return b.String()
}

func encodeTo(b *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.b {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindNumber:
		b.WriteString(formatNumber(v.n))
	case KindString:
		encodeString(b, v.s)
	case KindArray:
		if len(v.arr) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeTo(b, item)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, k := range v.sortedKeys() {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeString(b, k)
			b.WriteByte(':')
			encodeTo(b, v.obj[k])
		}
		b.WriteByte('}')
	}
}

// formatNumber prints the shortest decimal that round-trips, switching to
// exponent form outside the range where plain notation stays compact.
// Non-finite values are not representable and degrade to null.
func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return string(strconv.AppendFloat(nil, f, format, -1, 64))
}

const hexDigits = "0123456789abcdef"

func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[byte(r)>>4])
				b.WriteByte(hexDigits[byte(r)&0xf])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// Decode parses encoded text back into a Value. The input must be a single
// well-formed document; anything else returns ErrDecode.
func Decode(s string) (Value, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return Null(), ErrDecode
	}
	return fromResult(gjson.Parse(trimmed)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	}
	if r.IsArray() {
		var items []Value
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return Array(items...)
	}
	if r.IsObject() {
		fields := map[string]Value{}
		r.ForEach(func(key, item gjson.Result) bool {
			fields[key.String()] = fromResult(item)
			return true
		})
		return Object(fields)
	}
	return Null()
}

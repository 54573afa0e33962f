package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null(), "null"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"integer", Number(42), "42"},
		{"negative fraction", Number(-0.5), "-0.5"},
		{"large magnitude", Number(1e22), "1e+22"},
		{"string", String("hello"), `"hello"`},
		{"string escapes", String("a\"b\\c\nd\te\r"), `"a\"b\\c\nd\te\r"`},
		{"control char", String("x\x01y"), `"x\u0001y"`},
		{"array", Array(Number(1), String("two"), Bool(true)), `[1,"two",true]`},
		{"empty array encodes as object", Array(), "{}"},
		{"empty object", Object(nil), "{}"},
		{"object sorted keys", Object(map[string]Value{"b": Number(2), "a": Number(1)}), `{"a":1,"b":2}`},
		{"nested", Object(map[string]Value{"list": Array(Null())}), `{"list":[null]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value
	}{
		{"null", "null", Null()},
		{"bool", "true", Bool(true)},
		{"number", "3.25", Number(3.25)},
		{"string", `"hi"`, String("hi")},
		{"array", `[1,2,3]`, Array(Number(1), Number(2), Number(3))},
		{"object", `{"a":true}`, Object(map[string]Value{"a": Bool(true)})},
		{"whitespace", "  {} ", Object(nil)},
		{"empty array decodes as array", "[]", Array()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v", got)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "{", "[1,", "hello world", `{"a":}`} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrDecode, "input %q", in)
	}
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Number(-17.5),
		String("round trip"),
		Array(Number(1), Array(String("nested")), Bool(false)),
		Object(map[string]Value{
			"name":  String("policy"),
			"score": Number(99),
			"tags":  Array(String("a"), String("b")),
		}),
	}
	for _, v := range values {
		got, err := Decode(Encode(v))
		require.NoError(t, err)
		assert.True(t, got.Equal(v), "round trip mismatch for %s", Encode(v))
	}
}

// The empty array is the documented exception: it encodes as "{}" and comes
// back as an empty object.
func TestRoundTrip_EmptyArrayYieldsEmptyObject(t *testing.T) {
	got, err := Decode(Encode(Array()))
	require.NoError(t, err)
	assert.Equal(t, KindObject, got.Kind())
	assert.Equal(t, 0, got.Len())
}

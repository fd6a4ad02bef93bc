// Package value models a decoded JSON document as a tagged variant and
// resolves dotted field paths against it.
//
// Resolution never fails: a missing key, an out-of-range index or a step
// into a scalar all yield "not found".
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a [Value].
type Kind int

const (
	// Undefined is the zero Kind: the value was not found.
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "undefined"
	}
}

// Value is an immutable node of a decoded JSON document.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// Defined reports whether v was found.
func (v Value) Defined() bool { return v.kind != Undefined }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.str, v.kind == String }

// Float returns the number held by v as a float64.
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Len returns the number of elements of an array or entries of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	default:
		return 0
	}
}

// Field returns the member named key of an object, or the element at the
// decimal index key of an array.
func (v Value) Field(key string) (Value, bool) {
	switch v.kind {
	case Object:
		child, ok := v.obj[key]
		return child, ok
	case Array:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v.arr) || strconv.Itoa(idx) != key {
			return Value{}, false
		}
		return v.arr[idx], true
	default:
		return Value{}, false
	}
}

// Lookup walks a dot-separated path from v. An empty path, or any segment
// that cannot be addressed, returns an undefined Value and false.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}
	current := v
	for _, part := range strings.Split(path, ".") {
		next, ok := current.Field(part)
		if !ok || !next.Defined() {
			return Value{}, false
		}
		current = next
	}
	return current, true
}

// String renders v for logs.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return v.num.String()
	case String:
		return v.str
	case Array:
		return fmt.Sprintf("[array len=%d]", len(v.arr))
	case Object:
		return fmt.Sprintf("{object len=%d}", len(v.obj))
	default:
		return "undefined"
	}
}

// Constructors, mainly for tests and callers that build documents in code.

func NullValue() Value             { return Value{kind: Null} }
func BoolValue(b bool) Value       { return Value{kind: Bool, b: b} }
func StringValue(s string) Value   { return Value{kind: String, str: s} }
func ArrayValue(vs ...Value) Value { return Value{kind: Array, arr: vs} }

// NumberValue wraps a float64.
func NumberValue(f float64) Value {
	return Value{kind: Number, num: json.Number(strconv.FormatFloat(f, 'f', -1, 64))}
}

// ObjectValue wraps a map of members.
func ObjectValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: Object, obj: m}
}

// Decode parses a single JSON document. Numbers keep their literal form
// until they are read.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after top-level value")
	}
	return FromAny(raw), nil
}

// FromAny converts the output of encoding/json (with or without UseNumber)
// into a Value. Unsupported types become undefined.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(x)
	case json.Number:
		return Value{kind: Number, num: x}
	case float64:
		return NumberValue(x)
	case string:
		return StringValue(x)
	case []any:
		arr := make([]Value, len(x))
		for i, el := range x {
			arr[i] = FromAny(el)
		}
		return Value{kind: Array, arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, el := range x {
			obj[k] = FromAny(el)
		}
		return Value{kind: Object, obj: obj}
	default:
		return Value{}
	}
}

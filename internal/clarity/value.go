// Package clarity models the typed values exchanged with the ledger's
// contract interface, in their JSON wire form:
//
//	{"type":"uint","value":"42"}
//	{"type":"tuple","value":{"title":{"type":"string-ascii","value":"x"}}}
//	{"type":"none"}
package clarity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type names a ledger value type.
type Type string

const (
	TypeUInt        Type = "uint"
	TypeInt         Type = "int"
	TypeBool        Type = "bool"
	TypeStringASCII Type = "string-ascii"
	TypeStringUTF8  Type = "string-utf8"
	TypePrincipal   Type = "principal"
	TypeTuple       Type = "tuple"
	TypeList        Type = "list"
	TypeSome        Type = "some"
	TypeNone        Type = "none"
	TypeOK          Type = "ok"
	TypeErr         Type = "err"
)

// Value is a single typed ledger value. The payload is kept raw and
// interpreted by the As* accessors.
type Value struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func raw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Only called with strings, bools, maps and slices of Value.
		panic(fmt.Sprintf("clarity: marshal %T: %v", v, err))
	}
	return b
}

// UInt returns an unsigned integer value. Integers travel as decimal
// strings so 128-bit values survive JSON.
func UInt(n uint64) Value {
	return Value{Type: TypeUInt, Value: raw(strconv.FormatUint(n, 10))}
}

// ASCII returns a string-ascii value.
func ASCII(s string) Value { return Value{Type: TypeStringASCII, Value: raw(s)} }

// UTF8 returns a string-utf8 value.
func UTF8(s string) Value { return Value{Type: TypeStringUTF8, Value: raw(s)} }

// Principal returns a principal (address) value.
func Principal(addr string) Value { return Value{Type: TypePrincipal, Value: raw(addr)} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{Type: TypeBool, Value: raw(b)} }

// Tuple returns a tuple value.
func Tuple(fields map[string]Value) Value { return Value{Type: TypeTuple, Value: raw(fields)} }

// List returns a list value.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Type: TypeList, Value: raw(items)}
}

// Some wraps v in an optional.
func Some(v Value) Value { return Value{Type: TypeSome, Value: raw(v)} }

// None returns the empty optional.
func None() Value { return Value{Type: TypeNone} }

// OK wraps v in a successful response.
func OK(v Value) Value { return Value{Type: TypeOK, Value: raw(v)} }

// Err wraps v in an error response.
func Err(v Value) Value { return Value{Type: TypeErr, Value: raw(v)} }

func (v Value) expect(types ...Type) error {
	for _, t := range types {
		if v.Type == t {
			return nil
		}
	}
	return fmt.Errorf("expected %v, got %q", types, v.Type)
}

// AsUInt returns the integer payload of a uint value.
func (v Value) AsUInt() (uint64, error) {
	if err := v.expect(TypeUInt); err != nil {
		return 0, err
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		// Some nodes send small integers as bare JSON numbers.
		var n uint64
		if err2 := json.Unmarshal(v.Value, &n); err2 != nil {
			return 0, fmt.Errorf("uint payload: %w", err)
		}
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("uint payload %q: %w", s, err)
	}
	return n, nil
}

// AsString returns the payload of a string or principal value.
func (v Value) AsString() (string, error) {
	if err := v.expect(TypeStringASCII, TypeStringUTF8, TypePrincipal); err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return "", fmt.Errorf("string payload: %w", err)
	}
	return s, nil
}

// AsBool returns the payload of a bool value.
func (v Value) AsBool() (bool, error) {
	if err := v.expect(TypeBool); err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(v.Value, &b); err != nil {
		return false, fmt.Errorf("bool payload: %w", err)
	}
	return b, nil
}

// AsTuple returns the fields of a tuple value.
func (v Value) AsTuple() (map[string]Value, error) {
	if err := v.expect(TypeTuple); err != nil {
		return nil, err
	}
	var m map[string]Value
	if err := json.Unmarshal(v.Value, &m); err != nil {
		return nil, fmt.Errorf("tuple payload: %w", err)
	}
	return m, nil
}

// AsList returns the items of a list value.
func (v Value) AsList() ([]Value, error) {
	if err := v.expect(TypeList); err != nil {
		return nil, err
	}
	var items []Value
	if err := json.Unmarshal(v.Value, &items); err != nil {
		return nil, fmt.Errorf("list payload: %w", err)
	}
	return items, nil
}

// Inner returns the value wrapped by some, ok or err.
func (v Value) Inner() (Value, error) {
	if err := v.expect(TypeSome, TypeOK, TypeErr); err != nil {
		return Value{}, err
	}
	var inner Value
	if err := json.Unmarshal(v.Value, &inner); err != nil {
		return Value{}, fmt.Errorf("%s payload: %w", v.Type, err)
	}
	return inner, nil
}

// UnwrapOK strips a single ok wrapper if present. An err response is
// returned as an error carrying its rendered payload.
func (v Value) UnwrapOK() (Value, error) {
	switch v.Type {
	case TypeOK:
		return v.Inner()
	case TypeErr:
		inner, err := v.Inner()
		if err != nil {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("contract returned (err %s)", inner)
	}
	return v, nil
}

// String renders v in the contract language's literal syntax.
func (v Value) String() string {
	switch v.Type {
	case TypeUInt:
		if n, err := v.AsUInt(); err == nil {
			return "u" + strconv.FormatUint(n, 10)
		}
	case TypeInt:
		return strings.Trim(string(v.Value), `"`)
	case TypeBool:
		if b, err := v.AsBool(); err == nil {
			return strconv.FormatBool(b)
		}
	case TypeStringASCII:
		if s, err := v.AsString(); err == nil {
			return strconv.Quote(s)
		}
	case TypeStringUTF8:
		if s, err := v.AsString(); err == nil {
			return "u" + strconv.Quote(s)
		}
	case TypePrincipal:
		if s, err := v.AsString(); err == nil {
			return "'" + s
		}
	case TypeNone:
		return "none"
	case TypeSome, TypeOK, TypeErr:
		if inner, err := v.Inner(); err == nil {
			return "(" + string(v.Type) + " " + inner.String() + ")"
		}
	case TypeList:
		if items, err := v.AsList(); err == nil {
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = it.String()
			}
			return "(list " + strings.Join(parts, " ") + ")"
		}
	case TypeTuple:
		if m, err := v.AsTuple(); err == nil {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, len(keys))
			for i, k := range keys {
				parts[i] = k + ": " + m[k].String()
			}
			return "{" + strings.Join(parts, ", ") + "}"
		}
	}
	return fmt.Sprintf("<%s %s>", v.Type, string(v.Value))
}

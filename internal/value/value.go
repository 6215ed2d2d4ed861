package value

import (
	"strconv"
)

type ValueType int

const (
	VAL_NUMBER ValueType = iota
	VAL_BOOL
	VAL_STRING
	VAL_FUNCTION
	VAL_NATIVE
)

// Value is the tagged variant spec.md §3 describes. Only one of the
// payload fields is meaningful for a given Type; Obj carries the
// shared, reference-counted-by-convention payloads (strings, functions,
// natives) that the stack and constant pool hold by pointer, never by
// copy.
type Value struct {
	Type    ValueType
	Number  float64
	Bool    bool
	Obj     interface{}
}

// ObjFunction is a compiled, immutable function: a name, an arity, and
// a chunk. Chunk is stored as interface{} to avoid an import cycle
// with the chunk package (which itself holds []Value in its constant
// pool); callers cast it back to *chunk.Chunk.
type ObjFunction struct {
	Name  string
	Arity int
	Chunk interface{}
}

// NativeFn is the signature every built-in (e.g. clock) implements.
type NativeFn func(args []Value) (Value, error)

type ObjNative struct {
	Name  string
	Arity int
	Fn    NativeFn
}

func Number(n float64) Value { return Value{Type: VAL_NUMBER, Number: n} }
func Bool(b bool) Value      { return Value{Type: VAL_BOOL, Bool: b} }
func String(s string) Value  { return Value{Type: VAL_STRING, Obj: s} }

func Function(fn *ObjFunction) Value {
	return Value{Type: VAL_FUNCTION, Obj: fn}
}

func Native(native *ObjNative) Value {
	return Value{Type: VAL_NATIVE, Obj: native}
}

func (v Value) AsString() string { return v.Obj.(string) }

// IsTruthy implements spec.md §3's truthiness table: booleans use
// their own value, numbers are false only for 0.0, strings are false
// only when empty, functions and natives are always truthy.
func (v Value) IsTruthy() bool {
	switch v.Type {
	case VAL_BOOL:
		return v.Bool
	case VAL_NUMBER:
		return v.Number != 0.0
	case VAL_STRING:
		return v.Obj.(string) != ""
	default:
		return true
	}
}

// Equal implements structural equality: equal within a variant,
// always false across variants (spec.md §3).
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case VAL_NUMBER:
		return v.Number == other.Number
	case VAL_BOOL:
		return v.Bool == other.Bool
	case VAL_STRING:
		return v.Obj.(string) == other.Obj.(string)
	case VAL_FUNCTION:
		return v.Obj.(*ObjFunction) == other.Obj.(*ObjFunction)
	case VAL_NATIVE:
		return v.Obj.(*ObjNative) == other.Obj.(*ObjNative)
	default:
		return false
	}
}

// TypeName names a Value's variant for error messages.
func (v Value) TypeName() string {
	switch v.Type {
	case VAL_NUMBER:
		return "number"
	case VAL_BOOL:
		return "boolean"
	case VAL_STRING:
		return "string"
	case VAL_FUNCTION:
		return "function"
	case VAL_NATIVE:
		return "native function"
	default:
		return "unknown"
	}
}

// String renders the value's display form for `print`, using the
// shortest round-trip representation for numbers per spec.md §6.
func (v Value) String() string {
	switch v.Type {
	case VAL_NUMBER:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case VAL_BOOL:
		if v.Bool {
			return "true"
		}
		return "false"
	case VAL_STRING:
		return v.Obj.(string)
	case VAL_FUNCTION:
		fn := v.Obj.(*ObjFunction)
		if fn.Name == "" {
			return "<script>"
		}
		return "<fn " + fn.Name + ">"
	case VAL_NATIVE:
		return "<native fn " + v.Obj.(*ObjNative).Name + ">"
	default:
		return "<unknown>"
	}
}

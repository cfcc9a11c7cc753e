package vm

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindEmpty  Kind = iota // unoccupied register slot, never produced by a program
	KindFalse              // canonical false
	KindTrue               // canonical true
	KindInt                // 64-bit signed integer
	KindDouble             // IEEE-754 double
	KindStr                // compile-time text borrowed from the source
	KindString             // text produced at run time
	KindArr                // heap handle to an array
	KindObj                // heap handle to an object
)

var kindNames = [...]string{
	KindEmpty:  "empty",
	KindFalse:  "false",
	KindTrue:   "true",
	KindInt:    "int",
	KindDouble: "double",
	KindStr:    "str",
	KindString: "string",
	KindArr:    "array",
	KindObj:    "object",
}

// String implements the Stringer interface.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a runtime value. Only KindArr and KindObj refer to the heap; every
// other variant is stored inline. The zero Value is Empty.
type Value struct {
	kind Kind
	bits uint64 // int64, float64 bits, or heap handle
	text string
}

// Pre-defined values.
var (
	Empty = Value{}
	False = Value{kind: KindFalse}
	True  = Value{kind: KindTrue}
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromBool returns True or False.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromInt wraps a 64-bit integer.
func FromInt(n int64) Value {
	return Value{kind: KindInt, bits: uint64(n)}
}

// FromDouble wraps a double, keeping its exact bit pattern.
func FromDouble(f float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(f)}
}

// FromDoubleBits wraps a double given as its raw IEEE-754 bits.
func FromDoubleBits(bits uint64) Value {
	return Value{kind: KindDouble, bits: bits}
}

// FromStr wraps compile-time text.
func FromStr(s string) Value {
	return Value{kind: KindStr, text: s}
}

// FromString wraps text created at run time.
func FromString(s string) Value {
	return Value{kind: KindString, text: s}
}

func fromHandle(kind Kind, h Handle) Value {
	return Value{kind: kind, bits: uint64(h)}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the unoccupied-register marker.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsDouble reports whether v holds a double.
func (v Value) IsDouble() bool { return v.kind == KindDouble }

// IsNumber reports whether v is an integer or a double.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindDouble }

// IsText reports whether v is borrowed or owned text.
func (v Value) IsText() bool { return v.kind == KindStr || v.kind == KindString }

// IsHeap reports whether v refers to a heap object.
func (v Value) IsHeap() bool { return v.kind == KindArr || v.kind == KindObj }

// IsTruthy returns false only for the canonical False value.
func (v Value) IsTruthy() bool { return v.kind != KindFalse }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Int returns the integer payload. Only meaningful when IsInt.
func (v Value) Int() int64 { return int64(v.bits) }

// Double returns the double payload. Only meaningful when IsDouble.
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }

// Bits returns the raw payload bits (integer, double bits or handle).
func (v Value) Bits() uint64 { return v.bits }

// Text returns the text payload. Only meaningful when IsText.
func (v Value) Text() string { return v.text }

// Handle returns the heap handle. Only meaningful when IsHeap.
func (v Value) Handle() Handle { return Handle(v.bits) }

// float converts a numeric value to float64.
func (v Value) float() float64 {
	if v.kind == KindInt {
		return float64(int64(v.bits))
	}
	return v.Double()
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

// Equal compares two values. Numbers compare numerically across Int and
// Double, text compares by content across Str and String, heap values compare
// by identity.
func (v Value) Equal(o Value) bool {
	switch {
	case v.IsNumber() && o.IsNumber():
		if v.kind == KindInt && o.kind == KindInt {
			return v.bits == o.bits
		}
		return v.float() == o.float()
	case v.IsText() && o.IsText():
		return v.text == o.text
	case v.IsHeap() || o.IsHeap():
		return v.kind == o.kind && v.bits == o.bits
	default:
		return v.kind == o.kind
	}
}

// String renders the value without consulting the heap; arrays and objects
// print as their handles. Use VM.Format for a deep rendering.
func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		return "<empty>"
	case KindFalse:
		return "false"
	case KindTrue:
		return "true"
	case KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindStr, KindString:
		return v.text
	case KindArr:
		return fmt.Sprintf("array#%d", v.bits)
	case KindObj:
		return fmt.Sprintf("object#%d", v.bits)
	}
	return v.kind.String()
}

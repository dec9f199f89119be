package types

// Ref is an opaque heap handle: an index into the heap's indirection
// table, never a raw pointer. The zero Ref is the JVM null reference.
type Ref uint32

// NullRef is the reference value representing Java null.
const NullRef Ref = 0

// Value is the tagged union every operand-stack slot, local variable,
// object field, and array element is stored as. GC root precision is
// derived directly from Kind — there is no separate stack-map pass.
type Value struct {
	Kind Kind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  Ref
}

func IntValue(v int32) Value    { return Value{Kind: KindInt, I32: v} }
func LongValue(v int64) Value   { return Value{Kind: KindLong, I64: v} }
func FloatValue(v float32) Value  { return Value{Kind: KindFloat, F32: v} }
func DoubleValue(v float64) Value { return Value{Kind: KindDouble, F64: v} }
func RefValue(r Ref) Value      { return Value{Kind: KindRef, Ref: r} }
func NullValue() Value          { return Value{Kind: KindRef, Ref: NullRef} }

// HighValue is the filler occupying the second slot of a long/double
// pair in a locals array or operand stack.
func HighValue() Value { return Value{Kind: KindHigh} }

// ZeroValue returns the JVM default value for a computational kind
// (used for default field/local initialization, spec's "zeroed slots"
// invariant).
func ZeroValue(k Kind) Value {
	switch k {
	case KindLong:
		return LongValue(0)
	case KindFloat:
		return FloatValue(0)
	case KindDouble:
		return DoubleValue(0)
	case KindRef:
		return NullValue()
	default:
		return IntValue(0)
	}
}

// AsInt32 returns v's value truncated/widened as appropriate for an
// int-kind slot (also used for boolean/byte/char/short, which the JVM
// always widens to int on the stack).
func (v Value) AsInt32() int32 { return v.I32 }

func (v Value) AsInt64() int64   { return v.I64 }
func (v Value) AsFloat32() float32 { return v.F32 }
func (v Value) AsFloat64() float64 { return v.F64 }
func (v Value) IsNull() bool      { return v.Kind == KindRef && v.Ref == NullRef }

// Package types holds the small set of value-kind tags shared by the
// reader, resolver, heap, and engine so none of them need to import the
// others just to talk about "is this slot a reference".
package types

// Kind tags a computational slot (local variable, operand-stack entry,
// object field, or array element) with one of the JVM's five
// computational types. GC precision is derived from this tag rather
// than from static stack-map analysis, per spec.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	// KindHigh marks the second slot occupied by a long/double value.
	// Any direct access to a KindHigh slot (e.g. an iload targeting the
	// high half of a long) is an internal invariant violation.
	KindHigh
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Width reports how many local-variable/operand-stack slots a value of
// this kind occupies: 2 for long/double, 1 otherwise.
func (k Kind) Width() int {
	if k == KindLong || k == KindDouble {
		return 2
	}
	return 1
}

// KindOfDescriptor returns the computational kind of a field or
// parameter descriptor's leading type character.
func KindOfDescriptor(desc string) Kind {
	if len(desc) == 0 {
		return KindRef
	}
	switch desc[0] {
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'L', '[':
		return KindRef
	default: // I, S, B, C, Z
		return KindInt
	}
}

// ElemKind identifies the element type of an array allocated on the
// heap. Primitive arrays pack their elements tightly; reference arrays
// store Refs.
type ElemKind int

const (
	ElemBoolean ElemKind = iota
	ElemByte
	ElemChar
	ElemShort
	ElemInt
	ElemLong
	ElemFloat
	ElemDouble
	ElemRef
)

// NewarrayCode maps the `newarray` instruction's atype operand to an ElemKind.
func NewarrayCode(atype uint8) (ElemKind, bool) {
	switch atype {
	case 4:
		return ElemBoolean, true
	case 5:
		return ElemChar, true
	case 6:
		return ElemFloat, true
	case 7:
		return ElemDouble, true
	case 8:
		return ElemByte, true
	case 9:
		return ElemShort, true
	case 10:
		return ElemInt, true
	case 11:
		return ElemLong, true
	default:
		return 0, false
	}
}

// Kind reports the computational kind used to hold one element of this
// array type on the operand stack / in locals.
func (e ElemKind) Kind() Kind {
	switch e {
	case ElemLong:
		return KindLong
	case ElemFloat:
		return KindFloat
	case ElemDouble:
		return KindDouble
	case ElemRef:
		return KindRef
	default:
		return KindInt
	}
}

// Size is the packed byte width of one element in the heap's slab.
func (e ElemKind) Size() int {
	switch e {
	case ElemBoolean, ElemByte:
		return 1
	case ElemChar, ElemShort:
		return 2
	case ElemInt, ElemFloat:
		return 4
	case ElemLong, ElemDouble:
		return 8
	case ElemRef:
		return 4 // Ref is a uint32 handle index
	default:
		return 4
	}
}

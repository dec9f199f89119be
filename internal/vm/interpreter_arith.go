package vm

import (
	"math"

	"github.com/minijvm/minijvm/internal/types"
)

func (e *Engine) execIntOp(f *Frame, op uint8) error {
	if op == OpIneg {
		v := f.Pop().I32
		f.Push(types.IntValue(-v))
		return nil
	}
	b := f.Pop().I32
	a := f.Pop().I32
	switch op {
	case OpIadd:
		f.Push(types.IntValue(a + b))
	case OpIsub:
		f.Push(types.IntValue(a - b))
	case OpImul:
		f.Push(types.IntValue(a * b))
	case OpIdiv:
		if b == 0 {
			return e.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(types.IntValue(a / b))
	case OpIrem:
		if b == 0 {
			return e.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		f.Push(types.IntValue(a % b))
	case OpIshl:
		f.Push(types.IntValue(a << (uint32(b) & 0x1F)))
	case OpIshr:
		f.Push(types.IntValue(a >> (uint32(b) & 0x1F)))
	case OpIushr:
		f.Push(types.IntValue(int32(uint32(a) >> (uint32(b) & 0x1F))))
	case OpIand:
		f.Push(types.IntValue(a & b))
	case OpIor:
		f.Push(types.IntValue(a | b))
	case OpIxor:
		f.Push(types.IntValue(a ^ b))
	}
	return nil
}

func (e *Engine) execLongOp(f *Frame, op uint8) error {
	if op == OpLneg {
		v := f.PopWide().I64
		f.PushWide(types.LongValue(-v))
		return nil
	}
	// Shifts take an int shift distance, not a wide one.
	if op == OpLshl || op == OpLshr || op == OpLushr {
		shift := f.Pop().I32
		v := f.PopWide().I64
		switch op {
		case OpLshl:
			f.PushWide(types.LongValue(v << (uint64(shift) & 0x3F)))
		case OpLshr:
			f.PushWide(types.LongValue(v >> (uint64(shift) & 0x3F)))
		case OpLushr:
			f.PushWide(types.LongValue(int64(uint64(v) >> (uint64(shift) & 0x3F))))
		}
		return nil
	}
	b := f.PopWide().I64
	a := f.PopWide().I64
	switch op {
	case OpLadd:
		f.PushWide(types.LongValue(a + b))
	case OpLsub:
		f.PushWide(types.LongValue(a - b))
	case OpLmul:
		f.PushWide(types.LongValue(a * b))
	case OpLdiv:
		if b == 0 {
			return e.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushWide(types.LongValue(a / b))
	case OpLrem:
		if b == 0 {
			return e.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushWide(types.LongValue(a % b))
	case OpLand:
		f.PushWide(types.LongValue(a & b))
	case OpLor:
		f.PushWide(types.LongValue(a | b))
	case OpLxor:
		f.PushWide(types.LongValue(a ^ b))
	}
	return nil
}

func (e *Engine) execFloatOp(f *Frame, op uint8) {
	if op == OpFneg {
		f.Push(types.FloatValue(-f.Pop().F32))
		return
	}
	b := f.Pop().F32
	a := f.Pop().F32
	switch op {
	case OpFadd:
		f.Push(types.FloatValue(a + b))
	case OpFsub:
		f.Push(types.FloatValue(a - b))
	case OpFmul:
		f.Push(types.FloatValue(a * b))
	case OpFdiv:
		f.Push(types.FloatValue(a / b))
	case OpFrem:
		f.Push(types.FloatValue(float32(math.Mod(float64(a), float64(b)))))
	}
}

func (e *Engine) execDoubleOp(f *Frame, op uint8) {
	if op == OpDneg {
		f.PushWide(types.DoubleValue(-f.PopWide().F64))
		return
	}
	b := f.PopWide().F64
	a := f.PopWide().F64
	switch op {
	case OpDadd:
		f.PushWide(types.DoubleValue(a + b))
	case OpDsub:
		f.PushWide(types.DoubleValue(a - b))
	case OpDmul:
		f.PushWide(types.DoubleValue(a * b))
	case OpDdiv:
		f.PushWide(types.DoubleValue(a / b))
	case OpDrem:
		f.PushWide(types.DoubleValue(math.Mod(a, b)))
	}
}

func compare64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// compareFloat implements fcmpl/fcmpg/dcmpl/dcmpg: NaN makes either
// operand unorderable, so the result is forced to -1 (the `l` forms) or
// +1 (the `g` forms) rather than being a true three-way compare.
func compareFloat(a, b float64, nanIsGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanIsGreater {
			return 1
		}
		return -1
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func float32ToInt32(v float32) int32 {
	return float64ToInt32(float64(v))
}

func float32ToInt64(v float32) int64 {
	return float64ToInt64(float64(v))
}

// float64ToInt32/64 implement the JVM's f2i/f2l/d2i/d2l conversions:
// NaN becomes 0, out-of-range values saturate to the target type's
// min/max rather than wrapping the way a plain Go conversion would.
func float64ToInt32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func float64ToInt64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

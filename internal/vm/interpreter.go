package vm

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/types"
)

// runFrame drives f's bytecode to completion: a return instruction, an
// uncaught exception, or an internal error. It owns the frame's
// exception-table search — every nested invoke that throws surfaces
// here as a plain Go error (a *thrown, almost always), checked against
// f's own handlers before being handed to the caller's runFrame the
// same way.
func (e *Engine) runFrame(f *Frame) (types.Value, error) {
	for {
		instrPC := f.PC
		if instrPC >= len(f.Code.Code) {
			return types.Value{}, fmt.Errorf("%s.%s%s: fell off the end of bytecode at pc %d", f.Class.Name, f.Method.Name, f.Method.Descriptor, instrPC)
		}
		op := f.ReadU8()

		result, done, err := e.execute(f, instrPC, op)
		if err != nil {
			if e.tryHandle(f, instrPC, err) {
				continue
			}
			return types.Value{}, err
		}
		if done {
			return result, nil
		}
	}
}

// execute runs one instruction. Returns (value, true, nil) on a return
// opcode, (zero, false, nil) having only mutated the frame, or a
// non-nil error — a *thrown for anything the bytecode or a callee
// raised, a plain error for an engine-internal fault.
func (e *Engine) execute(f *Frame, instrPC int, op uint8) (types.Value, bool, error) {
	switch op {

	// --- Constants ---
	case OpAconstNull:
		f.Push(types.NullValue())
	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		f.Push(types.IntValue(int32(op) - int32(OpIconst0)))
	case OpLconst0, OpLconst1:
		f.PushWide(types.LongValue(int64(op) - int64(OpLconst0)))
	case OpFconst0, OpFconst1, OpFconst2:
		f.Push(types.FloatValue(float32(int32(op) - int32(OpFconst0))))
	case OpDconst0, OpDconst1:
		f.PushWide(types.DoubleValue(float64(op) - float64(OpDconst0)))
	case OpBipush:
		f.Push(types.IntValue(int32(f.ReadI8())))
	case OpSipush:
		f.Push(types.IntValue(int32(f.ReadI16())))
	case OpLdc:
		v, err := e.loadConstant(f, uint16(f.ReadU8()))
		if err != nil {
			return types.Value{}, false, err
		}
		f.Push(v)
	case OpLdcW, OpLdc2W:
		v, err := e.loadConstant(f, f.ReadU16())
		if err != nil {
			return types.Value{}, false, err
		}
		if v.Kind == types.KindLong || v.Kind == types.KindDouble {
			f.PushWide(v)
		} else {
			f.Push(v)
		}

	// --- Local loads ---
	case OpIload, OpFload, OpAload:
		f.Push(f.GetLocal(int(f.ReadU8())))
	case OpLload, OpDload:
		f.Push(f.GetLocal(int(f.ReadU8())))
		f.Push(types.HighValue())
	case OpIload0, OpIload1, OpIload2, OpIload3:
		f.Push(f.GetLocal(int(op) - int(OpIload0)))
	case OpFload0, OpFload1, OpFload2, OpFload3:
		f.Push(f.GetLocal(int(op) - int(OpFload0)))
	case OpAload0, OpAload1, OpAload2, OpAload3:
		f.Push(f.GetLocal(int(op) - int(OpAload0)))
	case OpLload0, OpLload1, OpLload2, OpLload3:
		f.PushWide(f.GetLocal(int(op) - int(OpLload0)))
	case OpDload0, OpDload1, OpDload2, OpDload3:
		f.PushWide(f.GetLocal(int(op) - int(OpDload0)))

	// --- Array loads ---
	case OpIaload, OpFaload, OpAaload, OpBaload, OpCaload, OpSaload:
		if err := e.execArrayLoad(f, false); err != nil {
			return types.Value{}, false, err
		}
	case OpLaload, OpDaload:
		if err := e.execArrayLoad(f, true); err != nil {
			return types.Value{}, false, err
		}

	// --- Local stores ---
	case OpIstore, OpFstore, OpAstore:
		f.SetLocal(int(f.ReadU8()), f.Pop())
	case OpLstore, OpDstore:
		idx := int(f.ReadU8())
		f.SetLocalWide(idx, f.PopWide())
	case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
		f.SetLocal(int(op)-int(OpIstore0), f.Pop())
	case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
		f.SetLocal(int(op)-int(OpFstore0), f.Pop())
	case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		f.SetLocal(int(op)-int(OpAstore0), f.Pop())
	case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
		f.SetLocalWide(int(op)-int(OpLstore0), f.PopWide())
	case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
		f.SetLocalWide(int(op)-int(OpDstore0), f.PopWide())

	// --- Array stores ---
	case OpIastore, OpFastore, OpAastore, OpBastore, OpCastore, OpSastore:
		if err := e.execArrayStore(f, false); err != nil {
			return types.Value{}, false, err
		}
	case OpLastore, OpDastore:
		if err := e.execArrayStore(f, true); err != nil {
			return types.Value{}, false, err
		}

	// --- Stack manipulation ---
	case OpPop:
		f.Pop()
	case OpPop2:
		f.Pop()
		f.Pop()
	case OpDup:
		v := f.Peek()
		f.Push(v)
	case OpDupX1:
		v1 := f.Pop()
		v2 := f.Pop()
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
	case OpDupX2:
		v1 := f.Pop()
		v2 := f.Pop()
		v3 := f.Pop()
		f.Push(v1)
		f.Push(v3)
		f.Push(v2)
		f.Push(v1)
	case OpDup2:
		v2 := f.Pop()
		v1 := f.Pop()
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
		f.Push(v2)
	case OpDup2X1:
		v2 := f.Pop()
		v1 := f.Pop()
		v0 := f.Pop()
		f.Push(v1)
		f.Push(v2)
		f.Push(v0)
		f.Push(v1)
		f.Push(v2)
	case OpDup2X2:
		v2 := f.Pop()
		v1 := f.Pop()
		v0 := f.Pop()
		v_1 := f.Pop()
		f.Push(v1)
		f.Push(v2)
		f.Push(v_1)
		f.Push(v0)
		f.Push(v1)
		f.Push(v2)
	case OpSwap:
		v1 := f.Pop()
		v2 := f.Pop()
		f.Push(v1)
		f.Push(v2)

	// --- Control flow ---
	case OpGoto:
		offset := f.ReadI16()
		f.PC = instrPC + int(offset)
	case OpGotoW:
		offset := f.ReadI32()
		f.PC = instrPC + int(offset)
	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		e.execBranchUnary(f, instrPC, op)
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		e.execBranchIcmp(f, instrPC, op)
	case OpIfAcmpeq, OpIfAcmpne:
		e.execBranchAcmp(f, instrPC, op)
	case OpIfnull, OpIfnonnull:
		e.execBranchNull(f, instrPC, op)
	case OpTableswitch:
		e.execTableswitch(f, instrPC)
	case OpLookupswitch:
		e.execLookupswitch(f, instrPC)
	case OpJsr, OpRet:
		return types.Value{}, false, fmt.Errorf("jsr/ret is unsupported (no javac since Java 6 emits it)")

	// --- Arithmetic, bitwise, conversions, comparisons ---
	case OpIadd, OpIsub, OpImul, OpIdiv, OpIrem, OpIneg,
		OpIshl, OpIshr, OpIushr, OpIand, OpIor, OpIxor:
		if err := e.execIntOp(f, op); err != nil {
			return types.Value{}, false, err
		}
	case OpLadd, OpLsub, OpLmul, OpLdiv, OpLrem, OpLneg,
		OpLshl, OpLshr, OpLushr, OpLand, OpLor, OpLxor:
		if err := e.execLongOp(f, op); err != nil {
			return types.Value{}, false, err
		}
	case OpFadd, OpFsub, OpFmul, OpFdiv, OpFrem, OpFneg:
		e.execFloatOp(f, op)
	case OpDadd, OpDsub, OpDmul, OpDdiv, OpDrem, OpDneg:
		e.execDoubleOp(f, op)
	case OpIinc:
		idx := int(f.ReadU8())
		delta := int32(f.ReadI8())
		v := f.GetLocal(idx)
		f.SetLocal(idx, types.IntValue(v.I32+delta))
	case OpI2l:
		f.PushWide(types.LongValue(int64(f.Pop().I32)))
	case OpI2f:
		f.Push(types.FloatValue(float32(f.Pop().I32)))
	case OpI2d:
		f.PushWide(types.DoubleValue(float64(f.Pop().I32)))
	case OpL2i:
		f.Push(types.IntValue(int32(f.PopWide().I64)))
	case OpL2f:
		f.Push(types.FloatValue(float32(f.PopWide().I64)))
	case OpL2d:
		f.PushWide(types.DoubleValue(float64(f.PopWide().I64)))
	case OpF2i:
		f.Push(types.IntValue(float32ToInt32(f.Pop().F32)))
	case OpF2l:
		f.PushWide(types.LongValue(float32ToInt64(f.Pop().F32)))
	case OpF2d:
		f.PushWide(types.DoubleValue(float64(f.Pop().F32)))
	case OpD2i:
		f.Push(types.IntValue(float64ToInt32(f.PopWide().F64)))
	case OpD2l:
		f.PushWide(types.LongValue(float64ToInt64(f.PopWide().F64)))
	case OpD2f:
		f.Push(types.FloatValue(float32(f.PopWide().F64)))
	case OpI2b:
		f.Push(types.IntValue(int32(int8(f.Pop().I32))))
	case OpI2c:
		f.Push(types.IntValue(int32(uint16(f.Pop().I32))))
	case OpI2s:
		f.Push(types.IntValue(int32(int16(f.Pop().I32))))
	case OpLcmp:
		v2 := f.PopWide().I64
		v1 := f.PopWide().I64
		f.Push(types.IntValue(compare64(v1, v2)))
	case OpFcmpl, OpFcmpg:
		v2 := f.Pop().F32
		v1 := f.Pop().F32
		f.Push(types.IntValue(compareFloat(float64(v1), float64(v2), op == OpFcmpg)))
	case OpDcmpl, OpDcmpg:
		v2 := f.PopWide().F64
		v1 := f.PopWide().F64
		f.Push(types.IntValue(compareFloat(v1, v2, op == OpDcmpg)))

	// --- Objects, arrays, fields ---
	case OpNew:
		if err := e.execNew(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpNewarray:
		if err := e.execNewarray(f, f.ReadU8()); err != nil {
			return types.Value{}, false, err
		}
	case OpAnewarray:
		if err := e.execAnewarray(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpArraylength:
		if err := e.execArraylength(f); err != nil {
			return types.Value{}, false, err
		}
	case OpGetfield:
		if err := e.execGetfield(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpPutfield:
		if err := e.execPutfield(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpGetstatic:
		if err := e.execGetstatic(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpPutstatic:
		if err := e.execPutstatic(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpCheckcast:
		if err := e.execCheckcast(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpInstanceof:
		if err := e.execInstanceof(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}

	// --- Invocation ---
	case OpInvokevirtual:
		if err := e.execInvokevirtual(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpInvokespecial:
		if err := e.execInvokespecial(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpInvokestatic:
		if err := e.execInvokestatic(f, f.ReadU16()); err != nil {
			return types.Value{}, false, err
		}
	case OpInvokeinterface:
		index := f.ReadU16()
		f.ReadU8() // count, redundant with the descriptor's own arg count
		f.ReadU8() // reserved zero byte
		if err := e.execInvokeinterface(f, index); err != nil {
			return types.Value{}, false, err
		}
	case OpInvokedynamic:
		// Non-goal: invokedynamic execution. The constant pool still
		// decodes its Dynamic/InvokeDynamic and BootstrapMethods shapes
		// (internal/classfile), so a class file carrying one links, but
		// actually reaching this opcode at runtime aborts cleanly rather
		// than silently doing nothing.
		f.ReadU16()
		f.ReadU8()
		f.ReadU8()
		return types.Value{}, false, fmt.Errorf("invokedynamic is not executed (non-goal)")

	// --- Returns ---
	case OpIreturn, OpFreturn, OpAreturn:
		return f.Pop(), true, nil
	case OpLreturn, OpDreturn:
		return f.PopWide(), true, nil
	case OpReturn:
		return types.Value{}, true, nil

	// --- Exceptions, monitors ---
	case OpAthrow:
		ref := f.Pop().Ref
		if ref == types.NullRef {
			return types.Value{}, false, e.throwNew("java/lang/NullPointerException", "")
		}
		return types.Value{}, false, e.raise(ref)
	case OpMonitorenter, OpMonitorexit:
		f.Pop() // no-op: this engine is single-threaded (non-goal)

	default:
		return types.Value{}, false, fmt.Errorf("%s.%s%s: unknown opcode 0x%02X at pc %d", f.Class.Name, f.Method.Name, f.Method.Descriptor, op, instrPC)
	}

	return types.Value{}, false, nil
}

// loadConstant resolves a constant-pool entry for ldc/ldc_w/ldc2_w.
func (e *Engine) loadConstant(f *Frame, index uint16) (types.Value, error) {
	pool := f.Class.File.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return types.Value{}, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		return types.IntValue(c.Value), nil
	case *classfile.ConstantFloat:
		return types.FloatValue(c.Value), nil
	case *classfile.ConstantLong:
		return types.LongValue(c.Value), nil
	case *classfile.ConstantDouble:
		return types.DoubleValue(c.Value), nil
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return types.Value{}, err
		}
		ref, err := e.NewString(s)
		if err != nil {
			return types.Value{}, err
		}
		return types.RefValue(ref), nil
	case *classfile.ConstantClass:
		name, err := classfile.GetClassName(pool, index)
		if err != nil {
			return types.Value{}, err
		}
		class, err := e.loadClassOrArray(name)
		if err != nil {
			return types.Value{}, err
		}
		ref, err := e.NewClassObject(class)
		if err != nil {
			return types.Value{}, err
		}
		return types.RefValue(ref), nil
	default:
		return types.Value{}, fmt.Errorf("ldc: unsupported constant pool tag %d at index %d", pool[index].Tag(), index)
	}
}

func (e *Engine) execBranchUnary(f *Frame, instrPC int, op uint8) {
	offset := f.ReadI16()
	v := f.Pop().I32
	var taken bool
	switch op {
	case OpIfeq:
		taken = v == 0
	case OpIfne:
		taken = v != 0
	case OpIflt:
		taken = v < 0
	case OpIfge:
		taken = v >= 0
	case OpIfgt:
		taken = v > 0
	case OpIfle:
		taken = v <= 0
	}
	if taken {
		f.PC = instrPC + int(offset)
	}
}

func (e *Engine) execBranchIcmp(f *Frame, instrPC int, op uint8) {
	offset := f.ReadI16()
	v2 := f.Pop().I32
	v1 := f.Pop().I32
	var taken bool
	switch op {
	case OpIfIcmpeq:
		taken = v1 == v2
	case OpIfIcmpne:
		taken = v1 != v2
	case OpIfIcmplt:
		taken = v1 < v2
	case OpIfIcmpge:
		taken = v1 >= v2
	case OpIfIcmpgt:
		taken = v1 > v2
	case OpIfIcmple:
		taken = v1 <= v2
	}
	if taken {
		f.PC = instrPC + int(offset)
	}
}

func (e *Engine) execBranchAcmp(f *Frame, instrPC int, op uint8) {
	offset := f.ReadI16()
	v2 := f.Pop().Ref
	v1 := f.Pop().Ref
	taken := v1 == v2
	if op == OpIfAcmpne {
		taken = !taken
	}
	if taken {
		f.PC = instrPC + int(offset)
	}
}

func (e *Engine) execBranchNull(f *Frame, instrPC int, op uint8) {
	offset := f.ReadI16()
	v := f.Pop().Ref
	taken := v == types.NullRef
	if op == OpIfnonnull {
		taken = !taken
	}
	if taken {
		f.PC = instrPC + int(offset)
	}
}

func (e *Engine) execTableswitch(f *Frame, instrPC int) {
	for f.PC%4 != 0 {
		f.PC++
	}
	defaultOffset := f.ReadI32()
	low := f.ReadI32()
	high := f.ReadI32()
	key := f.Pop().I32

	target := defaultOffset
	if key >= low && key <= high {
		for i := int32(0); i < key-low; i++ {
			f.ReadI32()
		}
		target = f.ReadI32()
	}
	f.PC = instrPC + int(target)
}

func (e *Engine) execLookupswitch(f *Frame, instrPC int) {
	for f.PC%4 != 0 {
		f.PC++
	}
	defaultOffset := f.ReadI32()
	npairs := f.ReadI32()
	key := f.Pop().I32

	target := defaultOffset
	for i := int32(0); i < npairs; i++ {
		match := f.ReadI32()
		offset := f.ReadI32()
		if match == key {
			target = offset
		}
	}
	f.PC = instrPC + int(target)
}

package vm

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/types"
)

// FrameState is a method activation's position in its lifecycle.
type FrameState int

const (
	FrameCreated FrameState = iota
	FrameRunning
	FrameReturning
	FrameUnwinding
	FrameDead
)

// Frame is one method activation: its locals, operand stack, program
// counter, and the class/method/code it is executing. A long or double
// local/stack value occupies two consecutive slots — the first holds
// the value, the second holds a KindHigh placeholder — matching the
// JVM spec's two-slot accounting so locals indices line up with
// `iload`/`lload`-style instructions without a separate width table.
type Frame struct {
	Class  *classloader.Class
	Method *classfile.MethodInfo
	Code   *classfile.CodeAttribute

	Locals       []types.Value
	OperandStack []types.Value
	SP           int
	PC           int

	State FrameState

	// Pending is the exception the frame propagates to its caller once
	// State is FrameUnwinding; it is NullRef otherwise.
	Pending types.Ref
}

// NewFrame allocates a frame sized for method's Code attribute.
func NewFrame(class *classloader.Class, method *classfile.MethodInfo) *Frame {
	code := method.Code
	maxLocals, maxStack := 0, 0
	if code != nil {
		maxLocals, maxStack = int(code.MaxLocals), int(code.MaxStack)
	}
	return &Frame{
		Class:        class,
		Method:       method,
		Code:         code,
		Locals:       make([]types.Value, maxLocals),
		OperandStack: make([]types.Value, maxStack),
		State:        FrameCreated,
	}
}

func (f *Frame) Push(v types.Value) {
	if f.SP >= len(f.OperandStack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d, max=%d", f.SP, len(f.OperandStack)))
	}
	f.OperandStack[f.SP] = v
	f.SP++
}

// PushWide pushes a long/double value followed by its KindHigh filler,
// matching the JVM's two-slot accounting for 64-bit computational types.
func (f *Frame) PushWide(v types.Value) {
	f.Push(v)
	f.Push(types.HighValue())
}

func (f *Frame) Pop() types.Value {
	if f.SP <= 0 {
		panic("operand stack underflow")
	}
	f.SP--
	return f.OperandStack[f.SP]
}

// PopWide pops a KindHigh filler followed by the long/double value
// underneath it, the mirror of PushWide.
func (f *Frame) PopWide() types.Value {
	high := f.Pop()
	if high.Kind != types.KindHigh {
		panic("expected KindHigh filler on top of stack")
	}
	return f.Pop()
}

func (f *Frame) Peek() types.Value {
	if f.SP <= 0 {
		panic("operand stack underflow")
	}
	return f.OperandStack[f.SP-1]
}

func (f *Frame) GetLocal(index int) types.Value {
	if index < 0 || index >= len(f.Locals) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.Locals)))
	}
	return f.Locals[index]
}

func (f *Frame) SetLocal(index int, v types.Value) {
	if index < 0 || index >= len(f.Locals) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.Locals)))
	}
	f.Locals[index] = v
}

// SetLocalWide stores a long/double value across locals[index] and
// locals[index+1], the latter set to KindHigh.
func (f *Frame) SetLocalWide(index int, v types.Value) {
	f.SetLocal(index, v)
	f.SetLocal(index+1, types.HighValue())
}

func (f *Frame) ReadU8() uint8 {
	v := f.Code.Code[f.PC]
	f.PC++
	return v
}

func (f *Frame) ReadI8() int8 {
	v := int8(f.Code.Code[f.PC])
	f.PC++
	return v
}

func (f *Frame) ReadU16() uint16 {
	v := uint16(f.Code.Code[f.PC])<<8 | uint16(f.Code.Code[f.PC+1])
	f.PC += 2
	return v
}

func (f *Frame) ReadI16() int16 {
	v := int16(f.Code.Code[f.PC])<<8 | int16(f.Code.Code[f.PC+1])
	f.PC += 2
	return v
}

func (f *Frame) ReadI32() int32 {
	v := int32(f.Code.Code[f.PC])<<24 | int32(f.Code.Code[f.PC+1])<<16 |
		int32(f.Code.Code[f.PC+2])<<8 | int32(f.Code.Code[f.PC+3])
	f.PC += 4
	return v
}

// CurrentLine reports the source line active at the frame's current PC,
// using the Code attribute's LineNumberTable.
func (f *Frame) CurrentLine() int {
	if f.Code == nil {
		return 0
	}
	return f.Code.LineForPC(f.PC)
}

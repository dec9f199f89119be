package vm

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/types"
)

// pushResult pushes a call's return value onto the caller's stack,
// wide for long/double descriptors, skipped entirely for void.
func pushResult(f *Frame, descriptor string, v types.Value) {
	if classfile.IsVoid(descriptor) {
		return
	}
	if v.Kind == types.KindLong || v.Kind == types.KindDouble {
		f.PushWide(v)
	} else {
		f.Push(v)
	}
}

func (e *Engine) execInvokevirtual(f *Frame, index uint16) error {
	mref, err := classfile.ResolveMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	args := popArgs(f, mref.Descriptor)
	recv := f.Pop().Ref
	if recv == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	recvClass, ok := e.Heap.Object(recv)
	if !ok {
		return fmt.Errorf("invokevirtual: %d is not an object", recv)
	}
	owner, method, err := e.resolveVirtual(recvClass.Name, mref.Name, mref.Descriptor)
	if err != nil {
		return err
	}
	result, err := e.invoke(owner, method, append([]types.Value{types.RefValue(recv)}, args...))
	if err != nil {
		return err
	}
	pushResult(f, mref.Descriptor, result)
	return nil
}

func (e *Engine) execInvokespecial(f *Frame, index uint16) error {
	mref, err := classfile.ResolveMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	args := popArgs(f, mref.Descriptor)
	recv := f.Pop().Ref
	if recv == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	owner, err := e.Loader.Load(mref.ClassName)
	if err != nil {
		return err
	}
	declarer, method, err := e.resolveSpecial(owner, mref.Name, mref.Descriptor)
	if err != nil {
		return err
	}
	result, err := e.invoke(declarer, method, append([]types.Value{types.RefValue(recv)}, args...))
	if err != nil {
		return err
	}
	pushResult(f, mref.Descriptor, result)
	return nil
}

func (e *Engine) execInvokestatic(f *Frame, index uint16) error {
	mref, err := classfile.ResolveMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	args := popArgs(f, mref.Descriptor)
	owner, method, err := e.resolveStatic(mref.ClassName, mref.Name, mref.Descriptor)
	if err != nil {
		return err
	}
	result, err := e.invoke(owner, method, args)
	if err != nil {
		return err
	}
	pushResult(f, mref.Descriptor, result)
	return nil
}

func (e *Engine) execInvokeinterface(f *Frame, index uint16) error {
	mref, err := classfile.ResolveInterfaceMethodref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	args := popArgs(f, mref.Descriptor)
	recv := f.Pop().Ref
	if recv == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	recvClass, ok := e.Heap.Object(recv)
	if !ok {
		return fmt.Errorf("invokeinterface: %d is not an object", recv)
	}
	owner, method, err := e.resolveInterface(recvClass.Name, mref.ClassName, mref.Name, mref.Descriptor)
	if err != nil {
		return err
	}
	result, err := e.invoke(owner, method, append([]types.Value{types.RefValue(recv)}, args...))
	if err != nil {
		return err
	}
	pushResult(f, mref.Descriptor, result)
	return nil
}

package vm

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/types"
)

// invoke runs method on class with args already in JVM calling-convention
// order (receiver first for instance methods), returning its result
// (zero Value for void). It is the single entry point every invoke*
// instruction, <clinit> driver, and Engine.Run funnels through.
func (e *Engine) invoke(class *classloader.Class, method *classfile.MethodInfo, args []types.Value) (types.Value, error) {
	if method.AccessFlags&classfile.AccNative != 0 {
		return e.invokeNative(class, method, args)
	}
	if method.Code == nil {
		return types.Value{}, fmt.Errorf("%s.%s%s has no Code attribute and is not native", class.Name, method.Name, method.Descriptor)
	}
	if len(e.frames) >= maxFrameDepth {
		return types.Value{}, e.throwNew("java/lang/StackOverflowError", "")
	}

	frame := NewFrame(class, method)
	bindArgs(frame, method.Descriptor, args)
	frame.State = FrameRunning

	e.pushFrame(frame)
	defer func() {
		frame.State = FrameDead
		e.popFrame()
	}()

	result, err := e.runFrame(frame)
	if err != nil {
		frame.State = FrameUnwinding
		if te, ok := err.(*thrown); ok {
			frame.Pending = te.Ref
		}
		return types.Value{}, err
	}
	frame.State = FrameReturning
	return result, nil
}

func (e *Engine) invokeNative(class *classloader.Class, method *classfile.MethodInfo, args []types.Value) (types.Value, error) {
	fn, ok := e.Natives.Lookup(class.Name, method.Name, method.Descriptor)
	if !ok {
		err := e.throwNew("java/lang/UnsatisfiedLinkError", "%s.%s%s", class.Name, method.Name, method.Descriptor)
		if _, isThrown := err.(*thrown); !isThrown {
			return types.Value{}, fmt.Errorf("no native implementation for %s.%s%s: %w", class.Name, method.Name, method.Descriptor, err)
		}
		return types.Value{}, err
	}
	return fn(e.nativeContext(), args)
}

// bindArgs copies args into a fresh frame's locals, widening long/double
// arguments across two slots the way invocation always has, regardless
// of how the caller popped them off its own operand stack.
func bindArgs(frame *Frame, descriptor string, args []types.Value) {
	idx := 0
	for _, a := range args {
		frame.SetLocal(idx, a)
		if a.Kind == types.KindLong || a.Kind == types.KindDouble {
			frame.SetLocal(idx+1, types.HighValue())
			idx += 2
		} else {
			idx++
		}
	}
}

// popArgs pops ParamCount(descriptor) JVM-level arguments off the
// caller's operand stack, in left-to-right order, skipping KindHigh
// fillers for wide arguments. The receiver (for instance calls) is not
// included; callers pop it separately after this returns.
func popArgs(frame *Frame, descriptor string) []types.Value {
	kinds := classfile.ParamKinds(descriptor)
	args := make([]types.Value, len(kinds))
	// Pop in reverse (stack order): the last parameter is on top.
	for i := len(kinds) - 1; i >= 0; i-- {
		kind := types.KindOfDescriptor(kinds[i])
		if kind == types.KindLong || kind == types.KindDouble {
			args[i] = frame.PopWide()
		} else {
			args[i] = frame.Pop()
		}
	}
	return args
}

// resolveVirtual dispatches name:descriptor against the *runtime* class
// of a receiver ref, per invokevirtual semantics (late binding through
// the vtable, never the static type at the call site).
func (e *Engine) resolveVirtual(receiverClassName string, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	class, err := e.Loader.Load(receiverClassName)
	if err != nil {
		return nil, nil, err
	}
	m, ok := class.ResolveVirtual(name, descriptor)
	if !ok {
		return nil, nil, fmt.Errorf("no virtual method %s%s found on %s", name, descriptor, receiverClassName)
	}
	return m.Owner, m.Info, nil
}

func (e *Engine) resolveInterface(receiverClassName string, ifaceName string, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	class, err := e.Loader.Load(receiverClassName)
	if err != nil {
		return nil, nil, err
	}
	iface, err := e.Loader.Load(ifaceName)
	if err != nil {
		return nil, nil, err
	}
	m, ok := class.ResolveInterface(iface, name, descriptor)
	if !ok {
		// Non-goal: no default-method synthesis. Fall back to a direct
		// vtable lookup, which covers the common case of an interface
		// method implemented by a concrete override that buildITables
		// could not line up (e.g. an abstract intermediate class).
		m, ok = class.ResolveVirtual(name, descriptor)
		if !ok {
			return nil, nil, fmt.Errorf("no interface method %s%s found on %s via %s", name, descriptor, receiverClassName, ifaceName)
		}
	}
	return m.Owner, m.Info, nil
}

func (e *Engine) resolveStatic(className, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	class, err := e.Loader.Load(className)
	if err != nil {
		return nil, nil, err
	}
	if err := e.initClass(class); err != nil {
		return nil, nil, err
	}
	for cur := class; cur != nil; cur = cur.Super {
		if m := cur.FindDeclaredMethod(name, descriptor); m != nil {
			return cur, m, nil
		}
	}
	return nil, nil, fmt.Errorf("no static method %s%s found on %s", name, descriptor, className)
}

func (e *Engine) resolveSpecial(class *classloader.Class, name, descriptor string) (*classloader.Class, *classfile.MethodInfo, error) {
	m, ok := class.ResolveSpecial(name, descriptor)
	if !ok {
		return nil, nil, fmt.Errorf("no method %s%s found on %s for invokespecial", name, descriptor, class.Name)
	}
	return m.Owner, m.Info, nil
}

package vm

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/types"
)

// thrown wraps a heap-allocated exception object propagating up the Go
// call stack while a frame unwinds. It is never constructed for an
// internal engine error (those stay plain Go errors and abort
// execution) — only for a real `athrow`, an implicit JVM exception
// (NullPointerException, ArrayIndexOutOfBoundsException, ...), or a
// native method that raised one.
type thrown struct {
	Ref       types.Ref
	ClassName string
}

func (t *thrown) Error() string {
	return fmt.Sprintf("uncaught %s", t.ClassName)
}

// raise wraps an already-constructed exception object for propagation.
func (e *Engine) raise(ref types.Ref) error {
	class, ok := e.Heap.Object(ref)
	name := "<unknown>"
	if ok {
		name = class.Name
	}
	e.Heap.Handles().Set("pendingException", ref)
	return &thrown{Ref: ref, ClassName: name}
}

// newException allocates and constructs an instance of className
// (loaded off the same classpath as user code — this engine ships no
// built-in exception classes), filling `detailMessage` when message is
// non-empty and the class carries that field, and snapshotting the
// current stack into the engine's side table the same way
// fillInStackTrace does for a real `new Foo()` thrown by bytecode.
func (e *Engine) newException(className, message string) (types.Ref, error) {
	class, err := e.Loader.Load(className)
	if err != nil {
		return types.NullRef, err
	}
	if err := e.initClass(class); err != nil {
		return types.NullRef, err
	}
	ref, err := e.Heap.Allocate(class)
	if err != nil {
		return types.NullRef, err
	}
	e.Heap.Handles().Set("pendingException", ref)
	if message != "" {
		if slot, ok := class.InstanceFieldSlot("detailMessage", "Ljava/lang/String;"); ok {
			msgRef, err := e.NewString(message)
			if err == nil {
				_ = e.Heap.SetField(ref, slot.Offset, types.RefValue(msgRef))
			}
		}
	}
	e.CaptureStackTrace(ref)
	return ref, nil
}

// throwNew constructs and raises className in one step, the shortcut
// every implicit-exception opcode (iaload bounds check, idiv by zero,
// checkcast mismatch, ...) uses.
func (e *Engine) throwNew(className, format string, args ...interface{}) error {
	ref, err := e.newException(className, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	return e.raise(ref)
}

// findHandler scans f's exception table for an entry covering pc whose
// catch type (or catch-all) is assignable from excRef's runtime class.
func (e *Engine) findHandler(f *Frame, pc int, excRef types.Ref) (*classfile.ExceptionHandler, bool) {
	if f.Code == nil {
		return nil, false
	}
	excClass, ok := e.Heap.Object(excRef)
	if !ok {
		return nil, false
	}
	for i := range f.Code.ExceptionHandlers {
		h := &f.Code.ExceptionHandlers[i]
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return h, true
		}
		catchName, err := classfile.GetClassName(f.Class.File.ConstantPool, h.CatchType)
		if err != nil {
			continue
		}
		catchClass, err := e.Loader.Load(catchName)
		if err != nil {
			continue
		}
		if excClass.AssignableTo(catchClass) {
			return h, true
		}
	}
	return nil, false
}

// tryHandle attempts to route err into f's exception table. It returns
// true (having mutated f's PC and operand stack to enter the handler)
// only for a *thrown with a matching entry; any other error — including
// an unmatched *thrown, which the caller then propagates to its own
// caller's frame — is left untouched.
func (e *Engine) tryHandle(f *Frame, pc int, err error) bool {
	te, ok := err.(*thrown)
	if !ok {
		return false
	}
	h, ok := e.findHandler(f, pc, te.Ref)
	if !ok {
		return false
	}
	f.SP = 0
	f.Push(types.RefValue(te.Ref))
	e.Heap.Handles().Set("pendingException", types.NullRef)
	f.PC = int(h.HandlerPC)
	return true
}

package vm

import (
	"io"

	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/heap"
	"github.com/minijvm/minijvm/internal/native"
	"github.com/minijvm/minijvm/internal/types"
)

// nativeContext exposes the engine to internal/native as a
// native.Context. A thin method, not a field, because native.Context's
// shape is native's to define and Engine already has same-named
// exported fields (Stdout, Heap) that would collide with identical
// method names.
func (e *Engine) nativeContext() native.Context { return e }

func (e *Engine) StdoutWriter() io.Writer { return e.Stdout }

func (e *Engine) HeapOps() *heap.Heap { return e.Heap }

func (e *Engine) LoadClass(name string) (*classloader.Class, error) {
	return e.Loader.Load(name)
}

// NewInstance allocates (and, if not already initialized, initializes)
// a class's instance storage without running any constructor —
// Class.newInstance's job is the no-arg <init> call the caller makes
// on the returned reference afterward, the same division of labor
// `new` + `invokespecial <init>` always has.
func (e *Engine) NewInstance(class *classloader.Class) (types.Ref, error) {
	if err := e.initClass(class); err != nil {
		return types.NullRef, err
	}
	return e.Heap.Allocate(class)
}

func (e *Engine) NewClassObject(class *classloader.Class) (types.Ref, error) {
	if ref, ok := e.classObjects[class]; ok {
		return ref, nil
	}
	classClass, err := e.Loader.Load("java/lang/Class")
	if err != nil {
		return types.NullRef, err
	}
	ref, err := e.Heap.Allocate(classClass)
	if err != nil {
		return types.NullRef, err
	}
	e.classObjects[class] = ref
	e.classOf[ref] = class
	return ref, nil
}

func (e *Engine) ClassOfObject(ref types.Ref) (*classloader.Class, bool) {
	c, ok := e.classOf[ref]
	return c, ok
}

// StackTrace snapshots the live frame stack top-down: the innermost
// (currently executing) frame first, each entry's line resolved
// through that frame's own LineNumberTable.
func (e *Engine) StackTrace() []native.StackElement {
	trace := make([]native.StackElement, 0, len(e.frames))
	for i := len(e.frames) - 1; i >= 0; i-- {
		f := e.frames[i]
		trace = append(trace, native.StackElement{
			ClassName:  f.Class.Name,
			MethodName: f.Method.Name,
			Line:       f.CurrentLine(),
		})
	}
	return trace
}

func (e *Engine) CaptureStackTrace(ref types.Ref) {
	e.stackTraces[ref] = e.StackTrace()
}

// StackTraceOf returns the trace captured for ref by CaptureStackTrace,
// if any.
func (e *Engine) StackTraceOf(ref types.Ref) ([]native.StackElement, bool) {
	trace, ok := e.stackTraces[ref]
	return trace, ok
}

func (e *Engine) Emit(s string) {
	e.emitted = append(e.emitted, s)
}

// Emitted returns every value tempPrint has collected so far, in order
// — the observable output spec.md's scenarios assert against.
func (e *Engine) Emitted() []string { return e.emitted }

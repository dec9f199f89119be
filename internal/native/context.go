package native

import (
	"io"

	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/heap"
	"github.com/minijvm/minijvm/internal/types"
)

// StackElement is one frame of a captured stack trace, the shape
// fillInStackTrace needs to build java.lang.StackTraceElement-
// equivalent data.
type StackElement struct {
	ClassName  string
	MethodName string
	Line       int
}

// Context is everything a native method body needs from the running
// engine, without internal/native importing internal/vm (which already
// imports internal/native to dispatch into it — Context breaks that
// cycle the same way an interface always does).
type Context interface {
	StdoutWriter() io.Writer
	HeapOps() *heap.Heap
	LoadClass(name string) (*classloader.Class, error)
	NewInstance(class *classloader.Class) (types.Ref, error)
	NewClassObject(class *classloader.Class) (types.Ref, error)
	ClassOfObject(ref types.Ref) (*classloader.Class, bool)
	NewString(s string) (types.Ref, error)
	StringValue(ref types.Ref) (string, bool)
	StackTrace() []StackElement
	CaptureStackTrace(ref types.Ref)
	Emit(s string)
}

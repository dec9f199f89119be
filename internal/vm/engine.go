// Package vm is the bytecode interpreter: it drives a call stack of
// Frames over classes produced by internal/classloader and objects
// allocated from internal/heap, dispatching through vtables/itables for
// virtual and interface calls and through internal/native for JDK
// methods this engine doesn't implement in bytecode.
package vm

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/heap"
	"github.com/minijvm/minijvm/internal/native"
	"github.com/minijvm/minijvm/internal/types"
)

// Engine ties together the class loader, heap, and native table into
// one executable JVM instance. One Engine runs one program; nothing
// about it is safe to share across concurrent Run calls.
type Engine struct {
	Loader  *classloader.Loader
	Heap    *heap.Heap
	Natives *native.Table
	Stdout  io.Writer
	Log     *zap.Logger

	frames     []*Frame
	stringData map[types.Ref]string

	// classObjects/classOf back java.lang.Class instances the same way
	// stringData backs java.lang.String instances: one heap object per
	// runtime Class for identity, its actual payload (which Class it
	// represents) kept engine-side rather than unpacked into real JDK
	// Class fields this engine never lays out.
	classObjects map[*classloader.Class]types.Ref
	classOf      map[types.Ref]*classloader.Class

	// stackTraces backs Throwable.fillInStackTrace the same way: a
	// snapshot of the frame stack at throw time, keyed by the exception
	// object's Ref, the "internal field the object model reserves, not
	// a real JDK field."
	stackTraces map[types.Ref][]native.StackElement

	// emitted collects tempPrint output for tests that observe a
	// program's behavior without a real stdout to scrape.
	emitted []string
}

// maxFrameDepth bounds call recursion; exceeding it raises
// StackOverflowError the same way a real JVM's bounded C stack does.
const maxFrameDepth = 2048

// New constructs an Engine. stdout and log are stored on the Engine
// (Stdout, Log); tempPrint output does not go to stdout but is
// collected through Emit and read back with Emitted, and the engine
// itself writes no log events (the loader and heap log through their
// own loggers).
func New(loader *classloader.Loader, h *heap.Heap, natives *native.Table, stdout io.Writer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		Loader:       loader,
		Heap:         h,
		Natives:      natives,
		Stdout:       stdout,
		Log:          log,
		stringData:   make(map[types.Ref]string),
		classObjects: make(map[*classloader.Class]types.Ref),
		classOf:      make(map[types.Ref]*classloader.Class),
		stackTraces:  make(map[types.Ref][]native.StackElement),
	}
	h.SetRoots(e.gcRoots)
	return e
}

// gcRoots enumerates every Value currently reachable from a live
// frame's operand stack and locals — the heap's collector calls this
// at every allocation safe point.
func (e *Engine) gcRoots() []types.Value {
	var roots []types.Value
	for _, f := range e.frames {
		roots = append(roots, f.Locals[:]...)
		roots = append(roots, f.OperandStack[:f.SP]...)
	}
	return roots
}

// Run loads mainClassName, initializes it, and executes its
// `public static void main(String[])`.
func (e *Engine) Run(mainClassName string, args []string) error {
	class, err := e.Loader.Load(mainClassName)
	if err != nil {
		return fmt.Errorf("loading main class %s: %w", mainClassName, err)
	}
	if err := e.initClass(class); err != nil {
		return fmt.Errorf("initializing main class %s: %w", mainClassName, err)
	}

	method := class.FindDeclaredMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("class %s has no main([Ljava/lang/String;)V method", mainClassName)
	}

	argsRef, err := e.buildStringArray(args)
	if err != nil {
		return fmt.Errorf("building argv array: %w", err)
	}

	_, err = e.invoke(class, method, []types.Value{types.RefValue(argsRef)})
	return err
}

// initClass drives the <clinit> pipeline, running bytecode through the
// engine itself (classloader only owns the state machine).
func (e *Engine) initClass(class *classloader.Class) error {
	return classloader.EnsureInitialized(class, func(c *classloader.Class) error {
		m := c.FindDeclaredMethod("<clinit>", "()V")
		if m == nil {
			return nil
		}
		_, err := e.invoke(c, m, nil)
		return err
	})
}

func (e *Engine) pushFrame(f *Frame) {
	e.frames = append(e.frames, f)
}

func (e *Engine) popFrame() {
	e.frames = e.frames[:len(e.frames)-1]
}

func (e *Engine) currentFrame() *Frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

// buildStringArray allocates a String[] on the heap for argv, used by
// Run to seed main's parameter.
func (e *Engine) buildStringArray(args []string) (types.Ref, error) {
	arrClass, err := e.Loader.LoadArrayClass("[Ljava/lang/String;")
	if err != nil {
		return types.NullRef, err
	}
	arr, err := e.Heap.AllocateArray(types.ElemRef, len(args), arrClass)
	if err != nil {
		return types.NullRef, err
	}
	for i, a := range args {
		s, err := e.NewString(a)
		if err != nil {
			return types.NullRef, err
		}
		if err := e.Heap.SetElement(arr, i, types.RefValue(s)); err != nil {
			return types.NullRef, err
		}
	}
	return arr, nil
}

// stringClass lazily loads java/lang/String, the one JDK class this
// engine constructs ad hoc rather than through bytecode (its contents
// live in the engine's stringData map, see NewString).
func (e *Engine) stringClass() (*classloader.Class, error) {
	return e.Loader.Load("java/lang/String")
}

// NewString allocates a java.lang.String instance wrapping s. The
// engine keeps the Go string in its stringData map keyed by the new
// Ref rather than unpacking it into a char[] object graph, the same
// shortcut the teacher's vm.go takes for its StringBuilder `_buffer`
// hack; the String object's own fields stay at their zero values.
func (e *Engine) NewString(s string) (types.Ref, error) {
	if ref, ok := e.Heap.Handles().Interned(s); ok {
		return ref, nil
	}
	class, err := e.stringClass()
	if err != nil {
		return types.NullRef, err
	}
	ref, err := e.Heap.Allocate(class)
	if err != nil {
		return types.NullRef, err
	}
	e.stringData[ref] = s
	e.Heap.Handles().Intern(s, ref)
	return ref, nil
}

// StringValue returns the Go string backing a java.lang.String ref
// created by NewString, used by natives such as tempPrint and
// Class.forName.
func (e *Engine) StringValue(ref types.Ref) (string, bool) {
	s, ok := e.stringData[ref]
	return s, ok
}

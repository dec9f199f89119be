// Package native implements the small set of JDK methods this engine
// cannot or does not execute as bytecode: methods marked ACC_NATIVE in
// the class file, resolved by (class, method, descriptor) the same way
// the teacher's vm.go keys its giant ad hoc native switch, but split
// out into a registrable table instead of being inlined into the
// interpreter's dispatch.
package native

import (
	"fmt"

	"github.com/minijvm/minijvm/internal/types"
)

// Func implements one native method. args are already in calling
// convention order, receiver first for instance methods.
type Func func(ctx Context, args []types.Value) (types.Value, error)

// Table is a (class, method, descriptor)-keyed registry of native
// implementations.
type Table struct {
	fns map[string]Func
}

func NewTable() *Table {
	t := &Table{fns: make(map[string]Func)}
	registerBuiltins(t)
	return t
}

func (t *Table) Register(class, method, descriptor string, fn Func) {
	t.fns[nativeKey(class, method, descriptor)] = fn
}

func (t *Table) Lookup(class, method, descriptor string) (Func, bool) {
	fn, ok := t.fns[nativeKey(class, method, descriptor)]
	return fn, ok
}

func nativeKey(class, method, descriptor string) string {
	return fmt.Sprintf("%s.%s:%s", class, method, descriptor)
}

// Package heap implements the interpreter's object space: a
// precisely-typed mark-sweep heap addressed only through opaque Ref
// handles, never raw pointers. Objects and arrays are Go records held
// in a table indexed by Ref and charged against a fixed byte budget;
// there is no contiguous slab and no bump pointer. Every slot a Ref can point at
// carries its own shape (object vs. array, and for arrays its element
// kind), so the collector never needs external type information to
// walk a live object.
package heap

import (
	"go.uber.org/zap"

	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/types"
)

// DefaultSlabSize is the byte budget the heap tries to stay under
// before triggering a collection. It bounds only the packed array
// payloads and a per-object/array accounting charge — not Go's own
// memory use for bookkeeping structures.
const DefaultSlabSize = 64 << 20 // 64 MiB

// RootsFunc is supplied by the engine: it must return every Value that
// is currently reachable from executing frames (operand stacks, locals)
// plus any value the engine is holding outside of a frame (e.g. the
// in-flight return value of a call in progress).
type RootsFunc func() []types.Value

// object is the heap representation of a class instance.
type object struct {
	class  *classloader.Class
	fields []types.Value
	marked bool
}

func (o *object) size() int {
	return 16 + len(o.fields)*24
}

// array is the heap representation of a JVM array. Primitive-kind
// arrays pack their elements into data; ElemRef arrays store handles in
// refs instead.
type array struct {
	elemKind types.ElemKind
	class    *classloader.Class // synthetic array class, for instanceof/checkcast
	length   int
	data     []byte
	refs     []types.Ref
	marked   bool
}

func (a *array) size() int {
	return 16 + len(a.data) + len(a.refs)*4
}

// slot is either a live *object, a live *array, or nil for a free or
// never-used table entry.
type slot struct {
	obj *object
	arr *array
}

func (s slot) isFree() bool { return s.obj == nil && s.arr == nil }

// Heap is the collected object space shared by every thread of
// execution (the engine is currently single-threaded, so no internal
// locking is done here; a concurrent engine would need to serialize
// Allocate/Collect itself).
type Heap struct {
	slabSize int
	used     int

	table    []slot
	freeList []types.Ref

	roots   RootsFunc
	handles *HandleRegistry
	log     *zap.Logger

	collections int
}

// New creates an empty heap. SetRoots must be called before the first
// allocation that could trigger a collection, or a collection that
// finds no root provider simply reclaims everything unreachable from
// the handle registry alone.
func New(slabSize int, log *zap.Logger) *Heap {
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Heap{
		slabSize: slabSize,
		table:    make([]slot, 1, 1024), // index 0 is reserved for null
		log:      log,
	}
	h.handles = NewHandleRegistry()
	return h
}

func (h *Heap) SetRoots(fn RootsFunc) { h.roots = fn }

func (h *Heap) Handles() *HandleRegistry { return h.handles }

// Allocate creates a new instance of class, with every field defaulted
// per JVM spec (zeroed ints/floats, null references).
func (h *Heap) Allocate(class *classloader.Class) (types.Ref, error) {
	fields := make([]types.Value, class.InstanceSize)
	for i := range fields {
		fields[i] = types.ZeroValue(class.InstanceLayout[i].Kind)
	}
	o := &object{class: class, fields: fields}
	return h.insert(slot{obj: o}, o.size())
}

// AllocateArray creates a zero-filled array of the given element kind
// and length. elemClass is the array's own synthetic runtime class
// (e.g. "[I" or "[Ljava/lang/String;", see classloader.LoadArrayClass)
// — recorded on every array, not just ElemRef ones, so instanceof and
// checkcast against Object/Cloneable/Serializable work uniformly
// whether or not the array holds references. A nil elemClass is
// tolerated (ArrayClass then simply reports no class) but every call
// site in this engine passes a real one.
func (h *Heap) AllocateArray(elemKind types.ElemKind, length int, elemClass *classloader.Class) (types.Ref, error) {
	if length < 0 {
		return types.NullRef, NegativeArraySizeError{Length: length}
	}
	a := &array{elemKind: elemKind, length: length, class: elemClass}
	if elemKind == types.ElemRef {
		a.refs = make([]types.Ref, length)
	} else {
		a.data = make([]byte, length*elemKind.Size())
	}
	return h.insert(slot{arr: a}, a.size())
}

func (h *Heap) insert(s slot, size int) (types.Ref, error) {
	if h.used+size > h.slabSize {
		h.Collect()
	}
	if h.used+size > h.slabSize {
		return types.NullRef, OutOfMemoryError{}
	}

	if n := len(h.freeList); n > 0 {
		ref := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.table[ref] = s
		h.used += size
		return ref, nil
	}

	h.table = append(h.table, s)
	h.used += size
	return types.Ref(len(h.table) - 1), nil
}

// Object resolves ref to its live object, or ok=false if ref is null,
// stale, or points at an array.
func (h *Heap) Object(ref types.Ref) (*classloader.Class, bool) {
	o, ok := h.object(ref)
	if !ok {
		return nil, false
	}
	return o.class, true
}

func (h *Heap) object(ref types.Ref) (*object, bool) {
	if ref == types.NullRef || int(ref) >= len(h.table) {
		return nil, false
	}
	return h.table[ref].obj, h.table[ref].obj != nil
}

func (h *Heap) array(ref types.Ref) (*array, bool) {
	if ref == types.NullRef || int(ref) >= len(h.table) {
		return nil, false
	}
	return h.table[ref].arr, h.table[ref].arr != nil
}

// IsArray reports whether ref points at an array.
func (h *Heap) IsArray(ref types.Ref) bool {
	_, ok := h.array(ref)
	return ok
}

// ArrayLength returns the length of the array at ref.
func (h *Heap) ArrayLength(ref types.Ref) (int, bool) {
	a, ok := h.array(ref)
	if !ok {
		return 0, false
	}
	return a.length, true
}

// ArrayElemKind reports the packed element kind of the array at ref.
func (h *Heap) ArrayElemKind(ref types.Ref) (types.ElemKind, bool) {
	a, ok := h.array(ref)
	if !ok {
		return 0, false
	}
	return a.elemKind, true
}

// ArrayClass returns the synthetic class recorded for an array of any
// element kind, used by instanceof/checkcast.
func (h *Heap) ArrayClass(ref types.Ref) (*classloader.Class, bool) {
	a, ok := h.array(ref)
	if !ok || a.class == nil {
		return nil, false
	}
	return a.class, true
}

// Stats reports simple bookkeeping counters useful for logging.
func (h *Heap) Stats() (used, slabSize, liveSlots, collections int) {
	return h.used, h.slabSize, len(h.table) - len(h.freeList) - 1, h.collections
}

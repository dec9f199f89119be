package heap

import (
	"go.uber.org/zap"

	"github.com/minijvm/minijvm/internal/types"
)

// Collect runs a full stop-the-world mark-sweep pass. The heap itself
// only invokes it from inside Allocate/AllocateArray (spec's "GC only at
// allocation safe points" rule); it is exported so tests can force a
// pass. There is no concurrent or incremental mode.
func (h *Heap) Collect() {
	h.collections++
	before := h.used

	var workset []types.Ref
	if h.roots != nil {
		for _, v := range h.roots() {
			if v.Kind == types.KindRef && v.Ref != types.NullRef {
				workset = append(workset, v.Ref)
			}
		}
	}
	workset = append(workset, h.handles.roots()...)

	h.markAll(workset)
	h.sweep()

	h.log.Debug("gc cycle",
		zap.Int("cycle", h.collections),
		zap.Int("bytes_before", before),
		zap.Int("bytes_after", h.used),
	)
}

// markAll walks the object graph from workset using an explicit stack
// (never the Go call stack), per spec's "iterative, not recursive"
// requirement — a deep Java object graph must not overflow the Go
// goroutine stack just because it overflowed the heap.
func (h *Heap) markAll(workset []types.Ref) {
	stack := append([]types.Ref(nil), workset...)
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref == types.NullRef || int(ref) >= len(h.table) {
			continue
		}

		s := h.table[ref]
		switch {
		case s.obj != nil:
			if s.obj.marked {
				continue
			}
			s.obj.marked = true
			for _, f := range s.obj.fields {
				if f.Kind == types.KindRef && f.Ref != types.NullRef {
					stack = append(stack, f.Ref)
				}
			}
		case s.arr != nil:
			if s.arr.marked {
				continue
			}
			s.arr.marked = true
			if s.arr.elemKind == types.ElemRef {
				for _, r := range s.arr.refs {
					if r != types.NullRef {
						stack = append(stack, r)
					}
				}
			}
		}
	}
}

// sweep reclaims every unmarked slot, resetting mark bits on survivors
// for the next cycle and rebuilding the free list.
func (h *Heap) sweep() {
	h.used = 0
	h.freeList = h.freeList[:0]

	for i := 1; i < len(h.table); i++ {
		s := h.table[i]
		switch {
		case s.obj != nil:
			if s.obj.marked {
				s.obj.marked = false
				h.used += s.obj.size()
				continue
			}
			h.table[i] = slot{}
			h.freeList = append(h.freeList, types.Ref(i))
		case s.arr != nil:
			if s.arr.marked {
				s.arr.marked = false
				h.used += s.arr.size()
				continue
			}
			h.table[i] = slot{}
			h.freeList = append(h.freeList, types.Ref(i))
		}
	}
}

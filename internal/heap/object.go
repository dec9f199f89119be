package heap

import "github.com/minijvm/minijvm/internal/types"

// GetField reads instance field slot offset of the object at ref.
func (h *Heap) GetField(ref types.Ref, offset int) (types.Value, error) {
	o, ok := h.object(ref)
	if !ok {
		return types.Value{}, InvalidRefError{Op: "getfield"}
	}
	if offset < 0 || offset >= len(o.fields) {
		return types.Value{}, InvalidRefError{Op: "getfield: offset out of range"}
	}
	return o.fields[offset], nil
}

// SetField writes instance field slot offset of the object at ref.
func (h *Heap) SetField(ref types.Ref, offset int, v types.Value) error {
	o, ok := h.object(ref)
	if !ok {
		return InvalidRefError{Op: "putfield"}
	}
	if offset < 0 || offset >= len(o.fields) {
		return InvalidRefError{Op: "putfield: offset out of range"}
	}
	o.fields[offset] = v
	return nil
}

// IdentityHash returns a stable per-object identity hash derived from
// its Ref, matching Object.hashCode's default contract (equal for the
// same object, need not relate to field contents). Ref values are
// never reused by a live object (freed slots go through the free list
// but are only reissued once the old object is unreachable), so this
// stays stable across a GC's lifetime the way spec's "Open Questions"
// resolution calls for.
func (h *Heap) IdentityHash(ref types.Ref) int32 {
	return int32(uint32(ref)*2654435761 + 1)
}

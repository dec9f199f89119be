package heap

import (
	"encoding/binary"
	"math"

	"github.com/minijvm/minijvm/internal/types"
)

// GetElement reads element index of the array at ref, widened to a
// Value the way every array load instruction (iaload, laload, ...)
// leaves it on the operand stack.
func (h *Heap) GetElement(ref types.Ref, index int) (types.Value, error) {
	a, ok := h.array(ref)
	if !ok {
		return types.Value{}, InvalidRefError{Op: "arrayload"}
	}
	if index < 0 || index >= a.length {
		return types.Value{}, IndexOutOfBoundsError{Index: index, Length: a.length}
	}

	if a.elemKind == types.ElemRef {
		return types.RefValue(a.refs[index]), nil
	}

	off := index * a.elemKind.Size()
	buf := a.data[off : off+a.elemKind.Size()]
	switch a.elemKind {
	case types.ElemBoolean, types.ElemByte:
		return types.IntValue(int32(int8(buf[0]))), nil
	case types.ElemChar:
		return types.IntValue(int32(binary.LittleEndian.Uint16(buf))), nil
	case types.ElemShort:
		return types.IntValue(int32(int16(binary.LittleEndian.Uint16(buf)))), nil
	case types.ElemInt:
		return types.IntValue(int32(binary.LittleEndian.Uint32(buf))), nil
	case types.ElemFloat:
		return types.FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case types.ElemLong:
		return types.LongValue(int64(binary.LittleEndian.Uint64(buf))), nil
	case types.ElemDouble:
		return types.DoubleValue(math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	default:
		return types.Value{}, InvalidRefError{Op: "arrayload: unknown element kind"}
	}
}

// SetElement writes element index of the array at ref.
func (h *Heap) SetElement(ref types.Ref, index int, v types.Value) error {
	a, ok := h.array(ref)
	if !ok {
		return InvalidRefError{Op: "arraystore"}
	}
	if index < 0 || index >= a.length {
		return IndexOutOfBoundsError{Index: index, Length: a.length}
	}

	if a.elemKind == types.ElemRef {
		a.refs[index] = v.Ref
		return nil
	}

	off := index * a.elemKind.Size()
	buf := a.data[off : off+a.elemKind.Size()]
	switch a.elemKind {
	case types.ElemBoolean, types.ElemByte:
		buf[0] = byte(v.I32)
	case types.ElemChar, types.ElemShort:
		binary.LittleEndian.PutUint16(buf, uint16(v.I32))
	case types.ElemInt:
		binary.LittleEndian.PutUint32(buf, uint32(v.I32))
	case types.ElemFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.F32))
	case types.ElemLong:
		binary.LittleEndian.PutUint64(buf, uint64(v.I64))
	case types.ElemDouble:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.F64))
	default:
		return InvalidRefError{Op: "arraystore: unknown element kind"}
	}
	return nil
}

// CopyElements implements the bulk-copy semantics System.arraycopy
// needs: a length-validated, overlap-safe range copy between two
// arrays of matching element kind.
func (h *Heap) CopyElements(src types.Ref, srcPos int, dst types.Ref, dstPos int, length int) error {
	sa, ok := h.array(src)
	if !ok {
		return InvalidRefError{Op: "arraycopy: src"}
	}
	da, ok := h.array(dst)
	if !ok {
		return InvalidRefError{Op: "arraycopy: dst"}
	}
	if sa.elemKind != da.elemKind {
		return InvalidRefError{Op: "arraycopy: element kind mismatch"}
	}
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		srcPos+length > sa.length || dstPos+length > da.length {
		return IndexOutOfBoundsError{Index: srcPos, Length: sa.length}
	}

	if sa.elemKind == types.ElemRef {
		copy(da.refs[dstPos:dstPos+length], sa.refs[srcPos:srcPos+length])
		return nil
	}
	sz := sa.elemKind.Size()
	copy(da.data[dstPos*sz:(dstPos+length)*sz], sa.data[srcPos*sz:(srcPos+length)*sz])
	return nil
}

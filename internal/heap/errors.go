package heap

import "fmt"

// OutOfMemoryError is returned when a collection still leaves no room
// for the requested allocation — the heap's analogue of
// java.lang.OutOfMemoryError.
type OutOfMemoryError struct{}

func (OutOfMemoryError) Error() string { return "heap: out of memory" }

// NegativeArraySizeError mirrors java.lang.NegativeArraySizeException,
// raised by newarray/anewarray on a negative length.
type NegativeArraySizeError struct {
	Length int
}

func (e NegativeArraySizeError) Error() string {
	return fmt.Sprintf("heap: negative array size: %d", e.Length)
}

// IndexOutOfBoundsError mirrors java.lang.ArrayIndexOutOfBoundsException.
type IndexOutOfBoundsError struct {
	Index, Length int
}

func (e IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("heap: array index out of bounds: index %d, length %d", e.Index, e.Length)
}

// InvalidRefError reports a use of a Ref that doesn't point at a live
// object or array of the expected shape — an internal invariant
// violation, never a condition user bytecode can trigger deliberately.
type InvalidRefError struct {
	Op string
}

func (e InvalidRefError) Error() string {
	return fmt.Sprintf("heap: invalid reference for %s", e.Op)
}

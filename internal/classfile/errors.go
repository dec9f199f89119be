package classfile

import "github.com/pkg/errors"

// FormatError is the structured kind behind every reader failure.
// The reader never returns a bare error: every failure mode in
// spec.md's "Failure modes" list gets one of these kinds, so the
// resolver and engine can map a read failure onto the right JVM
// error class (ClassFormatError, UnsupportedClassVersionError, ...).
type FormatError struct {
	Kind    FormatErrorKind
	Message string
}

type FormatErrorKind int

const (
	ErrShortRead FormatErrorKind = iota
	ErrBadMagic
	ErrUnsupportedVersion
	ErrConstantPoolIndex
	ErrUnknownTag
	ErrAttributeLength
)

func (e *FormatError) Error() string {
	return e.Message
}

func newFormatError(kind FormatErrorKind, msg string) error {
	return errors.WithStack(&FormatError{Kind: kind, Message: msg})
}

// KindOf unwraps err (through pkg/errors wrappers and fmt %w wrapping
// alike) to the FormatErrorKind it carries, if any.
func KindOf(err error) (FormatErrorKind, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

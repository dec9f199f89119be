package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags (JVM spec §4.4).
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries. The returned
// slice is 1-indexed: index 0 is always nil. Long/Double entries
// consume the slot after them (spec.md §3's two-slot invariant).
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading constant pool tag at index %d: %v", i, err))
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Utf8 length at index %d: %v", i, err))
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Utf8 bytes at index %d: %v", i, err))
			}
			pool[i] = &ConstantUtf8{Value: string(buf)}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Integer at index %d: %v", i, err))
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Float at index %d: %v", i, err))
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Long at index %d: %v", i, err))
			}
			pool[i] = &ConstantLong{Value: val}
			i++ // long occupies two constant pool slots

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Double at index %d: %v", i, err))
			}
			pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++ // double occupies two constant pool slots

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Class at index %d: %v", i, err))
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading String at index %d: %v", i, err))
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Fieldref at index %d: %v", i, err))
			}
			pool[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Methodref at index %d: %v", i, err))
			}
			pool[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading InterfaceMethodref at index %d: %v", i, err))
			}
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			nameIndex, descIndex, err := readRefPair(r)
			if err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading NameAndType at index %d: %v", i, err))
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			var refKind uint8
			if err := binary.Read(r, binary.BigEndian, &refKind); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading MethodHandle at index %d: %v", i, err))
			}
			var refIndex uint16
			if err := binary.Read(r, binary.BigEndian, &refIndex); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading MethodHandle at index %d: %v", i, err))
			}
			pool[i] = &ConstantMethodHandle{ReferenceKind: refKind, ReferenceIndex: refIndex}

		case TagMethodType:
			var descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading MethodType at index %d: %v", i, err))
			}
			pool[i] = &ConstantMethodType{DescriptorIndex: descIndex}

		case TagDynamic, TagInvokeDynamic:
			bsmIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading Dynamic/InvokeDynamic at index %d: %v", i, err))
			}
			pool[i] = &ConstantInvokeDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		default:
			return nil, newFormatError(ErrUnknownTag, fmt.Sprintf("unknown constant pool tag %d at index %d", tag, i))
		}
	}

	return pool, nil
}

func readRefPair(r io.Reader) (uint16, uint16, error) {
	var a, b uint16
	if err := binary.Read(r, binary.BigEndian, &a); err != nil {
		return 0, 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// GetUtf8 returns the UTF-8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid constant pool index %d", index))
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag()))
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid constant pool index %d", classIndex))
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not Class", classIndex))
	}
	return GetUtf8(pool, class.NameIndex)
}

func nameAndType(pool []ConstantPoolEntry, index uint16) (name, descriptor string, err error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid NameAndType index %d", index))
	}
	nat, ok := pool[index].(*ConstantNameAndType)
	if !ok {
		return "", "", newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not NameAndType", index))
	}
	name, err = GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef is the resolved (owner, name, descriptor) triple shared by
// Fieldref/Methodref/InterfaceMethodref.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid constant pool index %d", index))
	}
	mref, ok := pool[index].(*ConstantMethodref)
	if !ok {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not Methodref", index))
	}
	return resolveMemberRef(pool, mref.ClassIndex, mref.NameAndTypeIndex)
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid constant pool index %d", index))
	}
	mref, ok := pool[index].(*ConstantInterfaceMethodref)
	if !ok {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not InterfaceMethodref", index))
	}
	return resolveMemberRef(pool, mref.ClassIndex, mref.NameAndTypeIndex)
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("invalid constant pool index %d", index))
	}
	fref, ok := pool[index].(*ConstantFieldref)
	if !ok {
		return nil, newFormatError(ErrConstantPoolIndex, fmt.Sprintf("constant pool index %d is not Fieldref", index))
	}
	return resolveMemberRef(pool, fref.ClassIndex, fref.NameAndTypeIndex)
}

func resolveMemberRef(pool []ConstantPoolEntry, classIndex, natIndex uint16) (*MemberRef, error) {
	className, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := nameAndType(pool, natIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

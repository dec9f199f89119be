package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// maxSupportedMajor is the highest class file major version this reader
// accepts (major 51 == Java 7, per spec's stated scope).
const maxSupportedMajor = 51

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from r and returns its decoded structure.
// It never consults any class other than the one being read.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading magic number: %v", err))
	}
	if magic != classMagic {
		return nil, newFormatError(ErrBadMagic, fmt.Sprintf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic))
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading minor version: %v", err))
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading major version: %v", err))
	}
	if cf.MajorVersion > maxSupportedMajor {
		return nil, newFormatError(ErrUnsupportedVersion, fmt.Sprintf("class file major version %d unsupported (max %d)", cf.MajorVersion, maxSupportedMajor))
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading constant pool count: %v", err))
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading access flags: %v", err))
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading this_class: %v", err))
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading super_class: %v", err))
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading interfaces count: %v", err))
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := uint16(0); i < interfacesCount; i++ {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading interface %d: %v", i, err))
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading fields count: %v", err))
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading methods count: %v", err))
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading field %d access flags: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading field %d name index: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading field %d descriptor index: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading field %d attributes count: %v", i, err))
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}

		field := FieldInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
		for _, attr := range attrs {
			if attr.Name == "ConstantValue" && len(attr.Data) == 2 {
				idx := binary.BigEndian.Uint16(attr.Data)
				if int(idx) < len(pool) {
					field.ConstantValue = pool[idx]
				}
			}
		}

		fields[i] = field
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading method %d access flags: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading method %d name index: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading method %d descriptor index: %v", i, err))
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading method %d attributes count: %v", i, err))
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d attributes: %w", i, err)
		}

		m := MethodInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}

		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}

		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading attribute %d name index: %v", i, err))
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, newFormatError(ErrShortRead, fmt.Sprintf("reading attribute %d length: %v", i, err))
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("reading attribute %d data (%d bytes): %v", i, length, err))
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes a Code attribute body, including its
// exception table and (if present) a LineNumberTable attribute nested
// inside it — needed for fillInStackTrace to report source lines.
func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("Code attribute too short: %d bytes", len(data)))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if len(data) < 8+int(codeLength) {
		return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("Code attribute data too short for code_length %d", codeLength))
	}

	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])
	offset := 8 + int(codeLength)

	var handlers []ExceptionHandler
	if offset+2 > len(data) {
		return nil, newFormatError(ErrAttributeLength, "Code attribute missing exception table")
	}
	exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	handlers = make([]ExceptionHandler, exTableLen)
	for i := uint16(0); i < exTableLen; i++ {
		if offset+8 > len(data) {
			return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("exception table entry %d truncated", i))
		}
		handlers[i] = ExceptionHandler{
			StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
			EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
			HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
			CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
		}
		offset += 8
	}

	var lineNumbers []LineNumberEntry
	if offset+2 <= len(data) {
		attrCount := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		for i := uint16(0); i < attrCount; i++ {
			if offset+6 > len(data) {
				break
			}
			nameIndex := binary.BigEndian.Uint16(data[offset : offset+2])
			length := binary.BigEndian.Uint32(data[offset+2 : offset+6])
			offset += 6
			if offset+int(length) > len(data) {
				break
			}
			body := data[offset : offset+int(length)]
			offset += int(length)

			name, err := GetUtf8(pool, nameIndex)
			if err != nil {
				continue
			}
			if name == "LineNumberTable" {
				entries, err := parseLineNumberTable(body)
				if err != nil {
					return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
				}
				lineNumbers = append(lineNumbers, entries...)
			}
		}
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		LineNumbers:       lineNumbers,
	}, nil
}

func parseLineNumberTable(data []byte) ([]LineNumberEntry, error) {
	if len(data) < 2 {
		return nil, newFormatError(ErrAttributeLength, "LineNumberTable too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	entries := make([]LineNumberEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("LineNumberTable entry %d truncated", i))
		}
		entries = append(entries, LineNumberEntry{
			StartPC: binary.BigEndian.Uint16(data[offset : offset+2]),
			Line:    binary.BigEndian.Uint16(data[offset+2 : offset+4]),
		})
		offset += 4
	}
	return entries, nil
}

// parseClassAttributes reads the class file's top-level attribute
// table, capturing SourceFile and BootstrapMethods and discarding the
// rest (their bytes were already fully consumed, so nothing is left
// unread on the stream).
func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return newFormatError(ErrShortRead, fmt.Sprintf("reading class attributes count: %v", err))
	}
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return newFormatError(ErrShortRead, fmt.Sprintf("reading class attribute %d name index: %v", i, err))
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return newFormatError(ErrShortRead, fmt.Sprintf("reading class attribute %d length: %v", i, err))
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return newFormatError(ErrAttributeLength, fmt.Sprintf("reading class attribute %d data: %v", i, err))
		}
		name, err := GetUtf8(cf.ConstantPool, nameIndex)
		if err != nil {
			continue
		}
		switch name {
		case "BootstrapMethods":
			cf.BootstrapMethods, err = parseBootstrapMethods(data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		case "SourceFile":
			if len(data) == 2 {
				idx := binary.BigEndian.Uint16(data)
				if src, err := GetUtf8(cf.ConstantPool, idx); err == nil {
					cf.SourceFile = src
				}
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, newFormatError(ErrAttributeLength, "BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("BootstrapMethods truncated at method %d", i))
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, newFormatError(ErrAttributeLength, fmt.Sprintf("BootstrapMethods truncated at arg %d of method %d", j, i))
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

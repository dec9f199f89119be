package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	_, err := Parse(&buf)
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrBadMagic, kind)
}

func TestParseUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(classMagic))
	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint16(61)) // Java 17, above maxSupportedMajor

	_, err := Parse(&buf)
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrUnsupportedVersion, kind)
}

// TestParseSimpleClass hand-assembles the bytes of a class file
// equivalent to:
//
//	class Hello extends Object { static int add(int a, int b) { return a + b; } }
//
// A real compiler isn't available in this environment, so the reader
// is exercised against a byte sequence built field by field instead.
func TestParseSimpleClass(t *testing.T) {
	var buf bytes.Buffer
	write := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}
	utf8 := func(s string) {
		write(uint16(len(s)))
		buf.WriteString(s)
	}

	write(uint32(classMagic))
	write(uint16(0))
	write(uint16(51))

	// Constant pool, 1-indexed: 1..10
	write(uint16(11))
	write(uint8(TagUtf8))
	utf8("Hello") // 1
	write(uint8(TagClass))
	write(uint16(1)) // 2 -> Hello
	write(uint8(TagUtf8))
	utf8("java/lang/Object") // 3
	write(uint8(TagClass))
	write(uint16(3)) // 4 -> java/lang/Object
	write(uint8(TagUtf8))
	utf8("add") // 5
	write(uint8(TagUtf8))
	utf8("(II)I") // 6
	write(uint8(TagUtf8))
	utf8("Code") // 7
	write(uint8(TagUtf8))
	utf8("LineNumberTable") // 8
	write(uint8(TagUtf8))
	utf8("SourceFile") // 9
	write(uint8(TagUtf8))
	utf8("Hello.java") // 10

	write(uint16(AccPublic | AccSuper))
	write(uint16(2)) // this_class
	write(uint16(4)) // super_class
	write(uint16(0)) // interfaces_count

	write(uint16(0)) // fields_count

	// methods_count = 1: static int add(int, int)
	write(uint16(1))
	write(uint16(AccStatic | AccPublic))
	write(uint16(5)) // name "add"
	write(uint16(6)) // descriptor "(II)I"
	write(uint16(1)) // attributes_count

	code := []byte{0x1a, 0x1b, 0x60, 0xac} // iload_0 iload_1 iadd ireturn

	var lnt bytes.Buffer
	binary.Write(&lnt, binary.BigEndian, uint16(1)) // line_number_table_length
	binary.Write(&lnt, binary.BigEndian, uint16(0)) // start_pc
	binary.Write(&lnt, binary.BigEndian, uint16(3)) // line 3

	var codeBody bytes.Buffer
	binary.Write(&codeBody, binary.BigEndian, uint16(2))         // max_stack
	binary.Write(&codeBody, binary.BigEndian, uint16(2))         // max_locals
	binary.Write(&codeBody, binary.BigEndian, uint32(len(code))) // code_length
	codeBody.Write(code)
	binary.Write(&codeBody, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&codeBody, binary.BigEndian, uint16(1)) // attributes_count (Code's own attributes)
	binary.Write(&codeBody, binary.BigEndian, uint16(8)) // attribute name "LineNumberTable"
	binary.Write(&codeBody, binary.BigEndian, uint32(lnt.Len()))
	codeBody.Write(lnt.Bytes())

	write(uint16(7)) // method attribute name "Code"
	write(uint32(codeBody.Len()))
	buf.Write(codeBody.Bytes())

	// class-level attributes: SourceFile -> "Hello.java"
	write(uint16(1))
	write(uint16(9)) // attribute name "SourceFile"
	write(uint32(2))
	write(uint16(10)) // sourcefile_index -> "Hello.java"

	cf, err := Parse(&buf)
	require.NoError(t, err)

	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "Hello", name)

	super, err := cf.SuperClassName()
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", super)

	assert.Equal(t, "Hello.java", cf.SourceFile)
	assert.False(t, cf.IsInterface())

	m := cf.FindMethod("add", "(II)I")
	require.NotNil(t, m)
	require.NotNil(t, m.Code)
	assert.Equal(t, uint16(2), m.Code.MaxStack)
	assert.Equal(t, code, m.Code.Code)
	assert.Equal(t, 3, m.Code.LineForPC(0))
	assert.Equal(t, 3, m.Code.LineForPC(3))
}

func TestParamKindsAndReturnDescriptor(t *testing.T) {
	kinds := ParamKinds("(ILjava/lang/String;J[D)V")
	assert.Equal(t, []string{"I", "Ljava/lang/String;", "J", "[D"}, kinds)
	assert.Equal(t, 4, ParamCount("(ILjava/lang/String;J[D)V"))
	assert.Equal(t, "V", ReturnDescriptor("(ILjava/lang/String;J[D)V"))
	assert.True(t, IsVoid("()V"))
	assert.False(t, IsVoid("()I"))

	name, ok := ClassNameFromDescriptor("Ljava/lang/String;")
	require.True(t, ok)
	assert.Equal(t, "java/lang/String", name)

	_, ok = ClassNameFromDescriptor("I")
	assert.False(t, ok)

	assert.Equal(t, 2, ArrayDepth("[[I"))
	assert.Equal(t, "[I", ElementDescriptor("[[I"))
}

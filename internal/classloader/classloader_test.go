package classloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minijvm/minijvm/internal/classfile"
)

// memSource is an in-memory Source built directly from hand-assembled
// classfile.ClassFile values, used so vtable/itable/field-layout
// behavior can be tested without a real compiler.
type memSource struct {
	classes map[string]*classfile.ClassFile
}

func (m *memSource) Find(name string) (*classfile.ClassFile, error) {
	return m.classes[name], nil
}

// addClassRef appends a Utf8+Class constant pool pair for n and returns
// the Class entry's index.
func addClassRef(pool *[]classfile.ConstantPoolEntry, n string) uint16 {
	utf8Idx := uint16(len(*pool))
	*pool = append(*pool, &classfile.ConstantUtf8{Value: n})
	classIdx := uint16(len(*pool))
	*pool = append(*pool, &classfile.ConstantClass{NameIndex: utf8Idx})
	return classIdx
}

func newClassFile(name, super string, ifaces []string) *classfile.ClassFile {
	pool := []classfile.ConstantPoolEntry{nil}
	thisIdx := addClassRef(&pool, name)
	var superIdx uint16
	if super != "" {
		superIdx = addClassRef(&pool, super)
	}
	var ifaceIdx []uint16
	for _, i := range ifaces {
		ifaceIdx = append(ifaceIdx, addClassRef(&pool, i))
	}
	return &classfile.ClassFile{
		ConstantPool: pool,
		ThisClass:    thisIdx,
		SuperClass:   superIdx,
		Interfaces:   ifaceIdx,
	}
}

func TestLoadBuildsFieldLayoutWithInheritance(t *testing.T) {
	base := newClassFile("Base", "", nil)
	base.Fields = []classfile.FieldInfo{
		{Name: "x", Descriptor: "I"},
		{AccessFlags: classfile.AccStatic, Name: "counter", Descriptor: "I"},
	}

	derived := newClassFile("Derived", "Base", nil)
	derived.Fields = []classfile.FieldInfo{
		{Name: "y", Descriptor: "J"},
	}

	src := &memSource{classes: map[string]*classfile.ClassFile{
		"Base":    base,
		"Derived": derived,
	}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	d, err := loader.Load("Derived")
	require.NoError(t, err)

	require.Len(t, d.InstanceLayout, 2)
	assert.Equal(t, "x", d.InstanceLayout[0].Name)
	assert.Equal(t, "y", d.InstanceLayout[1].Name)
	assert.Equal(t, 2, d.InstanceSize)

	slot, ok := d.InstanceFieldSlot("y", "J")
	require.True(t, ok)
	assert.Equal(t, 1, slot.Offset)

	// Static fields are per-class, not inherited into Derived's own layout.
	assert.Empty(t, d.StaticLayout)
	base2, err := loader.Load("Base")
	require.NoError(t, err)
	assert.Len(t, base2.StaticLayout, 1)
}

func TestLoadCachesByName(t *testing.T) {
	cf := newClassFile("Solo", "", nil)
	src := &memSource{classes: map[string]*classfile.ClassFile{"Solo": cf}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	c1, err := loader.Load("Solo")
	require.NoError(t, err)
	c2, err := loader.Load("Solo")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestLoadClassNotFound(t *testing.T) {
	src := &memSource{classes: map[string]*classfile.ClassFile{}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	_, err = loader.Load("Missing")
	assert.Error(t, err)
}

func TestVTableOverride(t *testing.T) {
	base := newClassFile("Base", "", nil)
	base.Methods = []classfile.MethodInfo{
		{Name: "greet", Descriptor: "()V"},
		{AccessFlags: classfile.AccStatic, Name: "<clinit>", Descriptor: "()V"},
	}
	derived := newClassFile("Derived", "Base", nil)
	derived.Methods = []classfile.MethodInfo{
		{Name: "greet", Descriptor: "()V"}, // overrides Base.greet
	}

	src := &memSource{classes: map[string]*classfile.ClassFile{
		"Base":    base,
		"Derived": derived,
	}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	d, err := loader.Load("Derived")
	require.NoError(t, err)

	m, ok := d.ResolveVirtual("greet", "()V")
	require.True(t, ok)
	assert.Equal(t, d, m.Owner)

	b, err := loader.Load("Base")
	require.NoError(t, err)
	bm, ok := b.ResolveVirtual("greet", "()V")
	require.True(t, ok)
	assert.Equal(t, b, bm.Owner)

	// <clinit> is never vtable-dispatched.
	_, ok = d.ResolveVirtual("<clinit>", "()V")
	assert.False(t, ok)
}

func TestInterfaceDispatch(t *testing.T) {
	iface := newClassFile("Greeter", "", nil)
	iface.AccessFlags = classfile.AccInterface | classfile.AccAbstract
	iface.Methods = []classfile.MethodInfo{
		{AccessFlags: classfile.AccAbstract | classfile.AccPublic, Name: "greet", Descriptor: "()V"},
	}

	impl := newClassFile("Impl", "", []string{"Greeter"})
	impl.Methods = []classfile.MethodInfo{
		{AccessFlags: classfile.AccPublic, Name: "greet", Descriptor: "()V"},
	}

	src := &memSource{classes: map[string]*classfile.ClassFile{
		"Greeter": iface,
		"Impl":    impl,
	}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	implClass, err := loader.Load("Impl")
	require.NoError(t, err)
	ifaceClass, err := loader.Load("Greeter")
	require.NoError(t, err)

	assert.True(t, implClass.Implements(ifaceClass))
	assert.True(t, implClass.AssignableTo(ifaceClass))

	m, ok := implClass.ResolveInterface(ifaceClass, "greet", "()V")
	require.True(t, ok)
	assert.Equal(t, implClass, m.Owner)
}

func TestCyclicHierarchyDetected(t *testing.T) {
	a := newClassFile("A", "B", nil)
	b := newClassFile("B", "A", nil)
	src := &memSource{classes: map[string]*classfile.ClassFile{"A": a, "B": b}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	_, err = loader.Load("A")
	assert.Error(t, err)
}

func TestInitStateMachine(t *testing.T) {
	cf := newClassFile("Config", "", nil)
	src := &memSource{classes: map[string]*classfile.ClassFile{"Config": cf}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	c, err := loader.Load("Config")
	require.NoError(t, err)
	assert.False(t, c.Initialized())

	ran := 0
	err = EnsureInitialized(c, func(cls *Class) error {
		ran++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.True(t, c.Initialized())

	// A second EnsureInitialized must not re-run <clinit>.
	err = EnsureInitialized(c, func(cls *Class) error {
		ran++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestInitStateMachineSticksOnError(t *testing.T) {
	cf := newClassFile("Bad", "", nil)
	src := &memSource{classes: map[string]*classfile.ClassFile{"Bad": cf}}
	loader, err := New([]Source{src}, nil)
	require.NoError(t, err)

	c, err := loader.Load("Bad")
	require.NoError(t, err)

	boom := assert.AnError
	err = EnsureInitialized(c, func(cls *Class) error { return boom })
	assert.ErrorIs(t, err, boom)

	// Every later attempt must fail the same way without re-running.
	ran := false
	err = EnsureInitialized(c, func(cls *Class) error { ran = true; return nil })
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

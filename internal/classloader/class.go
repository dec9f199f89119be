package classloader

import (
	"sync"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/types"
)

// InitState tracks a class's position in the <clinit> state machine
// (JVM spec §5.5). A class is touched by at most one goroutine at a
// time in this engine (single-threaded interpreter loop); the mutex
// only serializes state transitions. Re-entrant initialization
// triggered from within a <clinit> itself (e.g. a static field whose
// initializer allocates an instance of its own class) is handled by
// the StateInitializing check in BeginInit, not by the mutex.
type InitState int

const (
	StateUninitialized InitState = iota
	StateInitializing
	StateReady
	StateErrored
)

// Method is a resolved, owner-qualified method: the class that
// declares it plus its parsed bytecode. Interfaces and abstract
// classes contribute entries with Info.Code == nil.
type Method struct {
	Owner *Class
	Info  *classfile.MethodInfo
}

func (m *Method) IsAbstract() bool {
	return m.Info.AccessFlags&classfile.AccAbstract != 0
}

func (m *Method) IsStatic() bool {
	return m.Info.AccessFlags&classfile.AccStatic != 0
}

// FieldSlot describes one field's storage location.
type FieldSlot struct {
	Name       string
	Descriptor string
	Kind       types.Kind
	Offset     int
	AccessFlags uint16
	Declarer   *Class
}

func (f *FieldSlot) IsStatic() bool {
	return f.AccessFlags&classfile.AccStatic != 0
}

// Class is a loaded, linked runtime class. It is built once by Link and
// never mutated afterward except for StaticValues (written during
// <clinit> and by putstatic) and InitState.
type Class struct {
	Name        string
	File        *classfile.ClassFile
	AccessFlags uint16

	Super      *Class
	Interfaces []*Class

	// IsArray marks a synthetic array class (see LoadArrayClass) —
	// never backed by a .class file, so File is nil for these.
	IsArray bool

	// InstanceLayout lists every instance field, inherited fields from
	// Super first, in the same order the heap allocator will lay out an
	// object's slots. InstanceSize is the slot count to allocate.
	InstanceLayout []FieldSlot
	InstanceSize   int

	StaticLayout []FieldSlot
	StaticValues []types.Value

	// declared holds only this class's own methods, by "name:descriptor".
	declared map[string]*classfile.MethodInfo

	// VTable holds one slot per virtual method name:descriptor visible on
	// this class, overridden in place by subclasses that redeclare the
	// same signature — so a vtable slot index is stable across the whole
	// hierarchy once assigned by the root declarer.
	VTable      []*Method
	vtableIndex map[string]int

	// ITables maps each interface this class (transitively) implements to
	// the VTable-style slot list satisfying that interface's method order.
	ITables map[*Class][]*Method

	mu        sync.Mutex
	initState InitState
	initErr   error
}

// FindDeclaredMethod looks up a method declared directly on this class
// (no superclass/interface search), the way invokespecial resolves a
// constructor or private method call.
func (c *Class) FindDeclaredMethod(name, descriptor string) *classfile.MethodInfo {
	return c.declared[key(name, descriptor)]
}

// ResolveVirtual returns the vtable-dispatched method for name:descriptor,
// walking from this class (the call site's static type might be a
// superclass/interface; callers pass the *runtime* class of the receiver).
func (c *Class) ResolveVirtual(name, descriptor string) (*Method, bool) {
	idx, ok := c.vtableIndex[key(name, descriptor)]
	if !ok || idx >= len(c.VTable) {
		return nil, false
	}
	m := c.VTable[idx]
	if m == nil {
		return nil, false
	}
	return m, true
}

// ResolveInterface returns the itable-dispatched method for the given
// interface class and name:descriptor.
func (c *Class) ResolveInterface(iface *Class, name, descriptor string) (*Method, bool) {
	slots, ok := c.ITables[iface]
	if !ok {
		return nil, false
	}
	idx, ok := iface.vtableIndex[key(name, descriptor)]
	if !ok || idx >= len(slots) {
		return nil, false
	}
	m := slots[idx]
	if m == nil {
		return nil, false
	}
	return m, true
}

// ResolveSpecial looks up a method the way invokespecial does for a
// superclass call or a private/constructor call: starting at c itself
// and walking up the superclass chain, never through the vtable.
func (c *Class) ResolveSpecial(name, descriptor string) (*Method, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if info := cur.declared[key(name, descriptor)]; info != nil {
			return &Method{Owner: cur, Info: info}, true
		}
	}
	return nil, false
}

// IsSubclassOf reports whether c is class or a (transitive) subclass of it.
func (c *Class) IsSubclassOf(class *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == class {
			return true
		}
	}
	return false
}

// Implements reports whether c (transitively, via superclasses too)
// implements the given interface.
func (c *Class) Implements(iface *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if _, ok := cur.ITables[iface]; ok {
			return true
		}
	}
	return false
}

// AssignableTo is the general instanceof/checkcast test: true when a
// value of runtime type c can be used where target is expected.
func (c *Class) AssignableTo(target *Class) bool {
	if target.IsInterface() {
		return c.Implements(target)
	}
	return c.IsSubclassOf(target)
}

func (c *Class) IsInterface() bool {
	return c.AccessFlags&classfile.AccInterface != 0
}

func (c *Class) IsAbstract() bool {
	return c.AccessFlags&classfile.AccAbstract != 0
}

func (c *Class) StaticFieldSlot(name, descriptor string) (*FieldSlot, bool) {
	for i := range c.StaticLayout {
		if c.StaticLayout[i].Name == name && c.StaticLayout[i].Descriptor == descriptor {
			return &c.StaticLayout[i], true
		}
	}
	return nil, false
}

func (c *Class) InstanceFieldSlot(name, descriptor string) (*FieldSlot, bool) {
	for i := range c.InstanceLayout {
		if c.InstanceLayout[i].Name == name && c.InstanceLayout[i].Descriptor == descriptor {
			return &c.InstanceLayout[i], true
		}
	}
	return nil, false
}

func key(name, descriptor string) string {
	return name + ":" + descriptor
}

package vm

import (
	"fmt"
	"strings"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/heap"
	"github.com/minijvm/minijvm/internal/types"
)

// loadClassOrArray resolves name through the ordinary class loader
// unless it is itself an array descriptor ("[I", "[Ljava/lang/String;"),
// in which case it goes through LoadArrayClass instead — Load would
// otherwise try (and fail) to find a .class file for it.
func (e *Engine) loadClassOrArray(name string) (*classloader.Class, error) {
	if strings.HasPrefix(name, "[") {
		return e.Loader.LoadArrayClass(name)
	}
	return e.Loader.Load(name)
}

// translateHeapError turns a heap package sentinel into the Java
// exception bytecode expects to see, or passes through anything else
// (an InvalidRefError, or a class-loading error bubbling out of a
// lazily-resolved field/method) unchanged — those aren't conditions
// user bytecode ever triggers on purpose.
func (e *Engine) translateHeapError(err error) error {
	switch ex := err.(type) {
	case heap.IndexOutOfBoundsError:
		return e.throwNew("java/lang/ArrayIndexOutOfBoundsException", "index %d out of bounds for length %d", ex.Index, ex.Length)
	case heap.NegativeArraySizeError:
		return e.throwNew("java/lang/NegativeArraySizeException", "%d", ex.Length)
	case heap.OutOfMemoryError:
		return e.throwNew("java/lang/OutOfMemoryError", "")
	default:
		return err
	}
}

func (e *Engine) execArrayLoad(f *Frame, wide bool) error {
	index := f.Pop().I32
	ref := f.Pop().Ref
	if ref == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	v, err := e.Heap.GetElement(ref, int(index))
	if err != nil {
		return e.translateHeapError(err)
	}
	if wide {
		f.PushWide(v)
	} else {
		f.Push(v)
	}
	return nil
}

func (e *Engine) execArrayStore(f *Frame, wide bool) error {
	var v types.Value
	if wide {
		v = f.PopWide()
	} else {
		v = f.Pop()
	}
	index := f.Pop().I32
	ref := f.Pop().Ref
	if ref == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	if err := e.Heap.SetElement(ref, int(index), v); err != nil {
		return e.translateHeapError(err)
	}
	return nil
}

func (e *Engine) execNew(f *Frame, index uint16) error {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	class, err := e.Loader.Load(name)
	if err != nil {
		return err
	}
	if err := e.initClass(class); err != nil {
		return err
	}
	ref, err := e.Heap.Allocate(class)
	if err != nil {
		return e.translateHeapError(err)
	}
	f.Push(types.RefValue(ref))
	return nil
}

// primitiveArrayLetters maps a primitive ElemKind (decoded from
// newarray's atype byte) to its array class descriptor letter, so every
// primitive array still gets the same kind of synthetic runtime class
// a reference array does rather than going through the heap with a nil
// class.
var primitiveArrayLetters = map[types.ElemKind]string{
	types.ElemBoolean: "Z",
	types.ElemChar:    "C",
	types.ElemFloat:   "F",
	types.ElemDouble:  "D",
	types.ElemByte:    "B",
	types.ElemShort:   "S",
	types.ElemInt:     "I",
	types.ElemLong:    "J",
}

func (e *Engine) execNewarray(f *Frame, atype uint8) error {
	elemKind, ok := types.NewarrayCode(atype)
	if !ok {
		return fmt.Errorf("newarray: unknown atype %d", atype)
	}
	length := f.Pop().I32
	arrClass, err := e.Loader.LoadArrayClass("[" + primitiveArrayLetters[elemKind])
	if err != nil {
		return err
	}
	ref, err := e.Heap.AllocateArray(elemKind, int(length), arrClass)
	if err != nil {
		return e.translateHeapError(err)
	}
	f.Push(types.RefValue(ref))
	return nil
}

func (e *Engine) execAnewarray(f *Frame, index uint16) error {
	componentName, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	length := f.Pop().I32

	var descriptor string
	if strings.HasPrefix(componentName, "[") {
		descriptor = "[" + componentName
	} else {
		descriptor = "[L" + componentName + ";"
	}
	arrClass, err := e.Loader.LoadArrayClass(descriptor)
	if err != nil {
		return err
	}
	ref, err := e.Heap.AllocateArray(types.ElemRef, int(length), arrClass)
	if err != nil {
		return e.translateHeapError(err)
	}
	f.Push(types.RefValue(ref))
	return nil
}

func (e *Engine) execArraylength(f *Frame) error {
	ref := f.Pop().Ref
	if ref == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	n, ok := e.Heap.ArrayLength(ref)
	if !ok {
		return fmt.Errorf("arraylength: %d is not an array", ref)
	}
	f.Push(types.IntValue(int32(n)))
	return nil
}

// resolveStaticField walks start's superclass chain looking for the
// declaring class of a static field — StaticLayout only ever holds a
// class's own static fields (unlike InstanceLayout, which is already
// flattened across the hierarchy by layoutFields), so putstatic/getstatic
// against a field actually declared higher up need this walk themselves.
func resolveStaticField(start *classloader.Class, name, descriptor string) (*classloader.Class, *classloader.FieldSlot, bool) {
	for cur := start; cur != nil; cur = cur.Super {
		if slot, ok := cur.StaticFieldSlot(name, descriptor); ok {
			return cur, slot, true
		}
	}
	return nil, nil, false
}

func (e *Engine) execGetstatic(f *Frame, index uint16) error {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := e.Loader.Load(ref.ClassName)
	if err != nil {
		return err
	}
	if err := e.initClass(owner); err != nil {
		return err
	}
	declarer, slot, ok := resolveStaticField(owner, ref.Name, ref.Descriptor)
	if !ok {
		return fmt.Errorf("getstatic: no static field %s:%s on %s", ref.Name, ref.Descriptor, ref.ClassName)
	}
	v := declarer.StaticValues[slot.Offset]
	if slot.Kind == types.KindLong || slot.Kind == types.KindDouble {
		f.PushWide(v)
	} else {
		f.Push(v)
	}
	return nil
}

func (e *Engine) execPutstatic(f *Frame, index uint16) error {
	ref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := e.Loader.Load(ref.ClassName)
	if err != nil {
		return err
	}
	if err := e.initClass(owner); err != nil {
		return err
	}
	declarer, slot, ok := resolveStaticField(owner, ref.Name, ref.Descriptor)
	if !ok {
		return fmt.Errorf("putstatic: no static field %s:%s on %s", ref.Name, ref.Descriptor, ref.ClassName)
	}
	var v types.Value
	if slot.Kind == types.KindLong || slot.Kind == types.KindDouble {
		v = f.PopWide()
	} else {
		v = f.Pop()
	}
	declarer.StaticValues[slot.Offset] = v
	return nil
}

func (e *Engine) execGetfield(f *Frame, index uint16) error {
	mref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := e.Loader.Load(mref.ClassName)
	if err != nil {
		return err
	}
	slot, ok := owner.InstanceFieldSlot(mref.Name, mref.Descriptor)
	if !ok {
		return fmt.Errorf("getfield: no instance field %s:%s on %s", mref.Name, mref.Descriptor, mref.ClassName)
	}
	objRef := f.Pop().Ref
	if objRef == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	v, err := e.Heap.GetField(objRef, slot.Offset)
	if err != nil {
		return e.translateHeapError(err)
	}
	if slot.Kind == types.KindLong || slot.Kind == types.KindDouble {
		f.PushWide(v)
	} else {
		f.Push(v)
	}
	return nil
}

func (e *Engine) execPutfield(f *Frame, index uint16) error {
	mref, err := classfile.ResolveFieldref(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := e.Loader.Load(mref.ClassName)
	if err != nil {
		return err
	}
	slot, ok := owner.InstanceFieldSlot(mref.Name, mref.Descriptor)
	if !ok {
		return fmt.Errorf("putfield: no instance field %s:%s on %s", mref.Name, mref.Descriptor, mref.ClassName)
	}
	var v types.Value
	if slot.Kind == types.KindLong || slot.Kind == types.KindDouble {
		v = f.PopWide()
	} else {
		v = f.Pop()
	}
	objRef := f.Pop().Ref
	if objRef == types.NullRef {
		return e.throwNew("java/lang/NullPointerException", "")
	}
	if err := e.Heap.SetField(objRef, slot.Offset, v); err != nil {
		return e.translateHeapError(err)
	}
	return nil
}

// isInstance implements both checkcast and instanceof's runtime test
// against a resolved target class, for either a plain object or an
// array reference.
func (e *Engine) isInstance(ref types.Ref, target *classloader.Class) bool {
	if e.Heap.IsArray(ref) {
		arrClass, ok := e.Heap.ArrayClass(ref)
		return ok && arrClass.AssignableTo(target)
	}
	class, ok := e.Heap.Object(ref)
	if !ok {
		return false
	}
	return class.AssignableTo(target)
}

func (e *Engine) execCheckcast(f *Frame, index uint16) error {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	target, err := e.loadClassOrArray(name)
	if err != nil {
		return err
	}
	ref := f.Peek().Ref
	if ref == types.NullRef {
		return nil
	}
	if !e.isInstance(ref, target) {
		var from string
		if class, ok := e.Heap.Object(ref); ok {
			from = class.Name
		} else if arrClass, ok := e.Heap.ArrayClass(ref); ok {
			from = arrClass.Name
		}
		return e.throwNew("java/lang/ClassCastException", "%s", classCastMessage(from, target.Name))
	}
	return nil
}

func (e *Engine) execInstanceof(f *Frame, index uint16) error {
	name, err := classfile.GetClassName(f.Class.File.ConstantPool, index)
	if err != nil {
		return err
	}
	target, err := e.loadClassOrArray(name)
	if err != nil {
		return err
	}
	ref := f.Pop().Ref
	if ref == types.NullRef {
		f.Push(types.IntValue(0))
		return nil
	}
	if e.isInstance(ref, target) {
		f.Push(types.IntValue(1))
	} else {
		f.Push(types.IntValue(0))
	}
	return nil
}

func classCastMessage(from, to string) string {
	return fmt.Sprintf("class %s cannot be cast to class %s", from, to)
}

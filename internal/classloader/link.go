package classloader

import (
	"github.com/pkg/errors"

	"github.com/minijvm/minijvm/internal/classfile"
	"github.com/minijvm/minijvm/internal/types"
)

// link resolves cf's superclass and interfaces (recursively loading
// them through the owning Loader), computes instance/static field
// layout, and builds the vtable and itable(s).
func (l *Loader) link(cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, errors.Wrap(err, "classloader: resolving this_class")
	}

	class := &Class{
		Name:        name,
		File:        cf,
		AccessFlags: cf.AccessFlags,
		declared:    make(map[string]*classfile.MethodInfo),
		vtableIndex: make(map[string]int),
		ITables:     make(map[*Class][]*Method),
	}

	superName, err := cf.SuperClassName()
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: resolving superclass of %s", name)
	}
	if superName != "" {
		super, err := l.Load(superName)
		if err != nil {
			return nil, errors.Wrapf(err, "classloader: loading superclass %s of %s", superName, name)
		}
		class.Super = super
	}

	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: resolving interfaces of %s", name)
	}
	for _, ifaceName := range ifaceNames {
		iface, err := l.Load(ifaceName)
		if err != nil {
			return nil, errors.Wrapf(err, "classloader: loading interface %s of %s", ifaceName, name)
		}
		class.Interfaces = append(class.Interfaces, iface)
	}

	layoutFields(class, cf)
	for i := range class.StaticLayout {
		class.StaticValues[i] = types.ZeroValue(class.StaticLayout[i].Kind)
	}

	registerMethods(class, cf)
	buildVTable(class, cf)
	buildITables(class)

	return class, nil
}

// layoutFields assigns instance fields contiguous slot offsets,
// inherited fields first (so a subclass object's prefix is
// layout-compatible with its superclass, matching how every real JVM
// lays out objects), followed by this class's own declared fields.
// Static fields get their own, unrelated, per-class slot array.
func layoutFields(class *Class, cf *classfile.ClassFile) {
	if class.Super != nil {
		class.InstanceLayout = append(class.InstanceLayout, class.Super.InstanceLayout...)
	}
	offset := len(class.InstanceLayout)

	for _, f := range cf.Fields {
		slot := FieldSlot{
			Name:        f.Name,
			Descriptor:  f.Descriptor,
			Kind:        types.KindOfDescriptor(f.Descriptor),
			AccessFlags: f.AccessFlags,
			Declarer:    class,
		}
		if f.AccessFlags&classfile.AccStatic != 0 {
			slot.Offset = len(class.StaticLayout)
			class.StaticLayout = append(class.StaticLayout, slot)
		} else {
			slot.Offset = offset
			offset++
			class.InstanceLayout = append(class.InstanceLayout, slot)
		}
	}

	class.InstanceSize = offset
	class.StaticValues = make([]types.Value, len(class.StaticLayout))
}

func registerMethods(class *Class, cf *classfile.ClassFile) {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		class.declared[key(m.Name, m.Descriptor)] = m
	}
}

// isVirtual reports whether a method participates in vtable dispatch:
// neither static, private, a constructor, nor the class initializer.
func isVirtual(m *classfile.MethodInfo) bool {
	if m.AccessFlags&(classfile.AccStatic|classfile.AccPrivate) != 0 {
		return false
	}
	return m.Name != "<init>" && m.Name != "<clinit>"
}

func buildVTable(class *Class, cf *classfile.ClassFile) {
	if class.Super != nil {
		class.VTable = append(class.VTable, class.Super.VTable...)
		for k, idx := range class.Super.vtableIndex {
			class.vtableIndex[k] = idx
		}
	}

	// Interfaces encode "extends" as entries in their own interfaces
	// table, so an interface's method slots must fold in its
	// superinterfaces' slots the same way a class folds in its
	// superclass's, or buildITables would never see inherited abstract
	// methods when walking this interface's own VTable.
	if class.IsInterface() {
		for _, super := range class.Interfaces {
			for _, m := range super.VTable {
				k := key(m.Info.Name, m.Info.Descriptor)
				if _, ok := class.vtableIndex[k]; !ok {
					class.vtableIndex[k] = len(class.VTable)
					class.VTable = append(class.VTable, m)
				}
			}
		}
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		if !isVirtual(m) {
			continue
		}
		k := key(m.Name, m.Descriptor)
		entry := &Method{Owner: class, Info: m}
		if idx, ok := class.vtableIndex[k]; ok {
			class.VTable[idx] = entry // override
		} else {
			class.vtableIndex[k] = len(class.VTable)
			class.VTable = append(class.VTable, entry)
		}
	}
}

// buildITables computes, for every interface this class transitively
// implements, a slot list parallel to that interface's own vtable,
// populated with whichever of this class's concrete methods satisfies
// each interface method signature. Interfaces without a matching
// concrete method (an abstract class that doesn't fully implement one
// of its interfaces) get a nil slot; invokeinterface on such a slot is
// an AbstractMethodError at dispatch time, not a link-time failure.
func buildITables(class *Class) {
	seen := make(map[*Class]bool)
	var walk func(iface *Class)
	walk = func(iface *Class) {
		if seen[iface] {
			return
		}
		seen[iface] = true

		slots := make([]*Method, len(iface.VTable))
		for i, want := range iface.VTable {
			if concrete, ok := class.vtableIndex[key(want.Info.Name, want.Info.Descriptor)]; ok {
				slots[i] = class.VTable[concrete]
			}
		}
		class.ITables[iface] = slots

		for _, super := range iface.Interfaces {
			walk(super)
		}
	}

	for _, iface := range class.Interfaces {
		walk(iface)
	}
	if class.Super != nil {
		for iface := range class.Super.ITables {
			walk(iface)
		}
	}
}

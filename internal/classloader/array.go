package classloader

import "github.com/minijvm/minijvm/internal/classfile"

// LoadArrayClass returns the synthetic runtime Class for an array type
// named by its JVM descriptor ("[I", "[Ljava/lang/String;", "[[I", ...).
// Array types are never backed by a .class file — resolving them
// through Source would fail every time — so this builds one directly:
// super java/lang/Object, implementing Cloneable and Serializable,
// final, with no declared methods of its own. That keeps instanceof
// and checkcast against Object/Cloneable/Serializable and against the
// array's own descriptor going through the ordinary class-hierarchy
// rules (AssignableTo/Implements) instead of the rest of the engine
// needing to special-case arrays.
func (l *Loader) LoadArrayClass(descriptor string) (*Class, error) {
	if c, ok := l.arrayClasses[descriptor]; ok {
		return c, nil
	}

	object, err := l.Load("java/lang/Object")
	if err != nil {
		return nil, err
	}

	class := &Class{
		Name:        descriptor,
		AccessFlags: classfile.AccPublic | classfile.AccFinal,
		Super:       object,
		IsArray:     true,
		declared:    make(map[string]*classfile.MethodInfo),
		vtableIndex: make(map[string]int),
		ITables:     make(map[*Class][]*Method),
		VTable:      object.VTable,
	}
	for k, idx := range object.vtableIndex {
		class.vtableIndex[k] = idx
	}
	for _, ifaceName := range []string{"java/lang/Cloneable", "java/io/Serializable"} {
		if iface, err := l.Load(ifaceName); err == nil {
			class.Interfaces = append(class.Interfaces, iface)
		}
	}
	buildITables(class)
	class.initState = StateReady

	l.arrayClasses[descriptor] = class
	return class, nil
}

package classfile

import "strings"

// ParamCount returns the number of parameters declared by a method
// descriptor such as "(ILjava/lang/String;J)V" (a long or double counts
// once, not as two slots).
func ParamCount(descriptor string) int {
	return len(ParamKinds(descriptor))
}

// ParamKinds splits a method descriptor's parameter list into one
// descriptor-character string per parameter, in order. A long or double
// parameter yields a single entry here (it is the caller's job to know
// it occupies two stack/local slots).
func ParamKinds(descriptor string) []string {
	i := strings.IndexByte(descriptor, '(')
	j := strings.IndexByte(descriptor, ')')
	if i < 0 || j < 0 || j <= i {
		return nil
	}
	body := descriptor[i+1 : j]

	var kinds []string
	for k := 0; k < len(body); {
		start := k
		for body[k] == '[' {
			k++
		}
		switch body[k] {
		case 'L':
			for body[k] != ';' {
				k++
			}
			k++
		default:
			k++
		}
		kinds = append(kinds, body[start:k])
	}
	return kinds
}

// ReturnDescriptor returns the return-type portion of a method
// descriptor, e.g. "V" or "Ljava/lang/String;" or "[I".
func ReturnDescriptor(descriptor string) string {
	j := strings.IndexByte(descriptor, ')')
	if j < 0 || j+1 >= len(descriptor) {
		return "V"
	}
	return descriptor[j+1:]
}

// IsVoid reports whether a method descriptor's return type is void.
func IsVoid(descriptor string) bool {
	return ReturnDescriptor(descriptor) == "V"
}

// ArrayDepth counts the leading '[' characters of a field descriptor.
func ArrayDepth(descriptor string) int {
	depth := 0
	for depth < len(descriptor) && descriptor[depth] == '[' {
		depth++
	}
	return depth
}

// ElementDescriptor strips one level of array nesting, e.g. "[[I" -> "[I".
// Calling it on a non-array descriptor returns the descriptor unchanged.
func ElementDescriptor(descriptor string) string {
	if ArrayDepth(descriptor) == 0 {
		return descriptor
	}
	return descriptor[1:]
}

// ClassNameFromDescriptor strips the leading 'L' and trailing ';' from an
// object type descriptor, e.g. "Ljava/lang/String;" -> "java/lang/String".
// Returns ok=false for primitive or array descriptors.
func ClassNameFromDescriptor(descriptor string) (name string, ok bool) {
	if len(descriptor) < 3 || descriptor[0] != 'L' || descriptor[len(descriptor)-1] != ';' {
		return "", false
	}
	return descriptor[1 : len(descriptor)-1], true
}

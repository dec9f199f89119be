// Package classloader turns parsed class files from internal/classfile
// into linked, initializable runtime classes: it resolves super/interface
// names into class pointers, lays out instance and static fields, builds
// the vtable and itable used for virtual/interface dispatch, and runs
// <clinit> exactly once per class under a re-entrancy guard.
package classloader

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/minijvm/minijvm/internal/classfile"
)

// Source is one entry of a classpath: something that can be asked for
// the bytes of "com/example/Foo" and hand back a parsed class file.
// Ordering across multiple sources matters (first match wins), mirroring
// how the teacher's UserClassLoader delegates to a parent before
// consulting its own directory.
type Source interface {
	// Find parses and returns the named class, or (nil, nil) if this
	// source simply doesn't have it — not finding a class in one source
	// is not itself an error, only exhausting every source is.
	Find(name string) (*classfile.ClassFile, error)
}

// DirSource loads classes from a directory tree laid out the way javac
// emits them: package-qualified name "a/b/C" maps to "<root>/a/b/C.class".
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (s *DirSource) Find(name string) (*classfile.ClassFile, error) {
	path := filepath.Join(s.Root, filepath.FromSlash(name)+".class")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "classloader: stat %s", path)
	}
	cf, err := classfile.ParseFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: parsing %s", path)
	}
	return cf, nil
}

// ArchiveSource loads classes out of a JAR or JMOD file. JMODs carry a
// 4-byte "JM\x01\x00" header before the zip payload begins and store
// class files under "classes/"; JARs have neither, so the prefix and
// header are both detected rather than assumed.
type ArchiveSource struct {
	Path string

	reader *zip.Reader
	prefix string
}

func NewArchiveSource(path string) (*ArchiveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: opening archive %s", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: stat %s", path)
	}
	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, errors.Wrapf(err, "classloader: reading %s", path)
	}

	prefix := ""
	body := data
	if len(data) >= 4 && data[0] == 'J' && data[1] == 'M' {
		body = data[4:] // skip the jmod magic
		prefix = "classes/"
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, errors.Wrapf(err, "classloader: opening %s as zip", path)
	}

	return &ArchiveSource{Path: path, reader: zr, prefix: prefix}, nil
}

func (s *ArchiveSource) Find(name string) (*classfile.ClassFile, error) {
	target := s.prefix + name + ".class"
	for _, file := range s.reader.File {
		if file.Name != target {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "classloader: opening %s in %s", target, s.Path)
		}
		defer rc.Close()
		cf, err := classfile.Parse(rc)
		if err != nil {
			return nil, errors.Wrapf(err, "classloader: parsing %s in %s", name, s.Path)
		}
		return cf, nil
	}
	return nil, nil
}

package host

import "io"

// ---------------------------------------------------------------------------
// File objects
// ---------------------------------------------------------------------------

// File wraps a writer with the softspace flag the print ops use to insert
// separating spaces between printed items.
type File struct {
	w         io.Writer
	softspace int
}

// NewFile wraps a writer in an owned file object.
func NewFile(w io.Writer) *Object {
	return &Object{rc: 1, kind: KindFile, file: &File{w: w}}
}

// FileCheck reports whether v is a file object.
func FileCheck(v *Object) bool { return v != nil && v.kind == KindFile }

// FileWrite writes s to the file.
func (rt *Runtime) FileWrite(f *Object, s string) bool {
	if f.kind != KindFile {
		rt.SetError(TypeError, "expected a file object, got %s", f.kind.Name())
		return false
	}
	if _, err := io.WriteString(f.file.w, s); err != nil {
		rt.SetError(SystemError, "write failed: %v", err)
		return false
	}
	return true
}

// FileSoftspace returns the softspace flag and replaces it with v,
// mirroring the host file protocol used by the print ops.
func FileSoftspace(f *Object, v int) int {
	old := f.file.softspace
	f.file.softspace = v
	return old
}

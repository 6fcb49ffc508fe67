// Package vfs is the thin dispatcher that routes path-based operations to
// the mounted filesystem and exposes a uniform file/inode contract (spec
// §4.2). It holds a single filesystem-type registry and a root
// superblock; every operation forwards to the mounted filesystem by
// name. It does not cache content — caching is the filesystem's concern,
// the same division of labor distr1-distri's fuseFS draws between itself
// and the package store it serves.
package vfs

import (
	"sync"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/IRodriguez13/IR0-sub003/internal/minixfs"
)

// Mounted is the subset of a filesystem implementation the façade needs.
// minixfs.FS satisfies this today; a second filesystem type would too,
// without the façade changing.
type Mounted interface {
	Resolve(path string) (uint16, minixfs.Inode, error)
	Mkdir(path string, mode uint16) error
	Touch(path string, mode uint16) error
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Ls(path string) ([]minixfs.DirEntry, error)
	Unlink(path string) error
	Rmdir(path string) error
	Stat(path string) (minixfs.Stat, error)
}

// OpenFlag mirrors the subset of UNIX open(2) flags this kernel honors.
type OpenFlag int

const (
	OReadOnly OpenFlag = 1 << iota
	OWriteOnly
	OReadWrite
	OCreate
	OTruncate
)

// File is an open file handle: {inode reference, position, flags} exactly
// as spec §4.2 describes it.
type File struct {
	path  string
	inode uint16
	pos   int64
	flags OpenFlag
}

func (f *File) Inode() uint16 { return f.inode }
func (f *File) Pos() int64    { return f.pos }

// VFS is the root façade. A single instance owns the filesystem-type
// registry and the currently-mounted root.
type VFS struct {
	mu       sync.Mutex
	registry map[string]func() (Mounted, error)
	root     Mounted
}

// New returns an unmounted façade ready to accept filesystem-type
// registrations.
func New() *VFS {
	return &VFS{registry: make(map[string]func() (Mounted, error))}
}

// Register associates a filesystem type name (e.g. "minixfs") with a
// constructor, mirroring the verb-table dispatch idiom distr1-distri uses
// for its subcommands.
func (v *VFS) Register(name string, construct func() (Mounted, error)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.registry[name] = construct
}

// Mount looks up fsType in the registry, constructs it, and installs it as
// the root filesystem (spec §4.2 mount()).
func (v *VFS) Mount(fsType string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	construct, ok := v.registry[fsType]
	if !ok {
		return errkind.New("mount", errkind.NotSupported, nil)
	}
	fs, err := construct()
	if err != nil {
		return err
	}
	v.root = fs
	return nil
}

func (v *VFS) mounted() (Mounted, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.root == nil {
		return nil, errkind.New("vfs", errkind.InvalidArgument, nil)
	}
	return v.root, nil
}

// Open resolves path and returns a handle carrying {inode, position 0,
// flags}; OCreate creates a missing regular file first.
func (v *VFS) Open(path string, flags OpenFlag) (*File, error) {
	fs, err := v.mounted()
	if err != nil {
		return nil, err
	}
	num, _, err := fs.Resolve(path)
	if err != nil {
		if errkind.KindOf(err) == errkind.NotFound && flags&OCreate != 0 {
			if err := fs.Touch(path, 0o644); err != nil {
				return nil, err
			}
			num, _, err = fs.Resolve(path)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	if flags&OTruncate != 0 {
		if err := fs.WriteFile(path, nil); err != nil {
			return nil, err
		}
	}
	return &File{path: path, inode: num, pos: 0, flags: flags}, nil
}

// Read copies up to len(buf) bytes starting at f's current position and
// advances it, returning the number of bytes copied.
func (v *VFS) Read(f *File, buf []byte) (int, error) {
	fs, err := v.mounted()
	if err != nil {
		return 0, err
	}
	data, err := fs.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	if f.pos >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write overwrites f's file with the concatenation of its existing bytes
// up to f.pos and data, advancing the position by len(data). minixfs has
// no partial-block append primitive, so this reads-modifies-writes the
// whole file, same as the teacher's squashfs reader treats its backing
// store as append-only and rebuilds rather than patches in place.
func (v *VFS) Write(f *File, data []byte) (int, error) {
	fs, err := v.mounted()
	if err != nil {
		return 0, err
	}
	existing, err := fs.ReadFile(f.path)
	if err != nil && errkind.KindOf(err) != errkind.NotFound {
		return 0, err
	}
	if f.pos > int64(len(existing)) {
		pad := make([]byte, f.pos-int64(len(existing)))
		existing = append(existing, pad...)
	}
	merged := append(existing[:f.pos:f.pos], data...)
	if err := fs.WriteFile(f.path, merged); err != nil {
		return 0, err
	}
	f.pos += int64(len(data))
	return len(data), nil
}

// Close only rejects a nil handle; it does not check that f came from
// this façade. minixfs buffers nothing per-file, so there is nothing to
// flush.
func (v *VFS) Close(f *File) error {
	if f == nil {
		return errkind.New("close", errkind.InvalidArgument, nil)
	}
	return nil
}

// Lseek repositions f per whence (0=start, 1=current, 2=end, matching
// SEEK_SET/SEEK_CUR/SEEK_END).
func (v *VFS) Lseek(f *File, offset int64, whence int) (int64, error) {
	fs, err := v.mounted()
	if err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = f.pos
	case 2:
		st, err := fs.Stat(f.path)
		if err != nil {
			return 0, err
		}
		base = int64(st.Size)
	default:
		return 0, errkind.New("lseek", errkind.InvalidArgument, nil)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, errkind.New("lseek", errkind.InvalidArgument, nil)
	}
	f.pos = newPos
	return newPos, nil
}

func (v *VFS) Mkdir(path string, mode uint16) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	return fs.Mkdir(path, mode)
}

// Touch is the direct-path equivalent of Open(OCreate|OWriteOnly) for
// callers that only need the file to exist, not an open handle.
func (v *VFS) Touch(path string, mode uint16) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	return fs.Touch(path, mode)
}

// WriteFile and ReadFile are direct-path equivalents of Write/Read
// through an open handle, for callers (the initrd loader, the ELF
// loader) that already have whole-file contents in hand and don't need
// a File's position tracking.
func (v *VFS) WriteFile(path string, data []byte) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	return fs.WriteFile(path, data)
}

func (v *VFS) ReadFile(path string) ([]byte, error) {
	fs, err := v.mounted()
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(path)
}

func (v *VFS) Unlink(path string) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	return fs.Unlink(path)
}

func (v *VFS) Rmdir(path string) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	return fs.Rmdir(path)
}

func (v *VFS) Ls(path string) ([]minixfs.DirEntry, error) {
	fs, err := v.mounted()
	if err != nil {
		return nil, err
	}
	return fs.Ls(path)
}

func (v *VFS) Stat(path string) (minixfs.Stat, error) {
	fs, err := v.mounted()
	if err != nil {
		return minixfs.Stat{}, err
	}
	return fs.Stat(path)
}

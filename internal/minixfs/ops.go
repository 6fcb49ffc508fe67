package minixfs

import (
	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
)

// addDirEntry appends entry to dir's directory zones, reusing the first
// free slot found anywhere in an already-allocated zone; if every
// allocated zone is full, it grows into a freshly allocated zone (spec
// §8 boundary behavior: "must either grow into the next allocated zone
// or allocate a new one; never leak").
func (fs *FS) addDirEntry(dirNum uint16, dir *Inode, entry dirEntry) error {
	zones, err := fs.zonesOf(*dir)
	if err != nil {
		return err
	}
	for _, z := range zones {
		buf, err := fs.readBlock(uint32(z))
		if err != nil {
			return err
		}
		for i := 0; i < entriesPerZone; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(buf[off : off+DirEntrySize])
			if e.free() {
				copy(buf[off:off+DirEntrySize], encodeDirEntry(entry))
				return fs.writeBlock(z, buf)
			}
		}
	}

	// Every existing zone is full: allocate a new one and place the entry
	// at its first slot.
	newZone, err := fs.allocZone()
	if err != nil {
		return err
	}
	slot := -1
	for i := 0; i < directZones; i++ {
		if dir.Zone[i] == 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		fs.freeZone(newZone)
		return errkind.New("addDirEntry", errkind.OutOfSpace, nil)
	}
	dir.Zone[slot] = newZone
	if err := writeDirZone(fs, newZone, []dirEntry{entry}); err != nil {
		fs.freeZone(newZone)
		return err
	}
	return fs.writeInode(dirNum, *dir)
}

// clearDirEntry zeroes the slot matching name in dir, returning NotFound
// if name isn't present (spec §4.1 unlink()/rmdir()).
func (fs *FS) clearDirEntry(dir Inode, name string) error {
	zones, err := fs.zonesOf(dir)
	if err != nil {
		return err
	}
	for _, z := range zones {
		buf, err := fs.readBlock(uint32(z))
		if err != nil {
			return err
		}
		changed := false
		for i := 0; i < entriesPerZone; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(buf[off : off+DirEntrySize])
			if !e.free() && e.Name == name {
				copy(buf[off:off+DirEntrySize], encodeDirEntry(dirEntry{}))
				changed = true
				break
			}
		}
		if changed {
			return fs.writeBlock(z, buf)
		}
	}
	return errkind.New("clearDirEntry", errkind.NotFound, nil)
}

// Mkdir creates a new directory at path (spec §4.1 mkdir()).
func (fs *FS) Mkdir(path string, mode uint16) error {
	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" {
		return errkind.New("mkdir", errkind.InvalidArgument, nil) // root itself
	}
	if _, ok, err := fs.lookup(parent, name); err != nil {
		return err
	} else if ok {
		return errkind.New("mkdir", errkind.AlreadyExists, nil)
	}

	num, err := fs.allocInode()
	if err != nil {
		return err
	}
	zone, err := fs.allocZone()
	if err != nil {
		fs.freeInode(num)
		return err
	}

	dirInode := Inode{Mode: ModeDir | (mode & ModePermMask), Nlinks: 2, Mtime: nowUnix()}
	dirInode.Zone[0] = zone
	if err := writeDirZone(fs, zone, []dirEntry{
		{Inode: num, Name: "."},
		{Inode: parentNum, Name: ".."},
	}); err != nil {
		fs.freeZone(zone)
		fs.freeInode(num)
		return err
	}
	if err := fs.writeInode(num, dirInode); err != nil {
		fs.freeZone(zone)
		fs.freeInode(num)
		return err
	}

	if err := fs.addDirEntry(parentNum, &parent, dirEntry{Inode: num, Name: name}); err != nil {
		fs.freeZone(zone)
		fs.freeInode(num)
		return err
	}
	parent.Nlinks++
	parent.Mtime = nowUnix()
	if err := fs.writeInode(parentNum, parent); err != nil {
		return err
	}
	return fs.flushBitmaps()
}

// Touch creates path as an empty regular file if it doesn't exist, or
// updates its mtime if it does (spec §4.1 touch()).
func (fs *FS) Touch(path string, mode uint16) error {
	if num, in, err := fs.Resolve(path); err == nil {
		in.Mtime = nowUnix()
		return fs.writeInode(num, in)
	} else if errkind.KindOf(err) != errkind.NotFound {
		return err
	}

	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if name == "" {
		return errkind.New("touch", errkind.InvalidArgument, nil)
	}

	num, err := fs.allocInode()
	if err != nil {
		return err
	}
	fileInode := Inode{Mode: ModeRegular | (mode & ModePermMask), Nlinks: 1, Mtime: nowUnix()}
	if err := fs.writeInode(num, fileInode); err != nil {
		fs.freeInode(num)
		return err
	}
	if err := fs.addDirEntry(parentNum, &parent, dirEntry{Inode: num, Name: name}); err != nil {
		fs.freeInode(num)
		return err
	}
	parent.Mtime = nowUnix()
	if err := fs.writeInode(parentNum, parent); err != nil {
		return err
	}
	return fs.flushBitmaps()
}

// maxDirectFileSize is the largest write_file() will accept: 7 direct
// zones only (spec §4.1 write_file(): "reject payloads larger than 7 x
// block-size (direct zones only)").
const maxDirectFileSize = directZones * BlockSize

// WriteFile creates path if missing and overwrites its contents with
// data, spread across as many of the 7 direct zones as data needs (spec
// §4.1 write_file()). Zones beyond what the new length requires are
// freed so a shrinking overwrite doesn't leak space.
func (fs *FS) WriteFile(path string, data []byte) error {
	if len(data) > maxDirectFileSize {
		return errkind.New("write_file", errkind.Overflow, nil)
	}
	if err := fs.Touch(path, 0o644); err != nil {
		return err
	}
	num, in, err := fs.Resolve(path)
	if err != nil {
		return err
	}
	if !in.IsRegular() {
		return errkind.New("write_file", errkind.IsADirectory, nil)
	}

	needed := (len(data) + BlockSize - 1) / BlockSize
	for i := 0; i < directZones; i++ {
		switch {
		case i < needed && in.Zone[i] == 0:
			z, err := fs.allocZone()
			if err != nil {
				return err
			}
			in.Zone[i] = z
		case i >= needed && in.Zone[i] != 0:
			fs.freeZone(in.Zone[i])
			in.Zone[i] = 0
		}
	}

	buf := make([]byte, BlockSize)
	for i := 0; i < needed; i++ {
		lo := i * BlockSize
		hi := lo + BlockSize
		if hi > len(data) {
			hi = len(data)
		}
		for j := range buf {
			buf[j] = 0
		}
		copy(buf, data[lo:hi])
		if err := fs.writeBlock(uint32(in.Zone[i]), buf); err != nil {
			return err
		}
	}
	in.Size = uint32(len(data))
	in.Mtime = nowUnix()
	if err := fs.writeInode(num, in); err != nil {
		return err
	}
	return fs.flushBitmaps()
}

// ReadFile returns exactly in.Size bytes of path's content, walking
// direct zones then the single-indirect zone (spec §4.1 read_file()).
func (fs *FS) ReadFile(path string) ([]byte, error) {
	_, in, err := fs.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !in.IsRegular() {
		return nil, errkind.New("read_file", errkind.IsADirectory, nil)
	}

	zones, err := fs.zonesOf(in)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, in.Size)
	remaining := int(in.Size)
	for _, z := range zones {
		if remaining <= 0 {
			break
		}
		buf, err := fs.readBlock(uint32(z))
		if err != nil {
			return nil, err
		}
		n := remaining
		if n > BlockSize {
			n = BlockSize
		}
		out = append(out, buf[:n]...)
		remaining -= n
	}
	return out, nil
}

// DirEntry is the public shape of one listed entry (spec §4.1 ls()).
type DirEntry struct {
	Name   string
	Inode  uint16
	Mode   uint16
	Nlinks uint8
	Size   uint32
}

// Ls resolves path to a directory and returns its entries, skipping "."
// and "..", in the original on-disk order (spec §4.1 ls()).
func (fs *FS) Ls(path string) ([]DirEntry, error) {
	_, dir, err := fs.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, errkind.New("ls", errkind.NotADirectory, nil)
	}
	raw, err := fs.readDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		in, err := fs.readInode(e.Inode)
		if err != nil {
			return nil, err
		}
		out = append(out, DirEntry{Name: e.Name, Inode: e.Inode, Mode: in.Mode, Nlinks: in.Nlinks, Size: in.Size})
	}
	return out, nil
}

// Unlink removes a regular file's directory entry and frees its inode
// once nlinks reaches 0 (spec §4.1 unlink()).
func (fs *FS) Unlink(path string) error {
	num, in, err := fs.Resolve(path)
	if err != nil {
		return err
	}
	if in.IsDir() {
		return errkind.New("unlink", errkind.IsADirectory, nil)
	}
	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if err := fs.clearDirEntry(parent, name); err != nil {
		return err
	}
	parent.Mtime = nowUnix()
	if err := fs.writeInode(parentNum, parent); err != nil {
		return err
	}

	in.Nlinks--
	if in.Nlinks == 0 {
		for _, z := range in.Zone {
			fs.freeZone(z)
		}
		fs.freeInode(num)
		return fs.flushBitmaps()
	}
	return fs.writeInode(num, in)
}

// Rmdir removes an empty, non-root directory (spec §4.1 rmdir()).
func (fs *FS) Rmdir(path string) error {
	num, dir, err := fs.Resolve(path)
	if err != nil {
		return err
	}
	if num == RootInode {
		return errkind.New("rmdir", errkind.InvalidArgument, nil)
	}
	if !dir.IsDir() {
		return errkind.New("rmdir", errkind.NotADirectory, nil)
	}
	entries, err := fs.readDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			return errkind.New("rmdir", errkind.NotSupported, nil) // non-empty
		}
	}

	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if err := fs.clearDirEntry(parent, name); err != nil {
		return err
	}
	if parent.Nlinks > 2 {
		parent.Nlinks--
	}
	parent.Mtime = nowUnix()
	if err := fs.writeInode(parentNum, parent); err != nil {
		return err
	}

	zones, err := fs.zonesOf(dir)
	if err != nil {
		return err
	}
	for _, z := range zones {
		fs.freeZone(z)
	}
	fs.freeInode(num)
	return fs.flushBitmaps()
}

// Stat is the UNIX-shaped stat record spec §4.1 stat() produces.
type Stat struct {
	Mode   uint16
	UID    uint16
	GID    uint8
	Size   uint32
	Mtime  uint32
	Nlinks uint8
}

func (fs *FS) Stat(path string) (Stat, error) {
	_, in, err := fs.Resolve(path)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Mode: in.Mode, UID: in.UID, GID: in.GID, Size: in.Size, Mtime: in.Mtime, Nlinks: in.Nlinks}, nil
}

// Cat reads path and renders it the way a terminal would: printable
// bytes pass through, tabs expand to four spaces, newlines pass through
// (spec §4.1 cat()).
func (fs *FS) Cat(path string) (string, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch {
		case b == '\t':
			out = append(out, ' ', ' ', ' ', ' ')
		case b == '\n' || (b >= 0x20 && b < 0x7f):
			out = append(out, b)
		}
	}
	return string(out), nil
}

package minixfs

import (
	"strings"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
)

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// readDir returns every non-free directory entry across all of dir's
// allocated zones. The scan never stops at the first empty slot — spec §4.1
// "Directory scan halts when an empty slot is found only after exhausting
// all zones; this is necessary because earlier deletions may have created
// holes."
func (fs *FS) readDir(dir Inode) ([]dirEntry, error) {
	zones, err := fs.zonesOf(dir)
	if err != nil {
		return nil, err
	}
	var entries []dirEntry
	for _, z := range zones {
		buf, err := fs.readBlock(uint32(z))
		if err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerZone; i++ {
			e := decodeDirEntry(buf[i*DirEntrySize : (i+1)*DirEntrySize])
			if !e.free() {
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}

// lookup finds name among dir's entries.
func (fs *FS) lookup(dir Inode, name string) (uint16, bool, error) {
	entries, err := fs.readDir(dir)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inode, true, nil
		}
	}
	return 0, false, nil
}

// Resolve walks path component by component from the root, verifying
// every non-terminal component is a directory (spec §4.1 resolve()). A
// trailing slash or empty path resolves to the named directory itself.
func (fs *FS) Resolve(path string) (uint16, Inode, error) {
	num, in, err := fs.rootInode()
	if err != nil {
		return 0, Inode{}, err
	}

	comps := splitPath(path)
	for _, comp := range comps {
		if !in.IsDir() {
			return 0, Inode{}, errkind.New("resolve", errkind.NotADirectory, nil)
		}
		if comp == ".." {
			parent, ok, err := fs.lookup(in, "..")
			if err != nil {
				return 0, Inode{}, err
			}
			if !ok {
				return 0, Inode{}, errkind.New("resolve", errkind.NotFound, nil)
			}
			num = parent
		} else {
			child, ok, err := fs.lookup(in, comp)
			if err != nil {
				return 0, Inode{}, err
			}
			if !ok {
				return 0, Inode{}, errkind.New("resolve", errkind.NotFound, nil)
			}
			num = child
		}
		next, err := fs.readInode(num)
		if err != nil {
			return 0, Inode{}, err
		}
		in = next
	}
	return num, in, nil
}

// resolveParent splits path into (parent directory inode, base name),
// failing NotFound if the parent doesn't exist and NotADirectory if it
// isn't a directory.
func (fs *FS) resolveParent(path string) (uint16, Inode, string, error) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return 0, Inode{}, "", errkind.New("resolveParent", errkind.InvalidArgument, nil)
	}
	base := comps[len(comps)-1]
	parentPath := "/" + strings.Join(comps[:len(comps)-1], "/")
	num, in, err := fs.Resolve(parentPath)
	if err != nil {
		return 0, Inode{}, "", err
	}
	if !in.IsDir() {
		return 0, Inode{}, "", errkind.New("resolveParent", errkind.NotADirectory, nil)
	}
	return num, in, base, nil
}

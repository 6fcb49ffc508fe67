package minixfs

import (
	"bytes"
	"encoding/binary"
)

// onDiskDirEntry mirrors spec §6: 16-bit inode number (0 = free slot),
// 14-byte name, not NUL-terminated if exactly NameLen bytes (spec §3).
type onDiskDirEntry struct {
	Inode uint16
	Name  [NameLen]byte
}

// dirEntry is the in-memory counterpart.
type dirEntry struct {
	Inode uint16
	Name  string
}

func (d dirEntry) free() bool { return d.Inode == 0 }

func decodeDirEntry(b []byte) dirEntry {
	var d onDiskDirEntry
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &d)
	n := bytes.IndexByte(d.Name[:], 0)
	if n < 0 {
		n = NameLen
	}
	return dirEntry{Inode: d.Inode, Name: string(d.Name[:n])}
}

func encodeDirEntry(e dirEntry) []byte {
	var d onDiskDirEntry
	d.Inode = e.Inode
	copy(d.Name[:], e.Name) // truncates silently past NameLen, as callers validate beforehand
	buf := make([]byte, DirEntrySize)
	w := bytes.NewBuffer(buf[:0])
	_ = binary.Write(w, binary.LittleEndian, &d)
	return buf
}

// entriesPerZone is how many directory entries fit in one zone.
const entriesPerZone = BlockSize / DirEntrySize

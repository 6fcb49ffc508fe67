package minixfs

import (
	"bytes"
	"encoding/binary"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
)

// Mode bits, the MINIX/UNIX subset this kernel needs.
const (
	ModeDir     uint16 = 0o040000
	ModeRegular uint16 = 0o100000
	ModePermMask = 0o7777
)

// onDiskInode mirrors spec §6 exactly: 32 bytes, 9 zone slots (7 direct +
// 1 single-indirect + 1 double-indirect, though only the first 8 are
// used — spec §4.1 "only direct + single-indirect required").
type onDiskInode struct {
	Mode   uint16
	UID    uint16
	Size   uint32
	Mtime  uint32
	GID    uint8
	Nlinks uint8
	Zone   [numZones]uint16
}

// Inode is the in-memory copy of one inode record.
type Inode struct {
	Mode   uint16
	UID    uint16
	Size   uint32
	Mtime  uint32
	GID    uint8
	Nlinks uint8
	Zone   [numZones]uint16
}

func (in Inode) IsDir() bool     { return in.Mode&ModeDir != 0 }
func (in Inode) IsRegular() bool { return in.Mode&ModeRegular != 0 }
func (in Inode) Perm() uint16    { return in.Mode & ModePermMask }

func decodeInode(b []byte) (Inode, error) {
	var d onDiskInode
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &d); err != nil {
		return Inode{}, errkind.New("inode", errkind.IOError, err)
	}
	return Inode(d), nil
}

func encodeInode(in Inode) []byte {
	d := onDiskInode(in)
	buf := make([]byte, InodeSize)
	w := bytes.NewBuffer(buf[:0])
	_ = binary.Write(w, binary.LittleEndian, &d)
	return buf
}

// inodePosition returns the block number and byte offset within that
// block for inode num (1-based), per spec §4.1 "Inode position".
func (fs *FS) inodePosition(num uint16) (block uint32, offset uint32) {
	tableStart := uint32(fs.sb.inodeTableStart())
	idx := uint32(num-1) * InodeSize
	return tableStart + idx/BlockSize, idx % BlockSize
}

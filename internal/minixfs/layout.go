// Package minixfs implements the on-disk MINIX-style block filesystem
// described in spec §4.1 and §6: superblock, inode/zone bitmaps, inode
// table, directory entries, path resolution, and file/directory
// operations. Block size is fixed at 1024 bytes; on-disk integers are
// little-endian, exactly as spec §6 specifies.
package minixfs

import "github.com/IRodriguez13/IR0-sub003/internal/blockdev"

// BlockSize is the MINIX zone/block size in bytes.
const BlockSize = 1024

// sectorsPerBlock converts between the block device's sector size and the
// filesystem's block size (spec §6: "Two sectors per filesystem block").
const sectorsPerBlock = BlockSize / blockdev.SectorSize

// Fixed block layout (spec §4.1):
//
//	0: boot block (ignored)
//	1: superblock
//	2..2+imapBlocks-1: inode bitmap
//	2+imapBlocks..2+imapBlocks+zmapBlocks-1: zone bitmap
//	inode table starts at 2+imapBlocks+zmapBlocks
//	data zones start at firstDataZone
const (
	bootBlock   = 0
	superBlock  = 1
	imapStart   = 2
)

// Magic is the MINIX v1 superblock magic number.
const Magic = 0x137F

// Format-time constants (spec §4.1 format()).
const (
	defaultInodes     = 64
	defaultZones      = 1024
	defaultImapBlocks = 1
	defaultZmapBlocks = 1
)

// InodeSize is the on-disk size of one inode record (spec §6: 32 bytes).
const InodeSize = 32

// DirEntrySize is the on-disk size of one directory entry (spec §6: 16
// bytes: 16-bit inode number + 14-byte name).
const DirEntrySize = 16

// NameLen is the maximum directory entry name length; names are not
// NUL-terminated if exactly this long (spec §3).
const NameLen = 14

// RootInode is the fixed inode number of the root directory.
const RootInode = 1

// Zone numbers for single/double indirect blocks within inode.Zone.
const (
	directZones  = 7
	singleIndZ   = 7 // inode.Zone[7]
	doubleIndZ   = 8 // inode.Zone[8], unused (spec: "only direct + single-indirect required")
	numZones     = 9
)

// zonesPerIndirectBlock is how many 16-bit zone numbers fit in one
// indirect block.
const zonesPerIndirectBlock = BlockSize / 2

// MaxFileSize is the largest file representable using direct zones plus
// one level of single-indirection.
const MaxFileSize = (directZones+zonesPerIndirectBlock)*BlockSize

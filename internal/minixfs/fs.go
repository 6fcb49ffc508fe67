package minixfs

import (
	"time"

	"github.com/IRodriguez13/IR0-sub003/internal/blockdev"
	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
)

// FS is one mounted MINIX filesystem instance. It owns the inode/zone
// bitmaps and an inode cache exclusively (spec §3 Ownership).
type FS struct {
	dev blockdev.Device
	sb  superblock
	im  inodeBitmap
	zm  zoneBitmap

	// rootCache is the cached root-inode sentinel (spec §9 Design Notes):
	// invalidated on every write to any inode, the simpler and safe
	// option the notes call out over "invalidate on inode 1 only".
	rootCache    *Inode
	rootCacheNum uint16
}

func (fs *FS) readBlock(block uint32) ([]byte, error) {
	buf := make([]byte, BlockSize)
	lba := uint64(block) * sectorsPerBlock
	if err := fs.dev.ReadSectors(lba, sectorsPerBlock, buf); err != nil {
		return nil, errkind.New("readBlock", errkind.IOError, err)
	}
	return buf, nil
}

func (fs *FS) writeBlock(block uint32, data []byte) error {
	if len(data) != BlockSize {
		panic("minixfs: writeBlock requires exactly one block")
	}
	lba := uint64(block) * sectorsPerBlock
	if err := fs.dev.WriteSectors(lba, sectorsPerBlock, data); err != nil {
		return errkind.New("writeBlock", errkind.IOError, err)
	}
	return nil
}

func (fs *FS) readInode(num uint16) (Inode, error) {
	block, offset := fs.inodePosition(num)
	buf, err := fs.readBlock(block)
	if err != nil {
		return Inode{}, err
	}
	return decodeInode(buf[offset : offset+InodeSize])
}

func (fs *FS) writeInode(num uint16, in Inode) error {
	block, offset := fs.inodePosition(num)
	buf, err := fs.readBlock(block)
	if err != nil {
		return err
	}
	copy(buf[offset:offset+InodeSize], encodeInode(in))
	if err := fs.writeBlock(block, buf); err != nil {
		return err
	}
	fs.invalidateRootCache()
	return nil
}

func (fs *FS) invalidateRootCache() {
	fs.rootCache = nil
}

func (fs *FS) rootInode() (uint16, Inode, error) {
	if fs.rootCache != nil {
		return fs.rootCacheNum, *fs.rootCache, nil
	}
	in, err := fs.readInode(RootInode)
	if err != nil {
		return 0, Inode{}, err
	}
	fs.rootCacheNum = RootInode
	cp := in
	fs.rootCache = &cp
	return RootInode, in, nil
}

func (fs *FS) allocInode() (uint16, error) {
	num := fs.im.alloc(fs.sb.nInodes)
	if num == 0 {
		return 0, errkind.New("allocInode", errkind.OutOfMemory, nil)
	}
	return num, nil
}

func (fs *FS) freeInode(num uint16) {
	fs.im.markFree(num)
}

func (fs *FS) allocZone() (uint16, error) {
	z := fs.zm.alloc(fs.sb.nZones)
	if z == 0 {
		return 0, errkind.New("allocZone", errkind.OutOfSpace, nil)
	}
	zeros := make([]byte, BlockSize)
	if err := fs.writeBlock(uint32(z), zeros); err != nil {
		fs.zm.markFree(z)
		return 0, err
	}
	return z, nil
}

func (fs *FS) freeZone(z uint16) {
	if z == 0 {
		return
	}
	fs.zm.markFree(z)
}

// zonesOf returns every allocated data zone for in, direct zones first
// followed by the zones listed in the single-indirect block if present.
func (fs *FS) zonesOf(in Inode) ([]uint16, error) {
	zones := make([]uint16, 0, directZones)
	for i := 0; i < directZones; i++ {
		if in.Zone[i] != 0 {
			zones = append(zones, in.Zone[i])
		}
	}
	if in.Zone[singleIndZ] != 0 {
		buf, err := fs.readBlock(uint32(in.Zone[singleIndZ]))
		if err != nil {
			return nil, err
		}
		for i := 0; i < zonesPerIndirectBlock; i++ {
			z := uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
			if z != 0 {
				zones = append(zones, z)
			}
		}
	}
	return zones, nil
}

func nowUnix() uint32 { return uint32(time.Now().Unix()) }

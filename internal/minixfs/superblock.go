package minixfs

import (
	"bytes"
	"encoding/binary"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"golang.org/x/xerrors"
)

// onDiskSuperblock mirrors spec §6 exactly: 16-bit ninodes, nzones,
// imap_blocks, zmap_blocks, firstdatazone, log_zone_size; 32-bit
// max_size; 16-bit magic. Field order and widths are on-disk format, not
// a choice (spec §9 "Bitmap polarity inversion" note applies the same
// principle here).
type onDiskSuperblock struct {
	NInodes       uint16
	NZones        uint16
	ImapBlocks    uint16
	ZmapBlocks    uint16
	FirstDataZone uint16
	LogZoneSize   uint16
	MaxSize       uint32
	Magic         uint16
}

// superblock is the in-memory superblock, identical in content to
// onDiskSuperblock but kept as a separate type so callers don't depend on
// exact on-disk widths.
type superblock struct {
	nInodes       uint16
	nZones        uint16
	imapBlocks    uint16
	zmapBlocks    uint16
	firstDataZone uint16
	maxSize       uint32
	magic         uint16
}

func (sb superblock) inodeTableStart() uint16 {
	// spec §9 Duplicate implementations note: follow the cautious variant,
	// inode table begins at 2 + imap_blocks + zmap_blocks (inode bitmap
	// counted from block 2, per the "Open question" resolution).
	return imapStart + sb.imapBlocks + sb.zmapBlocks
}

func (sb superblock) zmapStart() uint16 {
	return imapStart + sb.imapBlocks
}

func decodeSuperblock(block []byte) (superblock, error) {
	var d onDiskSuperblock
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &d); err != nil {
		return superblock{}, errkind.New("mount", errkind.IOError, err)
	}
	if d.Magic != Magic {
		return superblock{}, errkind.New("mount", errkind.BadMagic, xerrors.Errorf("got %#x, want %#x", d.Magic, Magic))
	}
	return superblock{
		nInodes:       d.NInodes,
		nZones:        d.NZones,
		imapBlocks:    d.ImapBlocks,
		zmapBlocks:    d.ZmapBlocks,
		firstDataZone: d.FirstDataZone,
		maxSize:       d.MaxSize,
		magic:         d.Magic,
	}, nil
}

func encodeSuperblock(sb superblock) []byte {
	d := onDiskSuperblock{
		NInodes:       sb.nInodes,
		NZones:        sb.nZones,
		ImapBlocks:    sb.imapBlocks,
		ZmapBlocks:    sb.zmapBlocks,
		FirstDataZone: sb.firstDataZone,
		LogZoneSize:   0,
		MaxSize:       sb.maxSize,
		Magic:         sb.magic,
	}
	buf := make([]byte, BlockSize)
	w := bytes.NewBuffer(buf[:0])
	// Width of d is fixed and small; binary.Write into a pre-sized buffer
	// never errors here.
	_ = binary.Write(w, binary.LittleEndian, &d)
	return buf
}

func freshSuperblock() superblock {
	return superblock{
		nInodes:       defaultInodes,
		nZones:        defaultZones,
		imapBlocks:    defaultImapBlocks,
		zmapBlocks:    defaultZmapBlocks,
		firstDataZone: imapStart + defaultImapBlocks + defaultZmapBlocks + (defaultInodes*InodeSize+BlockSize-1)/BlockSize,
		maxSize:       MaxFileSize,
		magic:         Magic,
	}
}

// Package blockdev is the Block device port from spec §6: byte-addressable
// access to a backing disk as fixed-size sectors. The filesystem is the
// only consumer and the only accessor (spec §5 Shared-resource policy).
package blockdev

import (
	"golang.org/x/xerrors"
)

// SectorSize is the device's native sector size. The MINIX filesystem
// block size (1024 bytes) is always an integral number of sectors (two,
// per spec §6: "Two sectors per filesystem block").
const SectorSize = 512

// Device is the narrow capability the filesystem is built on.
type Device interface {
	// ReadSectors reads count sectors starting at lba into buf, which must
	// be at least count*SectorSize bytes.
	ReadSectors(lba uint64, count int, buf []byte) error
	// WriteSectors writes count sectors starting at lba from buf, which
	// must be at least count*SectorSize bytes.
	WriteSectors(lba uint64, count int, buf []byte) error
	// Available returns the device capacity in sectors.
	Available() uint64
}

var (
	errOutOfRange = xerrors.New("blockdev: sector range out of bounds")
	errShortBuf   = xerrors.New("blockdev: buffer shorter than requested sectors")
)

func checkRange(dev Device, lba uint64, count int, buflen int) error {
	if count < 0 {
		return xerrors.Errorf("blockdev: negative sector count")
	}
	if buflen < count*SectorSize {
		return errShortBuf
	}
	if lba+uint64(count) > dev.Available() {
		return errOutOfRange
	}
	return nil
}

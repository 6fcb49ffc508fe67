package blockdev

// MemDevice is an in-memory Device, used by tests and by hosted
// simulations (cmd/ir0) that don't want to touch a real disk image.
type MemDevice struct {
	sectors []byte
}

// NewMem allocates a MemDevice with the given capacity in sectors.
func NewMem(sectorCount uint64) *MemDevice {
	return &MemDevice{sectors: make([]byte, sectorCount*SectorSize)}
}

func (d *MemDevice) Available() uint64 { return uint64(len(d.sectors)) / SectorSize }

func (d *MemDevice) ReadSectors(lba uint64, count int, buf []byte) error {
	if err := checkRange(d, lba, count, len(buf)); err != nil {
		return err
	}
	off := lba * SectorSize
	n := uint64(count) * SectorSize
	copy(buf[:n], d.sectors[off:off+n])
	return nil
}

func (d *MemDevice) WriteSectors(lba uint64, count int, buf []byte) error {
	if err := checkRange(d, lba, count, len(buf)); err != nil {
		return err
	}
	off := lba * SectorSize
	n := uint64(count) * SectorSize
	copy(d.sectors[off:off+n], buf[:n])
	return nil
}

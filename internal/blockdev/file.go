package blockdev

import (
	"os"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// FileDevice is a Device backed by a regular host file, used when the
// kernel simulation is told to persist its disk image across runs.
type FileDevice struct {
	f       *os.File
	sectors uint64
}

// CreateFile atomically creates a fresh zero-filled disk image of
// sectorCount sectors at path and opens it as a FileDevice. Using
// renameio.WriteFile means a crash partway through image creation never
// leaves a half-written image at path; the image appears whole or not at
// all, which is what format() assumes it can always read back.
func CreateFile(path string, sectorCount uint64) (*FileDevice, error) {
	blank := make([]byte, sectorCount*SectorSize)
	if err := renameio.WriteFile(path, blank, 0644); err != nil {
		return nil, xerrors.Errorf("blockdev: creating image %s: %w", path, err)
	}
	return OpenFile(path)
}

// OpenFile opens an existing disk image as a FileDevice.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, xerrors.Errorf("blockdev: opening image %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, xerrors.Errorf("blockdev: stat %s: %w", path, err)
	}
	return &FileDevice{f: f, sectors: uint64(fi.Size()) / SectorSize}, nil
}

func (d *FileDevice) Available() uint64 { return d.sectors }

func (d *FileDevice) ReadSectors(lba uint64, count int, buf []byte) error {
	if err := checkRange(d, lba, count, len(buf)); err != nil {
		return err
	}
	n := count * SectorSize
	_, err := d.f.ReadAt(buf[:n], int64(lba*SectorSize))
	if err != nil {
		return xerrors.Errorf("blockdev: read at %d: %w", lba, err)
	}
	return nil
}

func (d *FileDevice) WriteSectors(lba uint64, count int, buf []byte) error {
	if err := checkRange(d, lba, count, len(buf)); err != nil {
		return err
	}
	n := count * SectorSize
	_, err := d.f.WriteAt(buf[:n], int64(lba*SectorSize))
	if err != nil {
		return xerrors.Errorf("blockdev: write at %d: %w", lba, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error { return d.f.Close() }

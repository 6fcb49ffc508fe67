package kernelproc

import (
	"bytes"
	"io"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/cavaliercoder/go-cpio"
	"golang.org/x/xerrors"
)

// FS is the narrow filesystem capability the initrd loader needs:
// writing out regular files and creating directories, the subset of
// minixfs.FS (via internal/vfs) this package depends on.
type FS interface {
	Mkdir(path string, mode uint16) error
	WriteFile(path string, data []byte) error
}

// LoadInitrd unpacks a cpio-packed ramdisk image (spec §4.8 "initrd.go
// cpio-packed ramdisk loader") into dst, creating a directory for each
// directory entry and writing regular file contents verbatim. Parent
// directories of a file entry are not created implicitly. Non-regular,
// non-directory entries (symlinks, devices) are skipped with no error —
// this kernel has no symlink or device-node support yet.
func LoadInitrd(image []byte, dst FS) error {
	r := cpio.NewReader(bytes.NewReader(image))
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errkind.New("kernelproc.LoadInitrd", errkind.IOError, err)
		}

		switch {
		case hdr.Mode.IsDir():
			if err := dst.Mkdir(hdr.Name, uint16(hdr.Mode.Perm())); err != nil && errkind.KindOf(err) != errkind.AlreadyExists {
				return xerrors.Errorf("kernelproc: creating %s: %w", hdr.Name, err)
			}
		case hdr.Mode.IsRegular():
			data, err := io.ReadAll(r)
			if err != nil {
				return xerrors.Errorf("kernelproc: reading %s: %w", hdr.Name, err)
			}
			if err := dst.WriteFile(hdr.Name, data); err != nil {
				return xerrors.Errorf("kernelproc: writing %s: %w", hdr.Name, err)
			}
		default:
			continue
		}
	}
}

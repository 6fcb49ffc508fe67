package kernelproc

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/klauspost/pgzip"
	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// LoadedImage is the tiny ELF loader's result: an entry point plus the
// mmap'd segments it populated in the owning Process (spec §4.8: "a tiny
// ELF loader interface").
type LoadedImage struct {
	Entry    uintptr
	Mappings []Mapping
}

// maybeDecompress transparently unwraps a gzip-compressed image, using
// pgzip the same way cmd/distri/initrd.go compresses its initramfs, so a
// kernel image can ship gzip'd without the loader caring.
func maybeDecompress(image []byte) ([]byte, error) {
	if len(image) < 2 || image[0] != 0x1f || image[1] != 0x8b {
		return image, nil
	}
	zr, err := pgzip.NewReader(bytes.NewReader(image))
	if err != nil {
		return nil, xerrors.Errorf("kernelproc: opening gzip image: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerrors.Errorf("kernelproc: decompressing image: %w", err)
	}
	return out, nil
}

// LoadELF parses image (optionally gzip-compressed), maps each PT_LOAD
// segment into p via Mmap, copies its file contents in, and zero-fills
// the remainder up to MemSize (spec §4.8).
func (p *Process) LoadELF(image []byte) (*LoadedImage, error) {
	raw, err := maybeDecompress(image)
	if err != nil {
		return nil, err
	}
	return p.loadELF(bytes.NewReader(raw))
}

// FSReader is the narrow read capability LoadELFFromFS needs: a whole-
// file read by path, the subset of vfs.VFS/minixfs.FS this package
// depends on.
type FSReader interface {
	ReadFile(path string) ([]byte, error)
}

// LoadELFFromFS reads path through src — the kernel's own mounted
// filesystem, not host storage — and loads it exactly as LoadELF does
// (spec §4.8: "load the named file through the filesystem"). This is
// the normal path for programs that live inside the mounted root
// filesystem once it exists; LoadELFFile below is the pre-root
// alternative for images that have to be loaded before any filesystem
// is mounted.
func (p *Process) LoadELFFromFS(src FSReader, path string) (*LoadedImage, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.LoadELF(data)
}

// LoadELFFile loads an uncompressed binary straight off host storage,
// the same way a bootloader reads a kernel or initrd image from boot
// media before any root filesystem is mounted — there is no minixfs
// volume to read it through yet. It maps the file with
// golang.org/x/exp/mmap instead of reading it into a []byte first, the
// same lazy, read-only access distri's internal/install used to read
// package store files without paging the whole thing in up front. Once
// the root filesystem is mounted, ordinary program loads go through
// LoadELFFromFS instead.
func (p *Process) LoadELFFile(path string) (*LoadedImage, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errkind.New("kernelproc.LoadELFFile", errkind.IOError, err)
	}
	defer r.Close()
	return p.loadELF(r)
}

func (p *Process) loadELF(r io.ReaderAt) (*LoadedImage, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errkind.New("kernelproc.LoadELF", errkind.InvalidArgument, err)
	}
	defer f.Close()

	loaded := &LoadedImage{Entry: uintptr(f.Entry)}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		prot := segmentProt(prog.Flags)
		length := int(prog.Memsz)
		if length == 0 {
			continue
		}
		addr, err := p.Mmap(length, prot, -1, 0)
		if err != nil {
			return nil, xerrors.Errorf("kernelproc: mapping segment: %w", err)
		}
		buf, err := p.Buffer(addr)
		if err != nil {
			return nil, err
		}
		section := io.NewSectionReader(prog, 0, int64(prog.Filesz))
		if _, err := io.ReadFull(section, buf[:prog.Filesz]); err != nil && err != io.EOF {
			return nil, xerrors.Errorf("kernelproc: reading segment contents: %w", err)
		}
		loaded.Mappings = append(loaded.Mappings, Mapping{Addr: addr, Len: length, Prot: prot, buf: buf})
	}
	return loaded, nil
}

func segmentProt(flags elf.ProgFlag) MapProt {
	var prot MapProt
	if flags&elf.PF_R != 0 {
		prot |= ProtRead
	}
	if flags&elf.PF_W != 0 {
		prot |= ProtWrite
	}
	if flags&elf.PF_X != 0 {
		prot |= ProtExec
	}
	return prot
}

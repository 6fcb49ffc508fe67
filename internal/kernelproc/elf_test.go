package kernelproc

import (
	"bytes"
	"compress/gzip"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	ehdrSize = 64
	phdrSize = 56
)

// buildMinimalELF returns a minimal ELF64/x86-64 executable with one
// PT_LOAD segment containing payload, entry point set to its load
// address.
func buildMinimalELF(payload []byte) []byte {
	const vaddr = 0x400000
	offset := uint64(ehdrSize + phdrSize)

	ehdr := make([]byte, ehdrSize)
	copy(ehdr[0:4], "\x7fELF")
	ehdr[4] = 2 // ELFCLASS64
	ehdr[5] = 1 // ELFDATA2LSB
	ehdr[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(ehdr[16:18], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(ehdr[18:20], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(ehdr[20:24], uint32(elf.EV_CURRENT))
	binary.LittleEndian.PutUint64(ehdr[24:32], vaddr+offset) // e_entry
	binary.LittleEndian.PutUint64(ehdr[32:40], ehdrSize)     // e_phoff
	binary.LittleEndian.PutUint16(ehdr[52:54], ehdrSize)     // e_ehsize
	binary.LittleEndian.PutUint16(ehdr[54:56], phdrSize)     // e_phentsize
	binary.LittleEndian.PutUint16(ehdr[56:58], 1)            // e_phnum

	phdr := make([]byte, phdrSize)
	binary.LittleEndian.PutUint32(phdr[0:4], uint32(elf.PT_LOAD))
	binary.LittleEndian.PutUint32(phdr[4:8], uint32(elf.PF_R|elf.PF_X))
	binary.LittleEndian.PutUint64(phdr[8:16], offset)             // p_offset
	binary.LittleEndian.PutUint64(phdr[16:24], vaddr+offset)      // p_vaddr
	binary.LittleEndian.PutUint64(phdr[24:32], vaddr+offset)      // p_paddr
	binary.LittleEndian.PutUint64(phdr[32:40], uint64(len(payload))) // p_filesz
	binary.LittleEndian.PutUint64(phdr[40:48], uint64(len(payload))+16) // p_memsz
	binary.LittleEndian.PutUint64(phdr[48:56], 8)                  // p_align

	out := append(ehdr, phdr...)
	out = append(out, payload...)
	return out
}

func TestLoadELFMapsSegmentAndSetsEntry(t *testing.T) {
	p := New(0x1000, 0x1000)
	payload := []byte("hello from a loaded segment")
	image := buildMinimalELF(payload)

	loaded, err := p.LoadELF(image)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}
	if len(loaded.Mappings) != 1 {
		t.Fatalf("len(Mappings) = %d, want 1", len(loaded.Mappings))
	}
	if want := uintptr(0x400000 + ehdrSize + phdrSize); loaded.Entry != want {
		t.Fatalf("Entry = %#x, want %#x", loaded.Entry, want)
	}
	buf, err := p.Buffer(loaded.Mappings[0].Addr)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if !bytes.Equal(buf[:len(payload)], payload) {
		t.Fatalf("segment contents = %q, want %q", buf[:len(payload)], payload)
	}
	for _, b := range buf[len(payload):] {
		if b != 0 {
			t.Fatalf("memsz tail beyond filesz was not zero-filled")
		}
	}
}

func TestLoadELFDecompressesGzip(t *testing.T) {
	p := New(0x1000, 0x1000)
	image := buildMinimalELF([]byte("gzipped payload"))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(image); err != nil {
		t.Fatalf("gzip.Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip.Close: %v", err)
	}

	loaded, err := p.LoadELF(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadELF(gzip'd): %v", err)
	}
	if len(loaded.Mappings) != 1 {
		t.Fatalf("len(Mappings) = %d, want 1", len(loaded.Mappings))
	}
}

func TestLoadELFFileMapsFromDisk(t *testing.T) {
	p := New(0x1000, 0x1000)
	payload := []byte("on-disk segment contents")
	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, buildMinimalELF(payload), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := p.LoadELFFile(path)
	if err != nil {
		t.Fatalf("LoadELFFile: %v", err)
	}
	buf, err := p.Buffer(loaded.Mappings[0].Addr)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if !bytes.Equal(buf[:len(payload)], payload) {
		t.Fatalf("segment contents = %q, want %q", buf[:len(payload)], payload)
	}
}

func TestLoadELFRejectsGarbage(t *testing.T) {
	p := New(0x1000, 0x1000)
	if _, err := p.LoadELF([]byte("not an elf file")); err == nil {
		t.Fatalf("LoadELF with garbage input succeeded, want error")
	}
}

type fakeFS map[string][]byte

func (f fakeFS) ReadFile(path string) ([]byte, error) { return f[path], nil }

func TestLoadELFFromFSReadsThroughGivenFilesystem(t *testing.T) {
	p := New(0x1000, 0x1000)
	payload := []byte("contents loaded through the mounted filesystem")
	fs := fakeFS{"/sbin/init": buildMinimalELF(payload)}

	loaded, err := p.LoadELFFromFS(fs, "/sbin/init")
	if err != nil {
		t.Fatalf("LoadELFFromFS: %v", err)
	}
	buf, err := p.Buffer(loaded.Mappings[0].Addr)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if !bytes.Equal(buf[:len(payload)], payload) {
		t.Fatalf("segment contents = %q, want %q", buf[:len(payload)], payload)
	}
}

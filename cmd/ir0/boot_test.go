package main

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cavaliercoder/go-cpio"
)

// buildMinimalELF returns a minimal ELF64/x86-64 executable with one
// PT_LOAD segment containing payload, the same shape
// internal/kernelproc's own test fixture builds, duplicated here because
// that helper is unexported in another package.
func buildMinimalELF(payload []byte) []byte {
	const ehdrSize = 64
	const phdrSize = 56
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
	binary.LittleEndian.PutUint64(phdr[8:16], offset)                   // p_offset
	binary.LittleEndian.PutUint64(phdr[16:24], vaddr+offset)            // p_vaddr
	binary.LittleEndian.PutUint64(phdr[24:32], vaddr+offset)            // p_paddr
	binary.LittleEndian.PutUint64(phdr[32:40], uint64(len(payload)))    // p_filesz
	binary.LittleEndian.PutUint64(phdr[40:48], uint64(len(payload))+16) // p_memsz
	binary.LittleEndian.PutUint64(phdr[48:56], 8)                       // p_align

	out := append(ehdr, phdr...)
	out = append(out, payload...)
	return out
}

// buildInitrd packs a single directory and one regular file (the init
// binary) into a cpio archive, following the same cpio.Writer shape
// cmd/distri/initrd.go uses to build a real initramfs.
func buildInitrd(t *testing.T, initPath string, initBinary []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	wr := cpio.NewWriter(&buf)

	dir := "/" + strings.Split(strings.TrimPrefix(initPath, "/"), "/")[0]
	if dir != initPath {
		if err := wr.WriteHeader(&cpio.Header{Name: dir, Mode: cpio.ModeDir | 0o755}); err != nil {
			t.Fatalf("WriteHeader(%s): %v", dir, err)
		}
	}

	if err := wr.WriteHeader(&cpio.Header{
		Name: initPath,
		Mode: cpio.FileMode(0o755),
		Size: int64(len(initBinary)),
	}); err != nil {
		t.Fatalf("WriteHeader(%s): %v", initPath, err)
	}
	if _, err := wr.Write(initBinary); err != nil {
		t.Fatalf("writing %s: %v", initPath, err)
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("cpio Close: %v", err)
	}
	return buf.Bytes()
}

func TestCmdBootUnpacksInitrdLoadsELFAndRunsSyscallSmokeTest(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")

	initPath := "/sbin/init"
	elfImage := buildMinimalELF([]byte("hello from init"))
	initrd := buildInitrd(t, initPath, elfImage)
	initrdPath := filepath.Join(dir, "initrd.cpio")
	if err := os.WriteFile(initrdPath, initrd, 0o644); err != nil {
		t.Fatalf("writing initrd fixture: %v", err)
	}

	ctx := context.Background()
	got := captureStdout(t, func() {
		if err := cmdBoot(ctx, []string{image, initrdPath, initPath}); err != nil {
			t.Fatalf("cmdBoot: %v", err)
		}
	})

	if !strings.Contains(got, "ir0: minix-style filesystem") {
		t.Fatalf("output = %q, want kernel-info banner", got)
	}
	if !strings.Contains(got, "pid=") {
		t.Fatalf("output = %q, want ps line", got)
	}
	if !strings.Contains(got, "ir0: init process syscall smoke test ok") {
		t.Fatalf("output = %q, want write syscall smoke test line", got)
	}
}

package blockdev

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemDeviceWriteReadRoundTrip(t *testing.T) {
	dev := NewMem(4)
	want := []byte("0123456789abcdef")
	if err := dev.WriteSectors(1, 1, want); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}
	got := make([]byte, SectorSize)
	if err := dev.ReadSectors(1, 1, got); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMemDeviceAvailable(t *testing.T) {
	dev := NewMem(10)
	if got := dev.Available(); got != 10 {
		t.Fatalf("Available() = %d, want 10", got)
	}
}

func TestMemDeviceRejectsOutOfRangeReads(t *testing.T) {
	dev := NewMem(2)
	buf := make([]byte, SectorSize)
	if err := dev.ReadSectors(5, 1, buf); err == nil {
		t.Fatalf("ReadSectors past capacity succeeded, want error")
	}
}

func TestMemDeviceRejectsShortBuffer(t *testing.T) {
	dev := NewMem(2)
	buf := make([]byte, SectorSize-1)
	if err := dev.WriteSectors(0, 1, buf); err == nil {
		t.Fatalf("WriteSectors with a short buffer succeeded, want error")
	}
}

func TestFileDeviceCreateOpenWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := CreateFile(path, 4)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	want := []byte("on-disk contents")
	if err := dev.WriteSectors(2, 1, want); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	got := make([]byte, SectorSize)
	if err := reopened.ReadSectors(2, 1, got); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
		t.Fatalf("round trip mismatch after reopen (-want +got):\n%s", diff)
	}
	if got := reopened.Available(); got != 4 {
		t.Fatalf("Available() after reopen = %d, want 4", got)
	}
}

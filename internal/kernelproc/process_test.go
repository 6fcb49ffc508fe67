package kernelproc

import "testing"

func TestBrkGetAndSet(t *testing.T) {
	p := New(0x1000, 0x1000)
	cur, err := p.Heap.Brk(0)
	if err != nil {
		t.Fatalf("Brk(0): %v", err)
	}
	if cur != 0x1000 {
		t.Fatalf("initial brk = %#x, want %#x", cur, 0x1000)
	}

	if _, err := p.Heap.Brk(0x1500); err != nil {
		t.Fatalf("Brk(0x1500): %v", err)
	}
	cur, _ = p.Heap.Brk(0)
	if cur != 0x1500 {
		t.Fatalf("brk after set = %#x, want %#x", cur, 0x1500)
	}
}

func TestBrkRejectsOutOfRange(t *testing.T) {
	p := New(0x1000, 0x1000)
	_, err := p.Heap.Brk(0x5000)
	if err == nil {
		t.Fatalf("Brk(0x5000) beyond limit succeeded, want error")
	}
}

func TestSbrkAdvancesAndReturnsOldBreak(t *testing.T) {
	p := New(0x1000, 0x1000)
	old, err := p.Heap.Sbrk(0x100)
	if err != nil {
		t.Fatalf("Sbrk: %v", err)
	}
	if old != 0x1000 {
		t.Fatalf("Sbrk returned %#x, want old break %#x", old, 0x1000)
	}
	cur, _ := p.Heap.Brk(0)
	if cur != 0x1100 {
		t.Fatalf("brk after Sbrk = %#x, want %#x", cur, 0x1100)
	}
}

func TestSbrkOverflowErrors(t *testing.T) {
	p := New(0x1000, 0x100)
	_, err := p.Heap.Sbrk(0x1000)
	if err == nil {
		t.Fatalf("Sbrk past limit succeeded, want error")
	}
}

func TestMmapZeroesAndMunmapFrees(t *testing.T) {
	p := New(0x1000, 0x1000)
	addr, err := p.Mmap(100, ProtRead|ProtWrite, -1, 0)
	if err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	buf, err := p.Buffer(addr)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("mmap'd buffer not zeroed")
		}
	}
	if len(buf) != PageSize {
		t.Fatalf("buffer length = %d, want page-aligned %d", len(buf), PageSize)
	}

	if err := p.Munmap(addr, 100); err != nil {
		t.Fatalf("Munmap: %v", err)
	}
	if _, err := p.Buffer(addr); err == nil {
		t.Fatalf("Buffer after Munmap succeeded, want error")
	}
}

func TestMmapRefusesNonAnonymous(t *testing.T) {
	p := New(0x1000, 0x1000)
	_, err := p.Mmap(100, ProtRead, 3, 0)
	if err == nil {
		t.Fatalf("Mmap with a real fd succeeded, want error")
	}
}

func TestMprotectUpdatesRecordedProtection(t *testing.T) {
	p := New(0x1000, 0x1000)
	addr, err := p.Mmap(100, ProtRead, -1, 0)
	if err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if err := p.Mprotect(addr, 100, ProtRead|ProtWrite); err != nil {
		t.Fatalf("Mprotect: %v", err)
	}
	if p.Mmaps[0].Prot != ProtRead|ProtWrite {
		t.Fatalf("Prot after Mprotect = %v, want ProtRead|ProtWrite", p.Mmaps[0].Prot)
	}
}

func TestNewAssignsDistinctPIDsAndNewState(t *testing.T) {
	a := New(0x1000, 0x1000)
	b := New(0x1000, 0x1000)
	if a.PID == 0 || b.PID == 0 {
		t.Fatalf("PID unassigned: a=%d b=%d", a.PID, b.PID)
	}
	if a.PID == b.PID {
		t.Fatalf("two processes got the same PID %d", a.PID)
	}
	if a.State != StateNew {
		t.Fatalf("State = %v, want StateNew", a.State)
	}
}

func TestCurrentProcessSlot(t *testing.T) {
	p := New(0x1000, 0x1000)
	SetCurrent(p)
	got, err := Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got != p {
		t.Fatalf("Current() returned a different process")
	}
}

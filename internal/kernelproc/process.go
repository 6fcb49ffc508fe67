// Package kernelproc implements spec §4.8's process/heap spine: a single
// current-process slot, heap break management, anonymous mmap/munmap/
// mprotect, and the ELF/initrd loaders that populate a process image.
package kernelproc

import (
	"sync/atomic"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
)

// MapProt mirrors the PROT_* bits mmap/mprotect accept.
type MapProt int

const (
	ProtRead MapProt = 1 << iota
	ProtWrite
	ProtExec
)

// Mapping is one entry in a process's mmap list.
type Mapping struct {
	Addr uintptr
	Len  int
	Prot MapProt
	buf  []byte
}

// State is a process's position in the lifecycle spec §3's Data Model
// names: "a process owns a PID, a state, and a heap window".
type State int

const (
	StateNew State = iota
	StateRunning
	StateWaiting
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Process is the single current-process slot spec §4.8 describes: every
// syscall handler operates on whichever Process is installed as current.
type Process struct {
	PID     uint32
	State   State
	Heap    Heap
	Mmaps   []Mapping
	nextMap uintptr
}

// nextPID is the kernel-wide PID allocator; PID 1 is reserved for the
// first process New brings up, the same as a real init process.
var nextPID uint32

// New returns a Process with its heap initialized to [start, start+limit),
// State set to StateNew, and the next PID from the kernel-wide allocator.
func New(heapStart uintptr, heapLimit int) *Process {
	return &Process{
		PID:     atomic.AddUint32(&nextPID, 1),
		State:   StateNew,
		Heap:    Heap{start: heapStart, brk: heapStart, limit: heapStart + uintptr(heapLimit)},
		nextMap: 0x4000_0000, // arbitrary mmap arena base, well clear of the heap
	}
}

// current is the single current-process slot (spec §4.8: "A single
// current-process slot is used throughout syscalls").
var current *Process

// SetCurrent installs p as the process syscalls operate against.
func SetCurrent(p *Process) { current = p }

// Current returns the installed process, or an error if none is set.
func Current() (*Process, error) {
	if current == nil {
		return nil, errkind.New("kernelproc.Current", errkind.InvalidArgument, nil)
	}
	return current, nil
}

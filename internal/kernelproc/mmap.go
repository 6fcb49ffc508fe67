package kernelproc

import "github.com/IRodriguez13/IR0-sub003/internal/errkind"

// PageSize is the alignment granularity mmap rounds lengths up to.
const PageSize = 4096

func alignUp(n int) int {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// Mmap allocates a length-aligned, zeroed kernel buffer, records it in
// p's mmap list, and returns its base address. Only anonymous, private
// mappings are supported; fd must be -1 and offset 0 (spec §4.8:
// "Non-anonymous mappings are refused").
func (p *Process) Mmap(length int, prot MapProt, fd int, offset int64) (uintptr, error) {
	if fd != -1 || offset != 0 {
		return 0, errkind.New("mmap", errkind.NotSupported, nil)
	}
	if length <= 0 {
		return 0, errkind.New("mmap", errkind.InvalidArgument, nil)
	}

	aligned := alignUp(length)
	addr := p.nextMap
	p.nextMap += uintptr(aligned)

	p.Mmaps = append(p.Mmaps, Mapping{
		Addr: addr,
		Len:  aligned,
		Prot: prot,
		buf:  make([]byte, aligned),
	})
	return addr, nil
}

// Munmap removes the mapping matching addr/len exactly and frees its
// buffer (spec §4.8).
func (p *Process) Munmap(addr uintptr, length int) error {
	aligned := alignUp(length)
	for i, m := range p.Mmaps {
		if m.Addr == addr && m.Len == aligned {
			p.Mmaps = append(p.Mmaps[:i], p.Mmaps[i+1:]...)
			return nil
		}
	}
	return errkind.New("munmap", errkind.InvalidArgument, nil)
}

// Mprotect updates the recorded protection for the mapping at addr/len.
// No MMU work is performed; paging is out of scope (spec §4.8).
func (p *Process) Mprotect(addr uintptr, length int, prot MapProt) error {
	aligned := alignUp(length)
	for i, m := range p.Mmaps {
		if m.Addr == addr && m.Len == aligned {
			p.Mmaps[i].Prot = prot
			return nil
		}
	}
	return errkind.New("mprotect", errkind.InvalidArgument, nil)
}

// Buffer returns the backing bytes for the mapping at addr, used by the
// ELF loader to copy segment contents in and by read/write syscalls that
// target mmap'd memory.
func (p *Process) Buffer(addr uintptr) ([]byte, error) {
	for _, m := range p.Mmaps {
		if m.Addr == addr {
			return m.buf, nil
		}
	}
	return nil, errkind.New("kernelproc.Buffer", errkind.InvalidArgument, nil)
}

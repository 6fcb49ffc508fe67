package kernelproc

import "github.com/IRodriguez13/IR0-sub003/internal/errkind"

// Heap tracks a process's break: start, current break, and limit (spec
// §4.8).
type Heap struct {
	start uintptr
	brk   uintptr
	limit uintptr
}

// Brk returns the current break when addr is 0, or sets it to addr if
// addr lies within [start, limit] (spec §4.8: "brk(0) returns the current
// break; brk(addr) sets it if within limits").
func (h *Heap) Brk(addr uintptr) (uintptr, error) {
	if addr == 0 {
		return h.brk, nil
	}
	if addr < h.start || addr > h.limit {
		return 0, errkind.New("brk", errkind.InvalidArgument, nil)
	}
	h.brk = addr
	return h.brk, nil
}

// Sbrk advances the break by delta and returns the old break, erroring on
// overflow past the heap limit (spec §4.8).
func (h *Heap) Sbrk(delta int) (uintptr, error) {
	old := h.brk
	var next uintptr
	if delta >= 0 {
		next = old + uintptr(delta)
		if next < old || next > h.limit {
			return 0, errkind.New("sbrk", errkind.OutOfMemory, nil)
		}
	} else {
		shrink := uintptr(-delta)
		if shrink > old-h.start {
			return 0, errkind.New("sbrk", errkind.InvalidArgument, nil)
		}
		next = old - shrink
	}
	h.brk = next
	return old, nil
}

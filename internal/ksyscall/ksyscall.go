// Package ksyscall is the kernel's single syscall dispatcher (spec §1
// "Syscalls arrive through a single dispatcher"). Handlers are kept in an
// int-indexed dispatch table, the same verbs-map-of-funcs idiom
// cmd/distri's main() uses for its subcommands, except keyed by syscall
// number instead of verb name. errkind.Kind values are translated to
// golang.org/x/sys/unix errno constants only here, at the dispatch
// boundary — every package below this one stays errno-free.
package ksyscall

import (
	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"golang.org/x/sys/unix"
)

// Handler answers one syscall number with raw args and returns a result
// or an errkind-classified error.
type Handler func(args []uintptr) (uintptr, error)

// Table is the int-indexed dispatch table syscalls are served from.
type Table struct {
	handlers map[int]Handler
}

// NewTable returns an empty dispatch table.
func NewTable() *Table {
	return &Table{handlers: make(map[int]Handler)}
}

// Register installs fn as the handler for syscall number num.
func (t *Table) Register(num int, fn Handler) {
	t.handlers[num] = fn
}

// Dispatch invokes the handler registered for num. Its errkind.Kind
// failures are translated to negative errno values, the convention
// syscall ABIs use for "return -errno". Success and unknown-syscall
// results are returned unmodified/as ENOSYS respectively.
func (t *Table) Dispatch(num int, args []uintptr) (uintptr, error) {
	fn, ok := t.handlers[num]
	if !ok {
		return errnoReturn(unix.ENOSYS), nil
	}
	res, err := fn(args)
	if err == nil {
		return res, nil
	}
	return errnoReturn(errnoFor(errkind.KindOf(err))), err
}

func errnoReturn(errno unix.Errno) uintptr {
	return uintptr(-int(errno))
}

// errnoFor maps the core error vocabulary to a POSIX errno, the only
// place in this kernel errkind.Kind and unix.Errno ever meet.
func errnoFor(k errkind.Kind) unix.Errno {
	switch k {
	case errkind.NotFound:
		return unix.ENOENT
	case errkind.NotADirectory:
		return unix.ENOTDIR
	case errkind.IsADirectory:
		return unix.EISDIR
	case errkind.AlreadyExists:
		return unix.EEXIST
	case errkind.InvalidArgument:
		return unix.EINVAL
	case errkind.NoPermission:
		return unix.EPERM
	case errkind.OutOfMemory:
		return unix.ENOMEM
	case errkind.OutOfSpace:
		return unix.ENOSPC
	case errkind.Busy:
		return unix.EBUSY
	case errkind.IOError:
		return unix.EIO
	case errkind.Timeout:
		return unix.ETIMEDOUT
	case errkind.NotSupported:
		return unix.ENOTSUP
	case errkind.BadChecksum, errkind.BadMagic:
		return unix.EILSEQ
	case errkind.Overflow:
		return unix.EOVERFLOW
	default:
		return unix.EIO
	}
}

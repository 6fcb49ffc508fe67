package ksyscall

import (
	"fmt"
	"io"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/IRodriguez13/IR0-sub003/internal/kernelproc"
	"github.com/IRodriguez13/IR0-sub003/internal/minixfs"
)

// Syscall numbers, in the order spec §4.9 lists them: "exit, write,
// read, getpid, getppid, ls, mkdir, ps, kernel-info, cat, touch, rm,
// fork, waitpid, rmdir, malloc-test, brk, sbrk, mmap, munmap, mprotect".
const (
	SysExit = iota
	SysWrite
	SysRead
	SysGetpid
	SysGetppid
	SysLs
	SysMkdir
	SysPs
	SysKernelInfo
	SysCat
	SysTouch
	SysRm
	SysFork
	SysWaitpid
	SysRmdir
	SysMallocTest
	SysBrk
	SysSbrk
	SysMmap
	SysMunmap
	SysMprotect
)

// FS is the filesystem capability the path-taking syscalls need; both
// vfs.VFS and minixfs.FS satisfy it.
type FS interface {
	Mkdir(path string, mode uint16) error
	Touch(path string, mode uint16) error
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Unlink(path string) error
	Rmdir(path string) error
	Ls(path string) ([]minixfs.DirEntry, error)
}

// pathArg reads a NUL-terminated path string out of the mmap'd buffer
// at addr, the kernel-memory convention spec §4.8's mmap regions exist
// to back: a syscall that takes a string passes a pointer to a buffer
// the caller already mmap'd and filled in.
func pathArg(p *kernelproc.Process, addr uintptr) (string, error) {
	buf, err := p.Buffer(addr)
	if err != nil {
		return "", errkind.New("ksyscall.pathArg", errkind.InvalidArgument, err)
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

// RegisterCore installs handlers for every syscall spec §4.9 names
// against proc and fs, writing ls/cat/ps/kernel-info output to stdout.
// fork/waitpid return NotSupported: this kernel's process model is the
// single current-process slot spec §3's Data Model describes, with no
// child processes to fork into or wait on (spec §1 Non-goals: "no
// multi-core scheduling").
func RegisterCore(t *Table, proc *kernelproc.Process, fs FS, stdout io.Writer) {
	t.Register(SysExit, func(args []uintptr) (uintptr, error) {
		proc.State = kernelproc.StateZombie
		code := uintptr(0)
		if len(args) > 0 {
			code = args[0]
		}
		return code, nil
	})

	t.Register(SysWrite, func(args []uintptr) (uintptr, error) {
		if len(args) < 3 || args[0] != 1 {
			return 0, errkind.New("write", errkind.InvalidArgument, nil)
		}
		buf, err := proc.Buffer(args[1])
		if err != nil {
			return 0, err
		}
		n := int(args[2])
		if n > len(buf) {
			n = len(buf)
		}
		if _, err := stdout.Write(buf[:n]); err != nil {
			return 0, errkind.New("write", errkind.IOError, err)
		}
		return uintptr(n), nil
	})

	// read of stdin is always non-blocking and returns 0: the PS/2
	// keyboard queue this would drain from is out of scope (spec §1).
	t.Register(SysRead, func(args []uintptr) (uintptr, error) {
		return 0, nil
	})

	t.Register(SysGetpid, func(args []uintptr) (uintptr, error) {
		return uintptr(proc.PID), nil
	})

	// No parent-process tracking exists in the single current-process
	// slot model; getppid always reports 0 (no parent).
	t.Register(SysGetppid, func(args []uintptr) (uintptr, error) {
		return 0, nil
	})

	t.Register(SysLs, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("ls", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		entries, err := fs.Ls(path)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			fmt.Fprintf(stdout, "%6d %6d %s\n", e.Inode, e.Size, e.Name)
		}
		return uintptr(len(entries)), nil
	})

	t.Register(SysMkdir, func(args []uintptr) (uintptr, error) {
		if len(args) < 2 {
			return 0, errkind.New("mkdir", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		return 0, fs.Mkdir(path, uint16(args[1]))
	})

	t.Register(SysPs, func(args []uintptr) (uintptr, error) {
		fmt.Fprintf(stdout, "pid=%d state=%s\n", proc.PID, proc.State)
		return 0, nil
	})

	t.Register(SysKernelInfo, func(args []uintptr) (uintptr, error) {
		fmt.Fprintln(stdout, "ir0: minix-style filesystem + ipv4/icmp/udp/dns stack")
		return 0, nil
	})

	t.Register(SysCat, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("cat", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return 0, err
		}
		if _, err := stdout.Write(data); err != nil {
			return 0, errkind.New("cat", errkind.IOError, err)
		}
		return uintptr(len(data)), nil
	})

	t.Register(SysTouch, func(args []uintptr) (uintptr, error) {
		if len(args) < 2 {
			return 0, errkind.New("touch", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		return 0, fs.Touch(path, uint16(args[1]))
	})

	t.Register(SysRm, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("rm", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		return 0, fs.Unlink(path)
	})

	t.Register(SysFork, func(args []uintptr) (uintptr, error) {
		return 0, errkind.New("fork", errkind.NotSupported, nil)
	})

	t.Register(SysWaitpid, func(args []uintptr) (uintptr, error) {
		return 0, errkind.New("waitpid", errkind.NotSupported, nil)
	})

	t.Register(SysRmdir, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("rmdir", errkind.InvalidArgument, nil)
		}
		path, err := pathArg(proc, args[0])
		if err != nil {
			return 0, err
		}
		return 0, fs.Rmdir(path)
	})

	// malloc-test exercises the heap break by growing then shrinking it
	// back by the same amount, a smoke test for Sbrk's bookkeeping.
	t.Register(SysMallocTest, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("malloc-test", errkind.InvalidArgument, nil)
		}
		size := int(args[0])
		if _, err := proc.Heap.Sbrk(size); err != nil {
			return 0, err
		}
		if _, err := proc.Heap.Sbrk(-size); err != nil {
			return 0, err
		}
		return 0, nil
	})

	t.Register(SysBrk, func(args []uintptr) (uintptr, error) {
		var addr uintptr
		if len(args) > 0 {
			addr = args[0]
		}
		return proc.Heap.Brk(addr)
	})

	t.Register(SysSbrk, func(args []uintptr) (uintptr, error) {
		if len(args) < 1 {
			return 0, errkind.New("sbrk", errkind.InvalidArgument, nil)
		}
		return proc.Heap.Sbrk(int(int64(args[0])))
	})

	t.Register(SysMmap, func(args []uintptr) (uintptr, error) {
		if len(args) < 4 {
			return 0, errkind.New("mmap", errkind.InvalidArgument, nil)
		}
		return proc.Mmap(int(args[0]), kernelproc.MapProt(args[1]), int(int64(args[2])), int64(args[3]))
	})

	t.Register(SysMunmap, func(args []uintptr) (uintptr, error) {
		if len(args) < 2 {
			return 0, errkind.New("munmap", errkind.InvalidArgument, nil)
		}
		return 0, proc.Munmap(args[0], int(args[1]))
	})

	t.Register(SysMprotect, func(args []uintptr) (uintptr, error) {
		if len(args) < 3 {
			return 0, errkind.New("mprotect", errkind.InvalidArgument, nil)
		}
		return 0, proc.Mprotect(args[0], int(args[1]), kernelproc.MapProt(args[2]))
	})
}

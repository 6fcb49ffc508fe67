package main

import (
	"context"
	"os"

	"github.com/IRodriguez13/IR0-sub003"
	"github.com/IRodriguez13/IR0-sub003/internal/kernelproc"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/ksyscall"
	"golang.org/x/xerrors"
)

// cmdBoot runs the process/heap/syscall spine end to end (spec §4.8/§4.9):
// it mounts a disk image, unpacks a cpio initrd into it, loads the named
// init binary out of that same mounted filesystem, installs the core
// syscall table against the resulting process, and dispatches a few
// syscalls to prove the whole chain is wired rather than three isolated
// pieces each only exercised by their own tests.
func cmdBoot(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return xerrors.New("syntax: ir0 boot <image> <initrd.cpio> <init-path>")
	}
	image, initrdPath, initPath := args[0], args[1], args[2]
	log := klog.New("boot", klog.Info)

	v, err := openVFS(image)
	if err != nil {
		return err
	}

	var proc *kernelproc.Process
	var loaded *kernelproc.LoadedImage

	seq := ir0.NewSequencer(log)
	if err := seq.Add(ir0.Subsystem{
		Name: "initrd",
		Start: func(context.Context) error {
			data, err := os.ReadFile(initrdPath)
			if err != nil {
				return xerrors.Errorf("boot: reading initrd %s: %w", initrdPath, err)
			}
			if err := kernelproc.LoadInitrd(data, v); err != nil {
				return xerrors.Errorf("boot: unpacking initrd: %w", err)
			}
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "elf",
		Deps: []string{"initrd"},
		Start: func(context.Context) error {
			proc = kernelproc.New(0x1000_0000, 16*1024*1024)
			proc.State = kernelproc.StateRunning
			kernelproc.SetCurrent(proc)
			var err error
			loaded, err = proc.LoadELFFromFS(v, initPath)
			if err != nil {
				return xerrors.Errorf("boot: loading %s: %w", initPath, err)
			}
			log.Infof("pid=%d loaded %s, entry=%#x, %d segment(s)", proc.PID, initPath, loaded.Entry, len(loaded.Mappings))
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "syscalls",
		Deps: []string{"elf"},
		Start: func(context.Context) error {
			tbl := ksyscall.NewTable()
			ksyscall.RegisterCore(tbl, proc, v, os.Stdout)

			if _, err := tbl.Dispatch(ksyscall.SysKernelInfo, nil); err != nil {
				return err
			}
			if _, err := tbl.Dispatch(ksyscall.SysPs, nil); err != nil {
				return err
			}
			if res, err := tbl.Dispatch(ksyscall.SysGetpid, nil); err != nil {
				return err
			} else if uintptr(res) != uintptr(proc.PID) {
				return xerrors.Errorf("boot: getpid returned %d, want %d", res, proc.PID)
			}

			msg := []byte("ir0: init process syscall smoke test ok\n")
			addr, err := proc.Mmap(len(msg), kernelproc.ProtRead|kernelproc.ProtWrite, -1, 0)
			if err != nil {
				return err
			}
			buf, err := proc.Buffer(addr)
			if err != nil {
				return err
			}
			copy(buf, msg)
			_, err = tbl.Dispatch(ksyscall.SysWrite, []uintptr{1, addr, uintptr(len(msg))})
			return err
		},
	}); err != nil {
		return err
	}

	return seq.Boot(ctx)
}

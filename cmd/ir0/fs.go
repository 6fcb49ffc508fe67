package main

import (
	"context"
	"fmt"
	"os"

	"github.com/IRodriguez13/IR0-sub003/internal/blockdev"
	"github.com/IRodriguez13/IR0-sub003/internal/minixfs"
	"github.com/IRodriguez13/IR0-sub003/internal/vfs"
	"golang.org/x/xerrors"
)

// imageSectors is the default disk image size: 1024 MINIX zones' worth of
// 512-byte sectors, matching minixfs.defaultZones.
const imageSectors = 1024 * (minixfs.BlockSize / 512)

func openImage(path string) (blockdev.Device, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return blockdev.CreateFile(path, imageSectors)
	}
	return blockdev.OpenFile(path)
}

func openVFS(path string) (*vfs.VFS, error) {
	dev, err := openImage(path)
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}
	v := vfs.New()
	v.Register("minixfs", func() (vfs.Mounted, error) {
		return minixfs.Mount(dev, minixfs.MountOptions{FormatOnMountFailure: true})
	})
	if err := v.Mount("minixfs"); err != nil {
		return nil, xerrors.Errorf("mounting %s: %w", path, err)
	}
	return v, nil
}

func cmdFormat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return xerrors.New("syntax: ir0 format <image>")
	}
	dev, err := blockdev.CreateFile(args[0], imageSectors)
	if err != nil {
		return err
	}
	_, err = minixfs.Format(dev)
	return err
}

func cmdMkdir(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 mkdir <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	return v.Mkdir(args[1], 0o755)
}

func cmdTouch(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 touch <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	f, err := v.Open(args[1], vfs.OCreate|vfs.OWriteOnly)
	if err != nil {
		return err
	}
	return v.Close(f)
}

func cmdWrite(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return xerrors.New("syntax: ir0 write <image> <path> <contents>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	f, err := v.Open(args[1], vfs.OCreate|vfs.OWriteOnly|vfs.OTruncate)
	if err != nil {
		return err
	}
	if _, err := v.Write(f, []byte(args[2])); err != nil {
		return err
	}
	return v.Close(f)
}

func cmdCat(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 cat <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	f, err := v.Open(args[1], vfs.OReadOnly)
	if err != nil {
		return err
	}
	defer v.Close(f)
	buf := make([]byte, 64*1024)
	n, err := v.Read(f, buf)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func cmdLs(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 ls <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	entries, err := v.Ls(args[1])
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%6d %6d %s\n", e.Inode, e.Size, e.Name)
	}
	return nil
}

func cmdStat(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 stat <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	st, err := v.Stat(args[1])
	if err != nil {
		return err
	}
	fmt.Printf("mode=%#o uid=%d gid=%d size=%d mtime=%d nlinks=%d\n",
		st.Mode, st.UID, st.GID, st.Size, st.Mtime, st.Nlinks)
	return nil
}

func cmdRm(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 rm <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	return v.Unlink(args[1])
}

func cmdRmdir(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: ir0 rmdir <image> <path>")
	}
	v, err := openVFS(args[0])
	if err != nil {
		return err
	}
	return v.Rmdir(args[1])
}

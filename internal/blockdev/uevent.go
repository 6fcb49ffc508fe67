package blockdev

import (
	"strings"

	"github.com/s-urbaniak/uevent"
	"golang.org/x/xerrors"
)

// WaitForDevice subscribes to kernel uevent messages and returns a channel
// that is closed once a block device named devname (e.g. "sda", "nvme0n1")
// has announced itself with an "add" action. It reuses the exact
// subscribe-then-filter pattern cmd/minitrd/minitrd.go uses to find the
// root block device before mounting: this lets the kernel's block device
// port wait for hot-plugged storage instead of polling /sys/block.
//
// Callers that already know their backing device exists (the common case
// in this hosted rewrite, where the "disk" is a file or an in-memory
// buffer) have no need to call this; it exists for a future real-hardware
// backend.
func WaitForDevice(devname string) (<-chan struct{}, error) {
	r, err := uevent.NewReader()
	if err != nil {
		return nil, xerrors.Errorf("blockdev: subscribing to uevents: %w", err)
	}
	dec := uevent.NewDecoder(r)
	ready := make(chan struct{})
	go func() {
		defer r.Close()
		for {
			ev, err := dec.Decode()
			if err != nil {
				return
			}
			if ev.Subsystem != "block" || ev.Action != "add" {
				continue
			}
			if name, ok := ev.Vars["DEVNAME"]; ok && strings.TrimPrefix(name, "/dev/") == devname {
				close(ready)
				return
			}
		}
	}()
	return ready, nil
}

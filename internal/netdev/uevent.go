package netdev

import (
	"github.com/s-urbaniak/uevent"
	"golang.org/x/xerrors"
)

// WaitForInterface subscribes to kernel uevent messages and returns a
// channel closed once a net device named ifname (e.g. "eth0") announces
// itself with an "add" action. Mirrors blockdev.WaitForDevice's
// subscribe-then-filter shape, swapping the "block" subsystem for "net".
func WaitForInterface(ifname string) (<-chan struct{}, error) {
	r, err := uevent.NewReader()
	if err != nil {
		return nil, xerrors.Errorf("netdev: subscribing to uevents: %w", err)
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
			if ev.Subsystem != "net" || ev.Action != "add" {
				continue
			}
			if name, ok := ev.Vars["INTERFACE"]; ok && name == ifname {
				close(ready)
				return
			}
		}
	}()
	return ready, nil
}

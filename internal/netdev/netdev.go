// Package netdev is the Frame device port: the narrow capability the
// network stack is built on, the same role blockdev plays for the
// filesystem (spec §5 control flow: "frame device → IPv4 →
// {ICMP, UDP → DNS}").
package netdev

import "golang.org/x/xerrors"

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

func (m MAC) String() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, 17)
	for i, b := range m {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hex[b>>4], hex[b&0xf])
	}
	return string(buf)
}

// Flag reports device state a caller may need before sending.
type Flag int

const (
	FlagUp Flag = 1 << iota
	FlagRunning
)

// RecvFunc is the push-mode receive callback: the device hands a frame to
// the upper layer as soon as it is ready, rather than the upper layer
// polling for it.
type RecvFunc func(frame []byte)

// Device is the narrow capability the network stack depends on: send a
// frame, poll for completions/arrivals, and report identity/limits.
type Device interface {
	// Send transmits frame (a complete Ethernet frame, header included).
	// It returns a non-zero status if no transmit slot is free.
	Send(frame []byte) error
	// Poll drives one completion/arrival cycle; implementations that are
	// purely interrupt-driven may make this a no-op.
	Poll()
	// MAC returns the device's hardware address.
	MAC() MAC
	// MTU returns the maximum frame size this device accepts per Send,
	// Ethernet header included.
	MTU() int
	// Flags reports current device state.
	Flags() Flag
	// OnReceive installs the push-mode receive callback. Implementations
	// call it once per received frame, from Poll or from an interrupt
	// handler, never concurrently with itself.
	OnReceive(fn RecvFunc)
}

var ErrNoFreeDescriptor = xerrors.New("netdev: no free transmit descriptor")

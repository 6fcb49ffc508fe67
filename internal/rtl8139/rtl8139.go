// Package rtl8139 implements the RTL8139-equivalent Ethernet driver from
// spec §4.3: a single RX ring, four round-robin TX descriptors, and
// poll-driven completion detection (PollCompletions, also run at the
// start of Poll). There is no interrupt handler, and no PCI discovery:
// Probe works on a Bus already bound to the device. It satisfies netdev.Device so the IPv4 layer never depends on this
// package directly.
package rtl8139

import (
	"context"
	"sync"

	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// PCI vendor/device identity of the RTL8139. Probe does not read PCI
// configuration space, so it does not compare against these.
const (
	VendorID = 0x10ec
	DeviceID = 0x8139
)

// Register offsets relevant to this driver, RTL8139 datasheet layout.
const (
	regMAC0    = 0x00
	regCmd     = 0x37
	regRxBuf   = 0x30
	regCapr    = 0x38
	regTxStat0 = 0x10
	regTxAddr0 = 0x20
)

const (
	cmdReset   = 1 << 4
	cmdRxEn    = 1 << 3
	cmdTxEn    = 1 << 2
	txOwn      = 1 << 13 // cleared by hardware once sent
	rxOK       = 1 << 0
	rxBufSize  = 8 << 10 // 8 KiB ring (spec §4.3)
	txDescs    = 4
	mtu        = 1500
	descAlign  = 4 // "the next packet is aligned to a 4-byte boundary"
	headerSize = 4 // status + length
)

// Bus is the narrow PCI/IO capability this driver needs, so it can be
// exercised against a fake in tests without touching real hardware.
type Bus interface {
	// ReadConfig/WriteConfig access PCI configuration space.
	ReadConfig32(offset int) uint32
	WriteConfig32(offset int, v uint32)
	// IO reads/writes the device's I/O-mapped BAR0 registers.
	In32(reg int) uint32
	Out32(reg int, v uint32)
	In8(reg int) uint8
	Out8(reg int, v uint8)
	// DMABuffer allocates a zeroed, 32-bit-addressable DMA buffer of size
	// bytes; returns its physical address and a byte slice view.
	DMABuffer(size int) (phys uint32, buf []byte, err error)
}

type txSlot struct {
	buf    []byte
	phys   uint32
	shadow int32 // 1 while owned by hardware
}

// Driver is one RTL8139-equivalent NIC instance.
type Driver struct {
	bus Bus
	log *klog.Logger

	mac netdev.MAC

	mu       sync.Mutex
	rx       []byte
	rxPhys   uint32
	readOff  uint32
	tx       [txDescs]txSlot
	next     int
	inflight int32
	sem      *semaphore.Weighted

	recv netdev.RecvFunc
}

var ErrBadBARAlignment = xerrors.New("rtl8139: DMA buffer not 32-bit aligned or out of range")

// Probe allocates the RX ring and TX buffers, reads the MAC, performs the
// software reset spec §4.3 describes, enables RX/TX and returns a ready
// Driver. It does not read PCI configuration space: it neither matches
// VendorID/DeviceID nor enables I/O decode or bus mastering.
func Probe(ctx context.Context, bus Bus, log *klog.Logger) (*Driver, error) {
	d := &Driver{bus: bus, log: log, sem: semaphore.NewWeighted(txDescs)}

	rxPhys, rx, err := bus.DMABuffer(rxBufSize)
	if err != nil {
		return nil, xerrors.Errorf("rtl8139: allocating RX ring: %w", err)
	}
	if rxPhys%4 != 0 {
		return nil, ErrBadBARAlignment
	}
	d.rx, d.rxPhys = rx, rxPhys

	for i := range d.tx {
		phys, buf, err := bus.DMABuffer(mtu)
		if err != nil {
			return nil, xerrors.Errorf("rtl8139: allocating TX descriptor %d: %w", i, err)
		}
		if phys%4 != 0 {
			return nil, ErrBadBARAlignment
		}
		d.tx[i] = txSlot{buf: buf, phys: phys}
	}

	for i := 0; i < 6; i++ {
		d.mac[i] = byte(bus.In32(regMAC0+i) & 0xff)
	}

	bus.Out8(regCmd, cmdReset)
	for {
		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("rtl8139: reset timed out: %w", ctx.Err())
		default:
		}
		if bus.In8(regCmd)&cmdReset == 0 {
			break
		}
	}

	bus.Out32(regRxBuf, d.rxPhys)
	bus.Out8(regCmd, cmdRxEn|cmdTxEn)

	return d, nil
}

// Send finds a descriptor whose ownership bit is clear, copies payload
// in, issues a memory barrier, then kicks off DMA by writing the status
// register (spec §4.3 Transmit model).
func (d *Driver) Send(frame []byte) error {
	if len(frame) > mtu {
		return xerrors.Errorf("rtl8139: frame exceeds MTU (%d > %d)", len(frame), mtu)
	}
	if !d.sem.TryAcquire(1) {
		return netdev.ErrNoFreeDescriptor
	}

	d.mu.Lock()
	slot := d.next
	d.next = (d.next + 1) % txDescs
	d.mu.Unlock()

	desc := &d.tx[slot]
	copy(desc.buf, frame)
	memoryBarrier()
	d.bus.Out32(regTxStat0+slot*4, uint32(len(frame)))
	desc.shadow = 1
	d.inflight++
	return nil
}

// memoryBarrier is a stand-in for the hardware fence the real driver
// issues before kicking off DMA; nothing to order on a hosted backend.
func memoryBarrier() {}

// PollCompletions scans all four descriptors for a 1→0 ownership
// transition, releasing the corresponding semaphore slot for each one
// found (spec §4.3 "periodically by scanning all four descriptors").
func (d *Driver) PollCompletions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.tx {
		desc := &d.tx[i]
		if desc.shadow != 1 {
			continue
		}
		status := d.bus.In32(regTxStat0 + i*4)
		if status&txOwn == 0 {
			desc.shadow = 0
			d.inflight--
			d.sem.Release(1)
		}
	}
}

// Poll drains completed TX descriptors and drives one RX cycle: compare
// the hardware write pointer to the driver read offset, and for each
// framed packet in between, validate the OK bit and hand it upstream
// (spec §4.3 Receive model).
func (d *Driver) Poll() {
	d.PollCompletions()

	writePtr := d.bus.In32(regCapr)
	for d.readOff != writePtr {
		if int(d.readOff)+headerSize > len(d.rx) {
			d.readOff = 0
			continue
		}
		status := uint16(d.rx[d.readOff]) | uint16(d.rx[d.readOff+1])<<8
		length := uint16(d.rx[d.readOff+2]) | uint16(d.rx[d.readOff+3])<<8

		if status&rxOK == 0 {
			d.log.Warnf("rx: bad status %#x at offset %d, dropping", status, d.readOff)
			d.readOff = writePtr
			break
		}

		start := int(d.readOff) + headerSize
		end := start + int(length)
		if end > len(d.rx) {
			d.log.Warnf("rx: malformed length %d at offset %d, dropping", length, d.readOff)
			d.readOff = writePtr
			break
		}

		frame := make([]byte, length)
		copy(frame, d.rx[start:end])
		if d.recv != nil {
			d.recv(frame)
		}

		next := uint32(end)
		if rem := next % descAlign; rem != 0 {
			next += descAlign - rem
		}
		d.readOff = next % uint32(len(d.rx))
		d.bus.Out32(regCapr, d.readOff-0x10)
	}
}

func (d *Driver) OnReceive(fn netdev.RecvFunc) { d.recv = fn }

func (d *Driver) MAC() netdev.MAC { return d.mac }

func (d *Driver) MTU() int { return mtu }

func (d *Driver) Flags() netdev.Flag { return netdev.FlagUp | netdev.FlagRunning }

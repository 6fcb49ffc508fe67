package dns

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/IRodriguez13/IR0-sub003/internal/ipv4"
	"github.com/IRodriguez13/IR0-sub003/internal/kclock"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
	"github.com/IRodriguez13/IR0-sub003/internal/udp"
	"golang.org/x/sync/errgroup"
)

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	encoded := encodeName("example.com")
	msg := append(make([]byte, 0), encoded...)
	name, n, err := decodeName(msg, 0)
	if err != nil {
		t.Fatalf("decodeName: %v", err)
	}
	if name != "example.com" {
		t.Fatalf("decodeName = %q, want %q", name, "example.com")
	}
	if n != len(encoded) {
		t.Fatalf("consumed = %d, want %d", n, len(encoded))
	}
}

func TestDecodeNameFollowsCompressionPointer(t *testing.T) {
	msg := make([]byte, 0)
	msg = append(msg, encodeName("example.com")...) // offset 0
	ptrOffset := len(msg)
	msg = append(msg, 0xc0, 0x00) // pointer back to offset 0

	name, n, err := decodeName(msg, ptrOffset)
	if err != nil {
		t.Fatalf("decodeName: %v", err)
	}
	if name != "example.com" {
		t.Fatalf("decodeName via pointer = %q, want %q", name, "example.com")
	}
	if n != 2 {
		t.Fatalf("consumed for a pure pointer = %d, want 2", n)
	}
}

func TestDecodeNameRejectsTooManyJumps(t *testing.T) {
	// Build a chain of maxJumps+2 pointers, each pointing at the next, so
	// following it takes more jumps than allowed.
	msg := make([]byte, 0)
	for i := 0; i <= maxJumps+1; i++ {
		off := uint16(len(msg) + 2)
		msg = append(msg, 0xc0|byte(off>>8), byte(off))
	}
	msg = append(msg, 0) // terminator, unreachable if bounding works

	_, _, err := decodeName(msg, 0)
	if err == nil {
		t.Fatalf("decodeName did not reject a pointer chain longer than %d jumps", maxJumps)
	}
}

func newFakeResponse(id uint16, name string, ip [4]byte) []byte {
	hdr := make([]byte, 12)
	binary.BigEndian.PutUint16(hdr[0:2], id)
	binary.BigEndian.PutUint16(hdr[4:6], 1)
	binary.BigEndian.PutUint16(hdr[6:8], 1)

	question := encodeName(name)
	question = binary.BigEndian.AppendUint16(question, typeA)
	question = binary.BigEndian.AppendUint16(question, classIN)

	answerRR := encodeName(name)
	answerRR = binary.BigEndian.AppendUint16(answerRR, typeA)
	answerRR = binary.BigEndian.AppendUint16(answerRR, classIN)
	answerRR = binary.BigEndian.AppendUint32(answerRR, 300)
	answerRR = binary.BigEndian.AppendUint16(answerRR, 4)
	answerRR = append(answerRR, ip[:]...)

	out := append(hdr, question...)
	out = append(out, answerRR...)
	return out
}

type loopbackSender struct {
	local [4]byte
}

func (l loopbackSender) Send(dst [4]byte, proto uint8, payload []byte) error { return nil }
func (l loopbackSender) LocalIP() [4]byte                                   { return l.local }

// fixedResolver answers every address resolution with a fixed hardware
// address, as cmd/ir0's netsim harness does for its own loopback peer.
type fixedResolver struct{ mac netdev.MAC }

func (r fixedResolver) Resolve(nextHop [4]byte) (netdev.MAC, error) { return r.mac, nil }

// ethFrame and ipPacket build the same minimal Ethernet+IPv4 envelope
// cmd/ir0's netsim harness uses to hand a simulated incoming frame to a
// Loopback device's push-mode receive callback.
func ethFrame(dstMAC, srcMAC netdev.MAC, ipPkt []byte) []byte {
	frame := make([]byte, 14+len(ipPkt))
	copy(frame[0:6], dstMAC[:])
	copy(frame[6:12], srcMAC[:])
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[14:], ipPkt)
	return frame
}

func ipPacket(src, dst [4]byte, proto uint8, payload []byte) []byte {
	pkt := make([]byte, ipv4.HeaderLen+len(payload))
	pkt[0] = 0x45
	binary.BigEndian.PutUint16(pkt[2:4], uint16(len(pkt)))
	pkt[8] = 64
	pkt[9] = proto
	copy(pkt[12:16], src[:])
	copy(pkt[16:20], dst[:])
	binary.BigEndian.PutUint16(pkt[10:12], ipv4.Checksum(pkt[:ipv4.HeaderLen]))
	copy(pkt[ipv4.HeaderLen:], payload)
	return pkt
}

// udpFrame wraps a DNS message in a UDP+IPv4+Ethernet envelope addressed
// from server:53 to localIP:EphemeralPort.
func udpFrame(localMAC, serverMAC netdev.MAC, localIP, server [4]byte, msg []byte) []byte {
	udpPkt := make([]byte, udp.HeaderLen+len(msg))
	binary.BigEndian.PutUint16(udpPkt[0:2], 53)
	binary.BigEndian.PutUint16(udpPkt[2:4], EphemeralPort)
	binary.BigEndian.PutUint16(udpPkt[4:6], uint16(len(udpPkt)))
	copy(udpPkt[udp.HeaderLen:], msg)
	return ethFrame(localMAC, serverMAC, ipPacket(server, localIP, udp.ProtocolNumber, udpPkt))
}

// TestResolveReturnsAnswerBeforeTimeout delivers the fake server reply
// through the Loopback device's own push-mode receive callback — the
// same path a real incoming frame takes — so the reply passes through
// ipv4 and udp decoding before reaching the client. The watcher goroutine
// calls Deliver, so the client's response handling runs on that goroutine.
func TestResolveReturnsAnswerBeforeTimeout(t *testing.T) {
	localIP := [4]byte{10, 0, 0, 1}
	serverIP := [4]byte{8, 8, 8, 8}
	localMAC := netdev.MAC{1, 2, 3, 4, 5, 6}
	serverMAC := netdev.MAC{6, 5, 4, 3, 2, 1}

	lo := netdev.NewLoopback(localMAC)
	clock := kclock.NewFake()
	log := klog.New("dns", klog.Debug)
	stack := ipv4.New(lo, clock, log.With("ipv4"), localIP, fixedResolver{mac: serverMAC})
	stack.Routes().AddOrUpdate(ipv4.RouteEntry{Network: [4]byte{8, 8, 8, 8}, Mask: [4]byte{255, 255, 255, 255}})
	u := udp.New(stack)
	u.Register(stack)
	c := New(u, lo, clock, log)

	want := [4]byte{93, 184, 216, 34}

	var g errgroup.Group
	g.Go(func() error {
		for before := len(lo.Sent()); ; {
			time.Sleep(time.Millisecond)
			sent := lo.Sent()
			if len(sent) > before {
				msg := newFakeResponse(0, "example.com", want)
				lo.Deliver(udpFrame(localMAC, serverMAC, localIP, serverIP, msg))
				return nil
			}
		}
	})

	ip, err := c.Resolve(serverIP, "example.com")
	if werr := g.Wait(); werr != nil {
		t.Fatalf("delivering fake reply: %v", werr)
	}
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ip != want {
		t.Fatalf("Resolve = %v, want %v", ip, want)
	}
}

func TestResolveTimesOut(t *testing.T) {
	sender := loopbackSender{local: [4]byte{10, 0, 0, 1}}
	u := udp.New(sender)
	dev := netdev.NewLoopback(netdev.MAC{1, 2, 3, 4, 5, 6})
	clock := kclock.NewFake()
	log := klog.New("dns", klog.Debug)
	c := New(u, dev, clock, log)

	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(time.Millisecond)
			clock.Advance(600)
		}
	}()

	_, err := c.Resolve([4]byte{8, 8, 8, 8}, "nowhere.invalid")
	if err == nil {
		t.Fatalf("Resolve without any response succeeded, want timeout")
	}
}

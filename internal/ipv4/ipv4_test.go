package ipv4

import (
	"testing"

	"github.com/IRodriguez13/IR0-sub003/internal/kclock"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
)

type fakeResolver struct{ mac netdev.MAC }

func (r fakeResolver) Resolve(nextHop [4]byte) (netdev.MAC, error) { return r.mac, nil }

func newTestStack(t *testing.T, localIP [4]byte) (*Stack, *netdev.Loopback, *kclock.Fake) {
	t.Helper()
	dev := netdev.NewLoopback(netdev.MAC{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x01})
	clock := kclock.NewFake()
	log := klog.New("ipv4", klog.Debug)
	s := New(dev, clock, log, localIP, fakeResolver{mac: netdev.MAC{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}})
	return s, dev, clock
}

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x14, 0x00, 0x00, 0x00, 0x00, 0x40, 0x11, 0x00, 0x00, 10, 0, 0, 1, 10, 0, 0, 2}
	sum := Checksum(data)
	data[10], data[11] = byte(sum>>8), byte(sum)
	if Checksum(data) != 0 {
		t.Fatalf("checksum of a self-checksummed header should fold to 0, got %#x", Checksum(data))
	}
}

func TestRouteTableLongestPrefixMatch(t *testing.T) {
	rt := &RouteTable{}
	rt.AddOrUpdate(RouteEntry{Network: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 0, 0}, NextHop: [4]byte{192, 168, 1, 1}})
	rt.AddOrUpdate(RouteEntry{Network: [4]byte{10, 0, 1, 0}, Mask: [4]byte{255, 255, 255, 0}, NextHop: [4]byte{192, 168, 1, 2}})
	rt.SetDefaultGateway([4]byte{192, 168, 1, 254})

	hop, err := rt.Lookup([4]byte{10, 0, 1, 5})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hop != ([4]byte{192, 168, 1, 2}) {
		t.Fatalf("Lookup(10.0.1.5) = %v, want longest-prefix match 192.168.1.2", hop)
	}

	hop, err = rt.Lookup([4]byte{10, 0, 5, 5})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hop != ([4]byte{192, 168, 1, 1}) {
		t.Fatalf("Lookup(10.0.5.5) = %v, want /8 match", hop)
	}

	hop, err = rt.Lookup([4]byte{8, 8, 8, 8})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hop != ([4]byte{192, 168, 1, 254}) {
		t.Fatalf("Lookup(8.8.8.8) = %v, want default gateway", hop)
	}
}

func TestDirectRouteUsesDestinationAsNextHop(t *testing.T) {
	rt := &RouteTable{}
	rt.AddOrUpdate(RouteEntry{Network: [4]byte{192, 168, 1, 0}, Mask: [4]byte{255, 255, 255, 0}})
	hop, err := rt.Lookup([4]byte{192, 168, 1, 42})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hop != ([4]byte{192, 168, 1, 42}) {
		t.Fatalf("direct route hop = %v, want destination itself", hop)
	}
}

func TestSendBuildsValidHeader(t *testing.T) {
	s, dev, _ := newTestStack(t, [4]byte{10, 0, 0, 1})
	s.Routes().AddOrUpdate(RouteEntry{Network: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 0, 0}})

	payload := []byte("ping")
	if err := s.Send([4]byte{10, 0, 0, 2}, 1, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := dev.Sent()
	if len(sent) != 1 {
		t.Fatalf("Sent() = %d frames, want 1", len(sent))
	}
	h, err := DecodeHeader(sent[0][ethHeaderLen:])
	if err != nil {
		t.Fatalf("DecodeHeader on sent frame: %v", err)
	}
	if h.Protocol != 1 {
		t.Fatalf("Protocol = %d, want 1", h.Protocol)
	}
	if h.Dst != ([4]byte{10, 0, 0, 2}) {
		t.Fatalf("Dst = %v, want 10.0.0.2", h.Dst)
	}
}

func TestSendRefusesOwnAddress(t *testing.T) {
	s, _, _ := newTestStack(t, [4]byte{10, 0, 0, 1})
	err := s.Send([4]byte{10, 0, 0, 1}, 17, []byte("x"))
	if err == nil {
		t.Fatalf("Send to own address succeeded, want error")
	}
}

func TestReceiveDispatchesByProtocol(t *testing.T) {
	s, dev, _ := newTestStack(t, [4]byte{10, 0, 0, 1})
	s.Routes().AddOrUpdate(RouteEntry{Network: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 0, 0}})

	var gotSrc [4]byte
	var gotPayload []byte
	s.RegisterProtocol(17, func(src [4]byte, payload []byte) {
		gotSrc = src
		gotPayload = append([]byte(nil), payload...)
	})

	// Build an incoming packet addressed to our local IP from a peer.
	peer := &Stack{localIP: [4]byte{10, 0, 0, 2}}
	pkt, err := peer.buildPacket([4]byte{10, 0, 0, 1}, 17, 7, 0, false, []byte("payload"))
	if err != nil {
		t.Fatalf("buildPacket: %v", err)
	}
	frame := make([]byte, ethHeaderLen+len(pkt))
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[ethHeaderLen:], pkt)
	dev.Deliver(frame)

	if gotSrc != ([4]byte{10, 0, 0, 2}) {
		t.Fatalf("dispatched src = %v, want 10.0.0.2", gotSrc)
	}
	if string(gotPayload) != "payload" {
		t.Fatalf("dispatched payload = %q, want %q", gotPayload, "payload")
	}
}

func TestReceiveDropsForeignDestination(t *testing.T) {
	s, dev, _ := newTestStack(t, [4]byte{10, 0, 0, 1})
	called := false
	s.RegisterProtocol(17, func(src [4]byte, payload []byte) { called = true })

	peer := &Stack{localIP: [4]byte{10, 0, 0, 2}}
	pkt, err := peer.buildPacket([4]byte{10, 0, 0, 99}, 17, 1, 0, false, []byte("x"))
	if err != nil {
		t.Fatalf("buildPacket: %v", err)
	}
	frame := make([]byte, ethHeaderLen+len(pkt))
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[ethHeaderLen:], pkt)
	dev.Deliver(frame)

	if called {
		t.Fatalf("handler invoked for a packet addressed to a different host")
	}
}

func TestFragmentationAndReassembly(t *testing.T) {
	s, dev, _ := newTestStack(t, [4]byte{10, 0, 0, 1})
	s.Routes().AddOrUpdate(RouteEntry{Network: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 0, 0}})

	var reassembled []byte
	s.RegisterProtocol(17, func(src [4]byte, payload []byte) {
		reassembled = append([]byte(nil), payload...)
	})

	big := make([]byte, s.dev.MTU()*2)
	for i := range big {
		big[i] = byte(i)
	}
	if err := s.Send([4]byte{10, 0, 0, 2}, 17, big); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := dev.Sent()
	if len(sent) < 2 {
		t.Fatalf("Sent() = %d frames, want multiple fragments", len(sent))
	}

	// Feed the fragments back into a receiving stack in order.
	recv, rdev, _ := newTestStack(t, [4]byte{10, 0, 0, 2})
	recv.RegisterProtocol(17, func(src [4]byte, payload []byte) {
		reassembled = append([]byte(nil), payload...)
	})
	for _, frame := range sent {
		rdev.Deliver(frame)
	}

	if len(reassembled) != len(big) {
		t.Fatalf("reassembled length = %d, want %d", len(reassembled), len(big))
	}
	for i := range big {
		if reassembled[i] != big[i] {
			t.Fatalf("reassembled byte %d = %d, want %d", i, reassembled[i], big[i])
		}
	}
}

func TestReassemblyEvictsStaleEntries(t *testing.T) {
	s, dev, clock := newTestStack(t, [4]byte{10, 0, 0, 1})
	called := false
	s.RegisterProtocol(17, func(src [4]byte, payload []byte) { called = true })

	peer := &Stack{localIP: [4]byte{10, 0, 0, 2}}
	pkt, err := peer.buildPacket([4]byte{10, 0, 0, 1}, 17, 9, 0, true, make([]byte, 8))
	if err != nil {
		t.Fatalf("buildPacket: %v", err)
	}
	frame := make([]byte, ethHeaderLen+len(pkt))
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[ethHeaderLen:], pkt)
	dev.Deliver(frame)

	if len(s.reasm) != 1 {
		t.Fatalf("expected one pending reassembly entry, got %d", len(s.reasm))
	}

	clock.Advance(reassemblyTimeoutMS + 1)
	s.evictStale()
	if len(s.reasm) != 0 {
		t.Fatalf("stale reassembly entry was not evicted")
	}
	if called {
		t.Fatalf("handler should not fire for an evicted, never-completed fragment group")
	}
}

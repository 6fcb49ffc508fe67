package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/IRodriguez13/IR0-sub003"
	"github.com/IRodriguez13/IR0-sub003/internal/dns"
	"github.com/IRodriguez13/IR0-sub003/internal/icmp"
	"github.com/IRodriguez13/IR0-sub003/internal/ipv4"
	"github.com/IRodriguez13/IR0-sub003/internal/kclock"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
	"github.com/IRodriguez13/IR0-sub003/internal/udp"
	xicmp "golang.org/x/net/icmp"
	xipv4 "golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"
)

// loopbackResolver answers every address resolution with a fixed
// hardware address, appropriate for a single loopback interface where
// there is no real neighbor to discover.
type loopbackResolver struct{ mac netdev.MAC }

func (r loopbackResolver) Resolve(nextHop [4]byte) (netdev.MAC, error) { return r.mac, nil }

var (
	localIP = [4]byte{10, 0, 0, 1}
	peerIP  = [4]byte{10, 0, 0, 2}
	peerMAC = netdev.MAC{0x52, 0x54, 0x00, 0x00, 0x00, 0x02}
)

// cmdNetsim brings up the frame device, IPv4, ICMP, UDP, and DNS layers
// over a single loopback device in the order spec §5 describes, then
// delivers one simulated ICMP echo and one simulated DNS query/response
// as if a peer at 10.0.0.2 were sitting across the wire.
func cmdNetsim(ctx context.Context, args []string) error {
	log := klog.New("netsim", klog.Info)
	lo := netdev.NewLoopback(netdev.MAC{0x52, 0x54, 0x00, 0x00, 0x00, 0x01})
	clock := kclock.System()

	var stack *ipv4.Stack
	var icmpHandler *icmp.Handler
	var udpStack *udp.Stack
	var dnsClient *dns.Client

	seq := ir0.NewSequencer(log)
	if err := seq.Add(ir0.Subsystem{
		Name: "netdev",
		Start: func(context.Context) error {
			log.Infof("loopback device up, mac=%s", lo.MAC())
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "ipv4",
		Deps: []string{"netdev"},
		Start: func(context.Context) error {
			stack = ipv4.New(lo, clock, log.With("ipv4"), localIP, loopbackResolver{mac: peerMAC})
			stack.Routes().AddOrUpdate(ipv4.RouteEntry{
				Network: [4]byte{10, 0, 0, 0},
				Mask:    [4]byte{255, 255, 255, 0},
			})
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "icmp",
		Deps: []string{"ipv4"},
		Start: func(context.Context) error {
			icmpHandler = icmp.New(stack, log.With("icmp"))
			icmpHandler.Register(stack)
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "udp",
		Deps: []string{"ipv4"},
		Start: func(context.Context) error {
			udpStack = udp.New(stack)
			udpStack.Register(stack)
			return nil
		},
	}); err != nil {
		return err
	}
	if err := seq.Add(ir0.Subsystem{
		Name: "dns",
		Deps: []string{"udp"},
		Start: func(context.Context) error {
			dnsClient = dns.New(udpStack, lo, clock, log.With("dns"))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := seq.Boot(ctx); err != nil {
		return err
	}

	if err := pingFromPeer(lo); err != nil {
		return err
	}
	return resolveViaPeer(lo, dnsClient)
}

// ethFrame wraps an IPv4 packet in a minimal Ethernet II header, the
// same shape ipv4.Stack.sendFrame builds, so delivered frames look like
// something a real NIC handed to the driver.
func ethFrame(dstMAC, srcMAC netdev.MAC, ipPacket []byte) []byte {
	frame := make([]byte, 14+len(ipPacket))
	copy(frame[0:6], dstMAC[:])
	copy(frame[6:12], srcMAC[:])
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[14:], ipPacket)
	return frame
}

// ipPacket builds a minimal, unfragmented IPv4 packet carrying payload.
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

// pingFromPeer delivers a simulated echo request from peerIP and checks
// that the icmp handler answered it by transmitting a reply frame.
func pingFromPeer(lo *netdev.Loopback) error {
	req, err := (&xicmp.Message{
		Type: xipv4.ICMPTypeEcho,
		Code: 0,
		Body: &xicmp.Echo{ID: 1, Seq: 1, Data: []byte("ir0")},
	}).Marshal(nil)
	if err != nil {
		return err
	}
	before := len(lo.Sent())
	lo.Deliver(ethFrame(lo.MAC(), peerMAC, ipPacket(peerIP, localIP, icmp.ProtocolNumber, req)))
	if len(lo.Sent()) <= before {
		return fmt.Errorf("netsim: no echo reply was produced")
	}
	fmt.Println("netsim: icmp echo round trip ok")
	return nil
}

// resolveViaPeer issues a DNS query against peerIP and, from a goroutine
// watching the outgoing frames, answers it as a DNS server at peerIP
// would: same transaction id, one A record. The watcher runs under an
// errgroup beside the resolve call and always returns nil; a reply the
// client cannot match surfaces as Resolve's own timeout error.
func resolveViaPeer(lo *netdev.Loopback, client *dns.Client) error {
	var g errgroup.Group
	g.Go(func() error {
		for before := len(lo.Sent()); ; {
			time.Sleep(5 * time.Millisecond)
			sent := lo.Sent()
			if len(sent) > before {
				lo.Deliver(fakeDNSReply(sent[len(sent)-1], [4]byte{93, 184, 216, 34}))
				return nil
			}
		}
	})

	ip, err := client.Resolve(peerIP, "ir0.local")
	if werr := g.Wait(); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	fmt.Printf("netsim: resolved ir0.local -> %d.%d.%d.%d\n", ip[0], ip[1], ip[2], ip[3])
	return nil
}

// fakeDNSReply reads the transaction id and queried name out of query (a
// full Ethernet+IPv4+UDP frame, as produced by dns.Client.Resolve) and
// builds a one-answer response frame addressed back to the querier.
func fakeDNSReply(query []byte, answer [4]byte) []byte {
	udpPayload := query[14+ipv4.HeaderLen+8:]
	id := binary.BigEndian.Uint16(udpPayload[0:2])
	name, _ := decodeQuestionName(udpPayload[12:])

	msg := make([]byte, 12)
	binary.BigEndian.PutUint16(msg[0:2], id)
	binary.BigEndian.PutUint16(msg[4:6], 1)
	binary.BigEndian.PutUint16(msg[6:8], 1)

	question := encodeDNSName(name)
	question = binary.BigEndian.AppendUint16(question, 1) // TYPE A
	question = binary.BigEndian.AppendUint16(question, 1) // CLASS IN
	msg = append(msg, question...)

	rr := encodeDNSName(name)
	rr = binary.BigEndian.AppendUint16(rr, 1)
	rr = binary.BigEndian.AppendUint16(rr, 1)
	rr = binary.BigEndian.AppendUint32(rr, 300)
	rr = binary.BigEndian.AppendUint16(rr, 4)
	rr = append(rr, answer[:]...)
	msg = append(msg, rr...)

	udpHdr := make([]byte, 8)
	binary.BigEndian.PutUint16(udpHdr[0:2], 53)
	binary.BigEndian.PutUint16(udpHdr[2:4], dns.EphemeralPort)
	binary.BigEndian.PutUint16(udpHdr[4:6], uint16(8+len(msg)))
	udpPkt := append(udpHdr, msg...)

	var querierMAC netdev.MAC
	copy(querierMAC[:], query[6:12])
	return ethFrame(querierMAC, peerMAC, ipPacket(peerIP, localIP, udp.ProtocolNumber, udpPkt))
}

func encodeDNSName(name string) []byte {
	var out []byte
	for _, label := range strings.Split(strings.TrimSuffix(name, "."), ".") {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0)
}

func decodeQuestionName(msg []byte) (string, int) {
	var labels []string
	pos := 0
	for {
		if pos >= len(msg) || msg[pos] == 0 {
			pos++
			break
		}
		n := int(msg[pos])
		pos++
		labels = append(labels, string(msg[pos:pos+n]))
		pos += n
	}
	return strings.Join(labels, "."), pos
}

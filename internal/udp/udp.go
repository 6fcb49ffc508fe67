// Package udp implements the UDP header, pseudo-header checksum, and
// per-port handler table from spec §4.6.
package udp

import (
	"encoding/binary"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/IRodriguez13/IR0-sub003/internal/ipv4"
)

// ProtocolNumber is the IP protocol number for UDP (IANA).
const ProtocolNumber = 17

// HeaderLen is the fixed UDP header size: source port, destination port,
// length, checksum.
const HeaderLen = 8

// Packet is a decoded UDP datagram.
type Packet struct {
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// HandlerFunc is invoked with {source IP, source port, payload slice} for
// whichever handler is registered on the destination port (spec §4.6).
type HandlerFunc func(srcIP [4]byte, srcPort uint16, payload []byte)

// Sender is the narrow capability Stack needs to transmit a UDP
// datagram: IPv4 send plus the local IP used in the pseudo-header.
type Sender interface {
	Send(dst [4]byte, proto uint8, payload []byte) error
	LocalIP() [4]byte
}

// Stack dispatches incoming UDP datagrams to per-port handlers and builds
// outgoing ones.
type Stack struct {
	send     Sender
	handlers map[uint16]HandlerFunc
}

// New returns a Stack bound to send.
func New(send Sender) *Stack {
	return &Stack{send: send, handlers: make(map[uint16]HandlerFunc)}
}

// Register installs s as ip's UDP protocol handler.
func (s *Stack) Register(ip *ipv4.Stack) {
	ip.RegisterProtocol(ProtocolNumber, s.receive)
}

// Handle installs fn as the handler for destination port.
func (s *Stack) Handle(port uint16, fn HandlerFunc) {
	s.handlers[port] = fn
}

func (s *Stack) receive(srcIP [4]byte, payload []byte) {
	pkt, err := decode(payload)
	if err != nil {
		return
	}
	if fn, ok := s.handlers[pkt.DstPort]; ok {
		fn(srcIP, pkt.SrcPort, pkt.Payload)
	}
}

func decode(b []byte) (Packet, error) {
	if len(b) < HeaderLen {
		return Packet{}, errkind.New("udp.decode", errkind.InvalidArgument, nil)
	}
	length := binary.BigEndian.Uint16(b[4:6])
	if int(length) > len(b) || length < HeaderLen {
		return Packet{}, errkind.New("udp.decode", errkind.InvalidArgument, nil)
	}
	return Packet{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Payload: b[HeaderLen:length],
	}, nil
}

// pseudoHeader builds the IPv4 pseudo-header UDP checksums over: source,
// destination, zero byte, protocol byte, UDP length (spec §4.6).
func pseudoHeader(src, dst [4]byte, udpLen uint16) []byte {
	b := make([]byte, 12)
	copy(b[0:4], src[:])
	copy(b[4:8], dst[:])
	b[8] = 0
	b[9] = ProtocolNumber
	binary.BigEndian.PutUint16(b[10:12], udpLen)
	return b
}

// Send builds a UDP datagram from srcPort/dstPort/payload, computes its
// checksum over the pseudo-header, and hands it to IPv4 (spec §4.6 "On
// send").
func (s *Stack) Send(dst [4]byte, srcPort, dstPort uint16, payload []byte) error {
	udpLen := uint16(HeaderLen + len(payload))
	pkt := make([]byte, udpLen)
	binary.BigEndian.PutUint16(pkt[0:2], srcPort)
	binary.BigEndian.PutUint16(pkt[2:4], dstPort)
	binary.BigEndian.PutUint16(pkt[4:6], udpLen)
	binary.BigEndian.PutUint16(pkt[6:8], 0)
	copy(pkt[HeaderLen:], payload)

	psh := pseudoHeader(s.send.LocalIP(), dst, udpLen)
	full := append(psh, pkt...)
	sum := ipv4.Checksum(full)
	binary.BigEndian.PutUint16(pkt[6:8], sum)

	return s.send.Send(dst, ProtocolNumber, pkt)
}

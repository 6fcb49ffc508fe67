// Package ipv4 implements the receive/send/reassembly/routing pipeline
// from spec §4.4: RFC 791 header layout, one's-complement checksums
// shared with ICMP and UDP, fragmentation and reassembly, and
// longest-prefix-match routing.
package ipv4

import (
	"encoding/binary"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/IRodriguez13/IR0-sub003/internal/kclock"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
	"github.com/orcaman/writerseeker"
	"golang.org/x/exp/slices"
)

// HeaderLen is the fixed IPv4 header size this stack produces; options
// are never emitted and IHL is always 5.
const HeaderLen = 20

const (
	flagMF = 1 << 13 // more-fragments bit within the flags+offset field
)

// Header is the in-memory decoding of an RFC 791 header.
type Header struct {
	Version  uint8
	IHL      uint8
	TotalLen uint16
	ID       uint16
	FlagMF   bool
	FragOff  uint16 // in 8-byte units
	TTL      uint8
	Protocol uint8
	Checksum uint16
	Src      [4]byte
	Dst      [4]byte
}

// DecodeHeader parses and validates an IPv4 header (spec §4.4 receive
// steps 1-2).
func DecodeHeader(pkt []byte) (Header, error) {
	if len(pkt) < HeaderLen {
		return Header{}, errkind.New("ipv4.decode", errkind.InvalidArgument, nil)
	}
	var h Header
	h.Version = pkt[0] >> 4
	h.IHL = pkt[0] & 0x0f
	if h.Version != 4 || h.IHL < 5 {
		return Header{}, errkind.New("ipv4.decode", errkind.InvalidArgument, nil)
	}
	h.TotalLen = binary.BigEndian.Uint16(pkt[2:4])
	if int(h.TotalLen) > len(pkt) {
		return Header{}, errkind.New("ipv4.decode", errkind.InvalidArgument, nil)
	}
	h.ID = binary.BigEndian.Uint16(pkt[4:6])
	flagsFrag := binary.BigEndian.Uint16(pkt[6:8])
	h.FlagMF = flagsFrag&flagMF != 0
	h.FragOff = flagsFrag & 0x1fff
	h.TTL = pkt[8]
	h.Protocol = pkt[9]
	h.Checksum = binary.BigEndian.Uint16(pkt[10:12])
	copy(h.Src[:], pkt[12:16])
	copy(h.Dst[:], pkt[16:20])

	headerBytes := make([]byte, int(h.IHL)*4)
	copy(headerBytes, pkt[:len(headerBytes)])
	headerBytes[10], headerBytes[11] = 0, 0
	if Checksum(headerBytes) != h.Checksum {
		return Header{}, errkind.New("ipv4.decode", errkind.BadChecksum, nil)
	}
	return h, nil
}

// Checksum computes the RFC 791/1071 one's-complement checksum: sum
// 16-bit words in host order, pad a trailing odd byte in the high half,
// fold the carry into 16 bits, return the one's complement in network
// order (spec §4.4, shared by ICMP and UDP).
func Checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// RouteEntry is one (network, mask) → next-hop association. A next-hop
// of the zero address indicates a direct route: the destination address
// itself is used as the next hop (spec §4.4 Routing).
type RouteEntry struct {
	Network [4]byte
	Mask    [4]byte
	NextHop [4]byte
}

func (r RouteEntry) maskLen() int {
	n := 0
	for _, b := range r.Mask {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}

func (r RouteEntry) matches(dst [4]byte) bool {
	for i := range dst {
		if dst[i]&r.Mask[i] != r.Network[i]&r.Mask[i] {
			return false
		}
	}
	return true
}

// RouteTable is a linked-list-style route table; longest mask wins
// (spec §4.4 Routing). The Go slice underneath plays the same role the
// original's linked list does: add/update by (network, mask) pair.
type RouteTable struct {
	entries    []RouteEntry
	defaultGW  [4]byte
	haveGW     bool
}

func (rt *RouteTable) AddOrUpdate(e RouteEntry) {
	for i, existing := range rt.entries {
		if existing.Network == e.Network && existing.Mask == e.Mask {
			rt.entries[i] = e
			return
		}
	}
	rt.entries = append(rt.entries, e)
	// Keep entries ordered longest-mask-first so Lookup can take the
	// first match instead of scanning for the best one.
	slices.SortFunc(rt.entries, func(a, b RouteEntry) bool {
		return a.maskLen() > b.maskLen()
	})
}

func (rt *RouteTable) SetDefaultGateway(gw [4]byte) {
	rt.defaultGW = gw
	rt.haveGW = true
}

// Lookup returns the next hop for dst, falling back to the default
// gateway if no route matches (spec §4.4 "fall back to the default
// gateway if the destination is not on the local subnet").
func (rt *RouteTable) Lookup(dst [4]byte) ([4]byte, error) {
	var best *RouteEntry
	for i := range rt.entries {
		if rt.entries[i].matches(dst) {
			best = &rt.entries[i]
			break
		}
	}
	if best != nil {
		if best.NextHop == ([4]byte{}) {
			return dst, nil
		}
		return best.NextHop, nil
	}
	if rt.haveGW {
		return rt.defaultGW, nil
	}
	return [4]byte{}, errkind.New("ipv4.route", errkind.NotFound, nil)
}

// Resolver maps an IPv4 next-hop address to a hardware address, the
// address-resolution collaborator spec §4.4 send step 2 refers to.
type Resolver interface {
	Resolve(nextHop [4]byte) (netdev.MAC, error)
}

// reassembly is one in-progress fragment group.
type reassembly struct {
	buf       []byte
	total     int // -1 until the final fragment sets it
	started   uint64
	proto     uint8
	src, dst  [4]byte
}

const reassemblyTimeoutMS = 30_000

// Stack wires together routing, reassembly, and protocol dispatch on top
// of a single frame device (spec §4.4 and §5's "frame device → IPv4 →
// {ICMP, UDP → DNS}" control flow).
type Stack struct {
	dev       netdev.Device
	clock     kclock.Clock
	log       *klog.Logger
	localIP   [4]byte
	routes    *RouteTable
	resolver  Resolver
	handlers  map[uint8]func(src [4]byte, payload []byte)
	reasm     map[reasmKey]*reassembly
	nextID    uint16
	lastSrc   [4]byte
}

type reasmKey struct {
	src [4]byte
	id  uint16
}

// New returns a Stack bound to dev, using localIP as this interface's
// address.
func New(dev netdev.Device, clock kclock.Clock, log *klog.Logger, localIP [4]byte, resolver Resolver) *Stack {
	s := &Stack{
		dev:      dev,
		clock:    clock,
		log:      log,
		localIP:  localIP,
		routes:   &RouteTable{},
		resolver: resolver,
		handlers: make(map[uint8]func(src [4]byte, payload []byte)),
		reasm:    make(map[reasmKey]*reassembly),
	}
	dev.OnReceive(s.onFrame)
	return s
}

func (s *Stack) Routes() *RouteTable { return s.routes }

// LocalIP returns this interface's configured IPv4 address, used by UDP
// to build its pseudo-header checksum.
func (s *Stack) LocalIP() [4]byte { return s.localIP }

// RegisterProtocol installs fn as the dispatch target for IP protocol
// number proto (spec §4.4 step 4 "dispatch by IP protocol number").
func (s *Stack) RegisterProtocol(proto uint8, fn func(src [4]byte, payload []byte)) {
	s.handlers[proto] = fn
}

// LastReceivedFrom is the remembered source of the last IP receive, which
// ICMP echo reply uses as its send target (spec §4.5).
func (s *Stack) LastReceivedFrom() [4]byte { return s.lastSrc }

const ethHeaderLen = 14

func (s *Stack) onFrame(frame []byte) {
	if len(frame) < ethHeaderLen {
		return
	}
	etherType := uint16(frame[12])<<8 | uint16(frame[13])
	if etherType != 0x0800 {
		return // not IPv4
	}
	s.Receive(frame[ethHeaderLen:])
}

// Receive implements spec §4.4's on-receive pipeline.
func (s *Stack) Receive(pkt []byte) {
	h, err := DecodeHeader(pkt)
	if err != nil {
		s.log.Warnf("ipv4: dropping packet: %v", err)
		return
	}
	broadcast := [4]byte{255, 255, 255, 255}
	if h.Dst != s.localIP && h.Dst != broadcast {
		return
	}
	s.lastSrc = h.Src

	headerLen := int(h.IHL) * 4
	payload := pkt[headerLen:int(h.TotalLen)]

	if h.FragOff != 0 || h.FlagMF {
		s.reassemble(h, payload)
		return
	}
	s.dispatch(h.Protocol, h.Src, payload)
}

func (s *Stack) dispatch(proto uint8, src [4]byte, payload []byte) {
	if fn, ok := s.handlers[proto]; ok {
		fn(src, payload)
	}
}

// reassemble implements spec §4.4's fragment buffer bookkeeping.
func (s *Stack) reassemble(h Header, payload []byte) {
	s.evictStale()

	key := reasmKey{src: h.Src, id: h.ID}
	entry, ok := s.reasm[key]
	if !ok {
		entry = &reassembly{buf: make([]byte, 65535), total: -1, started: s.clock.UptimeMS(), proto: h.Protocol, src: h.Src, dst: h.Dst}
		s.reasm[key] = entry
	}

	offset := int(h.FragOff) * 8
	copy(entry.buf[offset:], payload)

	if !h.FlagMF {
		entry.total = offset + len(payload) + HeaderLen
	}

	if entry.total < 0 {
		return
	}
	delete(s.reasm, key)

	// Reconstruct a minimal header with fragmentation cleared and fire
	// receive recursively (spec §4.4).
	rebuilt := make([]byte, entry.total)
	encodeMinimalHeader(rebuilt, entry.proto, entry.src, entry.dst, uint16(entry.total))
	copy(rebuilt[HeaderLen:], entry.buf[:entry.total-HeaderLen])
	s.Receive(rebuilt)
}

func (s *Stack) evictStale() {
	now := s.clock.UptimeMS()
	for k, e := range s.reasm {
		if now-e.started > reassemblyTimeoutMS {
			delete(s.reasm, k)
		}
	}
}

func encodeMinimalHeader(buf []byte, proto uint8, src, dst [4]byte, totalLen uint16) {
	buf[0] = 0x45
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], totalLen)
	buf[8] = 64
	buf[9] = proto
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])
	binary.BigEndian.PutUint16(buf[10:12], 0)
	binary.BigEndian.PutUint16(buf[10:12], Checksum(buf[:HeaderLen]))
}

// Send implements spec §4.4's on-send pipeline: resolve a next hop,
// build either a single packet or a run of fragments, checksum each, and
// hand them to the frame device with the destination MAC resolved by
// Resolver.
func (s *Stack) Send(dst [4]byte, proto uint8, payload []byte) error {
	if dst == s.localIP {
		return errkind.New("ipv4.send", errkind.InvalidArgument, nil)
	}
	nextHop, err := s.routes.Lookup(dst)
	if err != nil {
		return err
	}
	mac, err := s.resolver.Resolve(nextHop)
	if err != nil {
		return err
	}

	id := s.nextID
	s.nextID++

	maxPayload := s.dev.MTU() - ethHeaderLen - HeaderLen
	if len(payload) <= maxPayload {
		pkt, err := s.buildPacket(dst, proto, id, 0, false, payload)
		if err != nil {
			return err
		}
		return s.sendFrame(mac, pkt)
	}

	chunk := maxPayload &^ 7 // round down to a multiple of 8 bytes
	for off := 0; off < len(payload); off += chunk {
		end := off + chunk
		mf := true
		if end >= len(payload) {
			end = len(payload)
			mf = false
		}
		pkt, err := s.buildPacket(dst, proto, id, uint16(off/8), mf, payload[off:end])
		if err != nil {
			return err
		}
		if err := s.sendFrame(mac, pkt); err != nil {
			return err
		}
	}
	return nil
}

// buildPacket assembles one IPv4 packet: the header is built and
// checksummed in a byte slice, then header and payload are written into
// an in-memory writerseeker buffer and read back as one packet.
func (s *Stack) buildPacket(dst [4]byte, proto uint8, id, fragOff uint16, mf bool, payload []byte) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	w := ws.Writer()

	totalLen := uint16(HeaderLen + len(payload))
	flagsFrag := fragOff
	if mf {
		flagsFrag |= flagMF
	}

	hdr := make([]byte, HeaderLen)
	hdr[0] = 0x45
	hdr[1] = 0
	binary.BigEndian.PutUint16(hdr[2:4], totalLen)
	binary.BigEndian.PutUint16(hdr[4:6], id)
	binary.BigEndian.PutUint16(hdr[6:8], flagsFrag)
	hdr[8] = 64
	hdr[9] = proto
	binary.BigEndian.PutUint16(hdr[10:12], 0)
	copy(hdr[12:16], s.localIP[:])
	copy(hdr[16:20], dst[:])
	binary.BigEndian.PutUint16(hdr[10:12], Checksum(hdr))

	if _, err := w.Write(hdr); err != nil {
		return nil, errkind.New("ipv4.send", errkind.IOError, err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, errkind.New("ipv4.send", errkind.IOError, err)
	}

	reader := ws.Reader()
	out := make([]byte, totalLen)
	if _, err := reader.Read(out); err != nil {
		return nil, errkind.New("ipv4.send", errkind.IOError, err)
	}
	return out, nil
}

func (s *Stack) sendFrame(dstMAC netdev.MAC, ipPacket []byte) error {
	frame := make([]byte, ethHeaderLen+len(ipPacket))
	copy(frame[0:6], dstMAC[:])
	copy(frame[6:12], s.dev.MAC()[:])
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[ethHeaderLen:], ipPacket)
	return s.dev.Send(frame)
}

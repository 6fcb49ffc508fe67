// Package dns implements the blocking A-record resolver from spec §4.7:
// length-prefixed label encoding, compression-pointer decoding bounded to
// ten jumps, a pending-query list keyed by a monotonically increasing
// 16-bit id, and a 5-second deadline driven by a coarse millisecond
// clock.
package dns

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/IRodriguez13/IR0-sub003/internal/errkind"
	"github.com/IRodriguez13/IR0-sub003/internal/kclock"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	"github.com/IRodriguez13/IR0-sub003/internal/netdev"
	"github.com/IRodriguez13/IR0-sub003/internal/udp"
)

// EphemeralPort is the fixed local port the client registers its
// response handler on, the first time it runs (spec §4.7).
const EphemeralPort = 54321

const (
	classIN    = 1
	typeA      = 1
	maxJumps   = 10
	queryTTL   = 5 * time.Second
	pollPeriod = 10 * time.Millisecond
)

// failureSentinel is the zero address returned on timeout (spec §4.7).
var failureSentinel = [4]byte{}

type pendingQuery struct {
	name     string
	deadline uint64 // clock.UptimeMS() at which this query expires
	result   chan [4]byte
}

// Client resolves A records over a udp.Stack. One Client instance owns
// the ephemeral-port registration and the pending-query list.
type Client struct {
	udp        *udp.Stack
	dev        netdev.Device
	clock      kclock.Clock
	log        *klog.Logger
	nextID     uint16
	pending    map[uint16]*pendingQuery
	registered bool
}

// New returns a Client bound to u for sending queries and dev for driving
// receive polling while it waits.
func New(u *udp.Stack, dev netdev.Device, clock kclock.Clock, log *klog.Logger) *Client {
	return &Client{udp: u, dev: dev, clock: clock, log: log, pending: make(map[uint16]*pendingQuery)}
}

func (c *Client) ensureRegistered() {
	if c.registered {
		return
	}
	c.udp.Handle(EphemeralPort, c.onResponse)
	c.registered = true
}

// encodeName encodes name as length-prefixed labels terminated by a zero
// byte (spec §4.7).
func encodeName(name string) []byte {
	var out []byte
	for _, label := range strings.Split(strings.TrimSuffix(name, "."), ".") {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0)
}

// buildQuery constructs an A/IN query with recursion-desired set and the
// given transaction id.
func buildQuery(id uint16, name string) []byte {
	hdr := make([]byte, 12)
	binary.BigEndian.PutUint16(hdr[0:2], id)
	hdr[2] = 1 << 0 // RD (recursion desired)
	binary.BigEndian.PutUint16(hdr[4:6], 1)

	question := encodeName(name)
	question = binary.BigEndian.AppendUint16(question, typeA)
	question = binary.BigEndian.AppendUint16(question, classIN)

	return append(hdr, question...)
}

// decodeName decodes a (possibly compressed) name starting at offset
// within msg, bounded to maxJumps pointer follows (spec §4.7).
func decodeName(msg []byte, offset int) (string, int, error) {
	var labels []string
	jumps := 0
	pos := offset
	consumed := -1

	for {
		if pos >= len(msg) {
			return "", 0, errkind.New("dns.decodeName", errkind.InvalidArgument, nil)
		}
		b := msg[pos]
		if b&0xc0 == 0xc0 {
			if jumps >= maxJumps {
				return "", 0, errkind.New("dns.decodeName", errkind.Overflow, nil)
			}
			if pos+1 >= len(msg) {
				return "", 0, errkind.New("dns.decodeName", errkind.InvalidArgument, nil)
			}
			if consumed < 0 {
				consumed = pos + 2 - offset
			}
			ptr := int(b&0x3f)<<8 | int(msg[pos+1])
			pos = ptr
			jumps++
			continue
		}
		if b == 0 {
			if consumed < 0 {
				consumed = pos + 1 - offset
			}
			break
		}
		length := int(b)
		pos++
		if pos+length > len(msg) {
			return "", 0, errkind.New("dns.decodeName", errkind.InvalidArgument, nil)
		}
		labels = append(labels, string(msg[pos:pos+length]))
		pos += length
	}
	return strings.Join(labels, "."), consumed, nil
}

// answer is one decoded resource record.
type answer struct {
	class  uint16
	rtype  uint16
	rdlen  uint16
	rdata  []byte
}

// parseResponse walks a DNS response looking for the first answer record
// whose class is IN and whose length is 4 (spec §4.7 "Return on first
// A-record answer").
func parseResponse(msg []byte) ([4]byte, bool) {
	if len(msg) < 12 {
		return failureSentinel, false
	}
	qdcount := binary.BigEndian.Uint16(msg[4:6])
	ancount := binary.BigEndian.Uint16(msg[6:8])

	pos := 12
	for i := uint16(0); i < qdcount; i++ {
		_, n, err := decodeName(msg, pos)
		if err != nil {
			return failureSentinel, false
		}
		pos += n + 4 // qtype + qclass
	}

	for i := uint16(0); i < ancount; i++ {
		_, n, err := decodeName(msg, pos)
		if err != nil {
			return failureSentinel, false
		}
		pos += n
		if pos+10 > len(msg) {
			return failureSentinel, false
		}
		a := answer{
			rtype: binary.BigEndian.Uint16(msg[pos : pos+2]),
			class: binary.BigEndian.Uint16(msg[pos+2 : pos+4]),
			rdlen: binary.BigEndian.Uint16(msg[pos+8 : pos+10]),
		}
		pos += 10
		if pos+int(a.rdlen) > len(msg) {
			return failureSentinel, false
		}
		a.rdata = msg[pos : pos+int(a.rdlen)]
		pos += int(a.rdlen)

		if a.rtype == typeA && a.class == classIN && a.rdlen == 4 {
			var ip [4]byte
			copy(ip[:], a.rdata)
			return ip, true
		}
	}
	return failureSentinel, false
}

func (c *Client) onResponse(srcIP [4]byte, srcPort uint16, payload []byte) {
	if len(payload) < 2 {
		return
	}
	id := binary.BigEndian.Uint16(payload[0:2])
	pq, ok := c.pending[id]
	if !ok {
		return
	}
	ip, ok := parseResponse(payload)
	if !ok {
		return
	}
	delete(c.pending, id)
	pq.result <- ip
}

// Resolve sends an A/IN query for name to server and blocks until a
// matching answer arrives or the deadline passes (spec §4.7 loop: deadline check, 10ms poll cadence, per-second
// progress log, first matching answer wins).
func (c *Client) Resolve(server [4]byte, name string) ([4]byte, error) {
	c.ensureRegistered()

	id := c.nextID
	c.nextID++

	pq := &pendingQuery{name: name, deadline: c.clock.UptimeMS() + uint64(queryTTL.Milliseconds()), result: make(chan [4]byte, 1)}
	c.pending[id] = pq

	if err := c.udp.Send(server, EphemeralPort, 53, buildQuery(id, name)); err != nil {
		delete(c.pending, id)
		return failureSentinel, err
	}

	lastLog := c.clock.UptimeMS()
	for {
		select {
		case ip := <-pq.result:
			return ip, nil
		default:
		}

		now := c.clock.UptimeMS()
		if now >= pq.deadline {
			delete(c.pending, id)
			return failureSentinel, errkind.New("dns.resolve", errkind.Timeout, nil)
		}
		if now-lastLog >= 1000 {
			c.log.Infof("dns: still waiting for answer to %q (id=%d)", name, id)
			lastLog = now
		}

		c.dev.Poll()
		time.Sleep(pollPeriod)
	}
}

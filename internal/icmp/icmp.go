// Package icmp implements the echo-only ICMP handler from spec §4.5,
// reusing golang.org/x/net/icmp's Message/Echo shapes and
// golang.org/x/net/ipv4's ICMPType constants instead of hand-rolling the
// wire format.
package icmp

import (
	"github.com/IRodriguez13/IR0-sub003/internal/ipv4"
	"github.com/IRodriguez13/IR0-sub003/internal/klog"
	xicmp "golang.org/x/net/icmp"
	xipv4 "golang.org/x/net/ipv4"
)

// ProtocolNumber is the IP protocol number for ICMP (IANA).
const ProtocolNumber = 1

// Sender is the narrow capability Handler needs to reply: build and send
// one IPv4 datagram.
type Sender interface {
	Send(dst [4]byte, proto uint8, payload []byte) error
	LastReceivedFrom() [4]byte
}

// Handler answers echo requests over a Sender and logs anything else
// (spec §4.5: "Only echo request and echo reply are handled. ...
// Malformed or unknown types are logged and dropped.").
type Handler struct {
	send Sender
	log  *klog.Logger
}

// New returns a Handler that sends its replies through send. It does not
// register the handler; Register installs it on a Stack.
func New(send Sender, log *klog.Logger) *Handler {
	return &Handler{send: send, log: log}
}

// Register installs h as stack's ICMP protocol handler.
func (h *Handler) Register(stack *ipv4.Stack) {
	stack.RegisterProtocol(ProtocolNumber, h.Receive)
}

// Receive parses an incoming ICMP message and, if it is an echo request,
// clones it into an echo reply, recomputes the checksum, and sends it
// back to the remembered source of the last IP receive.
func (h *Handler) Receive(src [4]byte, payload []byte) {
	msg, err := xicmp.ParseMessage(ProtocolNumber, payload)
	if err != nil {
		h.log.Warnf("icmp: malformed message from %v: %v", src, err)
		return
	}

	echo, ok := msg.Body.(*xicmp.Echo)
	if msg.Type != xipv4.ICMPTypeEcho || !ok {
		h.log.Warnf("icmp: dropping unhandled type %v from %v", msg.Type, src)
		return
	}

	reply := xicmp.Message{
		Type: xipv4.ICMPTypeEchoReply,
		Code: 0,
		Body: &xicmp.Echo{ID: echo.ID, Seq: echo.Seq, Data: echo.Data},
	}
	wire, err := reply.Marshal(nil)
	if err != nil {
		h.log.Warnf("icmp: marshaling reply: %v", err)
		return
	}

	if err := h.send.Send(h.send.LastReceivedFrom(), ProtocolNumber, wire); err != nil {
		h.log.Warnf("icmp: sending reply: %v", err)
	}
}

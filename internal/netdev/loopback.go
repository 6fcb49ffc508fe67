package netdev

// Loopback is an in-process Device used by tests and by cmd/ir0's
// simulation harness: frames sent are recorded for inspection through
// Sent, and Deliver hands a frame to the installed receive callback; Send
// never loops a frame back by itself. It is the frame-device analogue of
// blockdev.MemDevice.
type Loopback struct {
	mac   MAC
	mtu   int
	flags Flag
	recv  RecvFunc
	sent  [][]byte
}

// NewLoopback returns a Loopback device with the given hardware address.
func NewLoopback(mac MAC) *Loopback {
	return &Loopback{mac: mac, mtu: 1500, flags: FlagUp | FlagRunning}
}

func (l *Loopback) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.sent = append(l.sent, cp)
	return nil
}

// Deliver feeds frame into the installed receive callback as if it had
// arrived over the wire, the counterpart to Send for test setups that
// want to simulate an incoming packet.
func (l *Loopback) Deliver(frame []byte) {
	if l.recv != nil {
		l.recv(frame)
	}
}

// Sent returns every frame passed to Send so far, in order.
func (l *Loopback) Sent() [][]byte { return l.sent }

func (l *Loopback) Poll() {}

func (l *Loopback) MAC() MAC { return l.mac }

func (l *Loopback) MTU() int { return l.mtu }

func (l *Loopback) Flags() Flag { return l.flags }

func (l *Loopback) OnReceive(fn RecvFunc) { l.recv = fn }

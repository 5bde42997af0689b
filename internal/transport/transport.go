// Package transport moves opaque radio frames between nodes.
// Delivery is best effort: no ordering, acknowledgement or retransmission.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/juju/errors"
)

// Addr is fixed-size peer key: IPv4 address and port.
type Addr [6]byte

func AddrFromUDP(a *net.UDPAddr) Addr {
	var r Addr
	if a == nil {
		return r
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		copy(r[:4], ip4)
	}
	binary.BigEndian.PutUint16(r[4:], uint16(a.Port))
	return r
}

func ParseAddr(s string) (Addr, error) {
	a, err := net.ResolveUDPAddr("udp4", s)
	if err != nil {
		return Addr{}, errors.Annotatef(err, "transport addr=%s", s)
	}
	return AddrFromUDP(a), nil
}

func (self Addr) IsZero() bool { return self == Addr{} }

func (self Addr) UDP() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(self[0], self[1], self[2], self[3]),
		Port: int(binary.BigEndian.Uint16(self[4:])),
	}
}

func (self Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", self[0], self[1], self[2], self[3], binary.BigEndian.Uint16(self[4:]))
}

type Frame struct {
	From Addr
	Data []byte
}

var ErrClosed = errors.New("transport closed")

type Transport interface {
	// Local address of this node.
	Addr() Addr
	Send(to Addr, b []byte) error
	// Broadcast reaches every node in radio range except sender.
	Broadcast(b []byte) error
	// Recv blocks until next frame, ctx done or Close.
	Recv(ctx context.Context) (Frame, error)
	Close() error
}

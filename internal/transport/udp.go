package transport

import (
	"context"
	stderrors "errors"
	"net"
	"syscall"
	"time"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const maxDatagram = 512

// UDP carries frames as datagrams, broadcast goes to configured broadcast address.
type UDP struct {
	conn  *net.UDPConn
	local Addr
	bcast *net.UDPAddr
}

func ListenUDP(ctx context.Context, listen, broadcast string) (*UDP, error) {
	lc := net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			if serr == nil {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}}
	pc, err := lc.ListenPacket(ctx, "udp4", listen)
	if err != nil {
		return nil, errors.Annotatef(err, "radio listen=%s", listen)
	}
	conn := pc.(*net.UDPConn)
	bcast, err := net.ResolveUDPAddr("udp4", broadcast)
	if err != nil {
		conn.Close()
		return nil, errors.Annotatef(err, "radio broadcast=%s", broadcast)
	}
	self := &UDP{
		conn:  conn,
		local: AddrFromUDP(conn.LocalAddr().(*net.UDPAddr)),
		bcast: bcast,
	}
	return self, nil
}

func (self *UDP) Addr() Addr { return self.local }

func (self *UDP) Send(to Addr, b []byte) error {
	_, err := self.conn.WriteToUDP(b, to.UDP())
	return errors.Annotatef(err, "send to=%s", to)
}

func (self *UDP) Broadcast(b []byte) error {
	_, err := self.conn.WriteToUDP(b, self.bcast)
	return errors.Annotate(err, "broadcast")
}

func (self *UDP) Recv(ctx context.Context) (Frame, error) {
	buf := make([]byte, maxDatagram)
	for {
		// short deadline to notice ctx cancel
		if err := self.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return Frame{}, errors.Trace(err)
		}
		n, from, err := self.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if ctx.Err() != nil {
					return Frame{}, ctx.Err()
				}
				continue
			}
			if stderrors.Is(err, net.ErrClosed) {
				return Frame{}, ErrClosed
			}
			return Frame{}, errors.Annotate(err, "recv")
		}
		fa := AddrFromUDP(from)
		if fa == self.local {
			// own broadcast echo
			continue
		}
		return Frame{From: fa, Data: append([]byte(nil), buf[:n]...)}, nil
	}
}

func (self *UDP) Close() error { return self.conn.Close() }

package transport

import (
	"context"
	"fmt"
	"sync"
)

// Hub is in-memory radio medium for tests. Every Mock attached to the same
// Hub hears broadcasts of the others.
type Hub struct {
	mu    sync.Mutex
	nodes map[Addr]*Mock
}

func NewHub() *Hub { return &Hub{nodes: make(map[Addr]*Mock)} }

func (self *Hub) Attach(a Addr) *Mock {
	m := &Mock{
		hub:   self,
		addr:  a,
		inbox: make(chan Frame, 256),
		done:  make(chan struct{}),
	}
	self.mu.Lock()
	self.nodes[a] = m
	self.mu.Unlock()
	return m
}

func (self *Hub) deliver(from, to Addr, b []byte) {
	self.mu.Lock()
	m := self.nodes[to]
	self.mu.Unlock()
	if m != nil {
		m.put(Frame{From: from, Data: append([]byte(nil), b...)})
	}
}

func (self *Hub) broadcast(from Addr, b []byte) {
	self.mu.Lock()
	targets := make([]*Mock, 0, len(self.nodes))
	for a, m := range self.nodes {
		if a != from {
			targets = append(targets, m)
		}
	}
	self.mu.Unlock()
	for _, m := range targets {
		m.put(Frame{From: from, Data: append([]byte(nil), b...)})
	}
}

// Mock is one node endpoint; it records everything sent for assertions.
type Mock struct {
	hub   *Hub
	addr  Addr
	inbox chan Frame
	once  sync.Once
	done  chan struct{}

	mu   sync.Mutex
	sent []Frame // From field holds destination, zero for broadcast
}

// MockAddr builds distinct test address from small number.
func MockAddr(n uint16) Addr {
	return Addr{10, 0, byte(n >> 8), byte(n), 0x1e, 0x14}
}

func (self *Mock) Addr() Addr { return self.addr }

func (self *Mock) Send(to Addr, b []byte) error {
	select {
	case <-self.done:
		return ErrClosed
	default:
	}
	self.record(to, b)
	if self.hub != nil {
		self.hub.deliver(self.addr, to, b)
	}
	return nil
}

func (self *Mock) Broadcast(b []byte) error {
	select {
	case <-self.done:
		return ErrClosed
	default:
	}
	self.record(Addr{}, b)
	if self.hub != nil {
		self.hub.broadcast(self.addr, b)
	}
	return nil
}

func (self *Mock) Recv(ctx context.Context) (Frame, error) {
	select {
	case f := <-self.inbox:
		return f, nil
	case <-self.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// TryRecv returns queued frame without blocking.
func (self *Mock) TryRecv() (Frame, bool) {
	select {
	case f := <-self.inbox:
		return f, true
	default:
		return Frame{}, false
	}
}

// Inject queues frame as if received from peer.
func (self *Mock) Inject(from Addr, b []byte) { self.put(Frame{From: from, Data: b}) }

func (self *Mock) Close() error {
	self.once.Do(func() { close(self.done) })
	return nil
}

// Sent returns copy of recorded outgoing frames.
func (self *Mock) Sent() []Frame {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]Frame(nil), self.sent...)
}

func (self *Mock) record(to Addr, b []byte) {
	self.mu.Lock()
	self.sent = append(self.sent, Frame{From: to, Data: append([]byte(nil), b...)})
	self.mu.Unlock()
}

func (self *Mock) put(f Frame) {
	select {
	case self.inbox <- f:
	default:
		panic(fmt.Sprintf("code error transport.Mock inbox overflow addr=%s", self.addr))
	}
}

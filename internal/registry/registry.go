// Package registry maps leaf transport addresses to small identities.
// Identities are issued 1,2,3... in first-seen order and never reused.
// Zero belongs to the gateway itself.
package registry

import (
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/juju/errors"
)

const (
	DefaultCapacity = 16
	MaxCapacity     = 255
)

var ErrRegistryFull = errors.New("neighbor registry full")

func IsFull(err error) bool { return errors.Cause(err) == ErrRegistryFull }

type Entry struct {
	Addr     transport.Addr
	Identity uint8
}

// Registry is owned by single gateway loop, no locking.
type Registry struct {
	cap     int
	entries []Entry
}

func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &Registry{cap: capacity, entries: make([]Entry, 0, capacity)}
}

func (self *Registry) Cap() int { return self.cap }
func (self *Registry) Len() int { return len(self.entries) }

func (self *Registry) Entries() []Entry {
	return append([]Entry(nil), self.entries...)
}

func (self *Registry) Lookup(addr transport.Addr) (uint8, bool) {
	for _, e := range self.entries {
		if e.Addr == addr {
			return e.Identity, true
		}
	}
	return 0, false
}

// LookupOrAssign returns existing identity of addr or issues next one.
// created reports new entry. Full registry returns ErrRegistryFull.
func (self *Registry) LookupOrAssign(addr transport.Addr) (identity uint8, created bool, err error) {
	if id, ok := self.Lookup(addr); ok {
		return id, false, nil
	}
	if len(self.entries) >= self.cap {
		return 0, false, errors.Annotatef(ErrRegistryFull, "addr=%s capacity=%d", addr, self.cap)
	}
	id := uint8(len(self.entries) + 1)
	self.entries = append(self.entries, Entry{Addr: addr, Identity: id})
	return id, true, nil
}

const entrySize = len(transport.Addr{}) + 1

// MarshalBinary: count byte, then addr+identity per entry.
func (self *Registry) MarshalBinary() ([]byte, error) {
	b := make([]byte, 1, 1+len(self.entries)*entrySize)
	b[0] = byte(len(self.entries))
	for _, e := range self.entries {
		b = append(b, e.Addr[:]...)
		b = append(b, e.Identity)
	}
	return b, nil
}

// UnmarshalBinary replaces entries. Identities must form 1..n sequence.
func (self *Registry) UnmarshalBinary(b []byte) error {
	if len(b) < 1 {
		return errors.NotValidf("registry data length=0")
	}
	n := int(b[0])
	if len(b) != 1+n*entrySize {
		return errors.NotValidf("registry data length=%d count=%d", len(b), n)
	}
	if self.cap == 0 {
		self.cap = DefaultCapacity
	}
	if n > self.cap {
		return errors.NotValidf("registry count=%d capacity=%d", n, self.cap)
	}
	entries := make([]Entry, 0, self.cap)
	for i := 0; i < n; i++ {
		var e Entry
		off := 1 + i*entrySize
		copy(e.Addr[:], b[off:off+len(e.Addr)])
		e.Identity = b[off+len(e.Addr)]
		if int(e.Identity) != i+1 {
			return errors.NotValidf("registry entry=%d identity=%d", i, e.Identity)
		}
		entries = append(entries, e)
	}
	self.entries = entries
	return nil
}

// Package batch accumulates leaf samples into fixed-size transmission batches.
package batch

import (
	"fmt"

	"github.com/dustnet/dustnet/internal/clock"
)

// Capacity is number of samples carried by one DataRequest.
const Capacity = 60

// Payload stores 16 bit samples split into low and high byte arrays, wire order.
type Payload struct {
	Low  [Capacity]byte
	High [Capacity]byte
}

func (self *Payload) Set(i int, v uint16) {
	self.Low[i] = byte(v)
	self.High[i] = byte(v >> 8)
}

func (self *Payload) Sample(i int) uint16 {
	return uint16(self.High[i])<<8 | uint16(self.Low[i])
}

type Batch struct {
	// Time of sample index 0.
	Time    clock.WallClock
	Payload Payload
	Len     int
}

func (self *Batch) Samples() []uint16 {
	r := make([]uint16, self.Len)
	for i := range r {
		r[i] = self.Payload.Sample(i)
	}
	return r
}

type Status uint8

const (
	Collecting Status = iota
	Full
)

func (self Status) String() string {
	switch self {
	case Collecting:
		return "collecting"
	case Full:
		return "full"
	}
	return fmt.Sprintf("batch.Status(%d)", uint8(self))
}

// Buffer holds one batch in progress, no double buffering.
type Buffer struct {
	cur Batch
}

func (self *Buffer) Len() int { return self.cur.Len }
func (self *Buffer) Reset()   { self.cur = Batch{} }

// Push appends sample; now is recorded only for index 0.
// On 60th push returns Full with complete batch and buffer becomes empty.
func (self *Buffer) Push(v uint16, now clock.WallClock) (Status, Batch) {
	if self.cur.Len == 0 {
		self.cur.Time = now
	}
	self.cur.Payload.Set(self.cur.Len, v)
	self.cur.Len++
	if self.cur.Len < Capacity {
		return Collecting, Batch{}
	}
	full := self.cur
	self.cur = Batch{}
	return Full, full
}

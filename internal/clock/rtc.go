package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/temoto/atomic_clock"
)

// Clock is the real-time clock peripheral as seen by node sessions.
type Clock interface {
	Now() WallClock
	Set(WallClock)
}

// RTC is software real-time clock: wall time of last Set plus elapsed system time.
type RTC struct {
	base int64              // atomic, unix nanoseconds of WallClock at last Set
	at   atomic_clock.Clock // monotonic source at last Set
}

func NewRTC(initial WallClock) *RTC {
	r := &RTC{}
	r.Set(initial)
	return r
}

// NewSystemRTC starts from current system UTC time.
func NewSystemRTC() *RTC { return NewRTC(FromTime(time.Now().UTC())) }

func (self *RTC) Now() WallClock {
	t := time.Unix(0, atomic.LoadInt64(&self.base)).Add(atomic_clock.Since(&self.at))
	return FromTime(t.UTC())
}

func (self *RTC) Set(w WallClock) {
	atomic.StoreInt64(&self.base, w.Time().UnixNano())
	self.at.SetNow()
}

// Manual clock only changes on Set or Advance, for tests and simulations.
type Manual struct {
	mu sync.Mutex
	w  WallClock
}

func NewManual(w WallClock) *Manual { return &Manual{w: w} }

func (self *Manual) Now() WallClock {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.w
}

func (self *Manual) Set(w WallClock) {
	self.mu.Lock()
	self.w = w
	self.mu.Unlock()
}

// Advance steps n seconds forward using the same calendar table as records.
func (self *Manual) Advance(n int) {
	self.mu.Lock()
	for i := 0; i < n; i++ {
		self.w = AdvanceOneSecond(self.w)
	}
	self.mu.Unlock()
}

package helpers

import (
	"sync/atomic"
	"time"

	"github.com/temoto/atomic_clock"
)

// Backoff is limited exponential delay between retries.
// First delay is always 0, every Failure() multiplies next delay by K.
type Backoff struct {
	next int64 // atomic align
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution, default=1ms
}

// DelayAfter usage:
//   for {
//     err := op()
//     time.Sleep(backoff.DelayAfter(err == nil))
//   }
func (self *Backoff) DelayAfter(success bool) time.Duration {
	atomic.CompareAndSwapInt64(&self.next, 0, int64(self.Min))
	self.Update(success)
	return self.DelayBefore()
}

// DelayBefore is remaining delay since last Update.
func (self *Backoff) DelayBefore() time.Duration {
	next := time.Duration(atomic.LoadInt64(&self.next))
	if next == 0 {
		return 0
	}
	delay := self.limit(next)
	since := atomic_clock.Since(&self.last)
	if since >= delay {
		return 0
	}
	return self.round(delay - since)
}

func (self *Backoff) Failure() {
	next := time.Duration(atomic.LoadInt64(&self.next))
	if next == 0 {
		next = self.Min
	}
	next = self.limit(time.Duration(float32(next) * self.K))
	self.last.SetNow()
	atomic.StoreInt64(&self.next, int64(next))
}

func (self *Backoff) Reset() {
	self.last.SetNow()
	atomic.StoreInt64(&self.next, int64(self.Min))
}

func (self *Backoff) Update(success bool) {
	if success {
		self.Reset()
	} else {
		self.Failure()
	}
}

func (self *Backoff) limit(d time.Duration) time.Duration {
	if d < self.Min {
		d = self.Min
	}
	if d > self.Max {
		d = self.Max
	}
	return self.round(d)
}

func (self *Backoff) round(d time.Duration) time.Duration {
	res := self.Res
	if res == 0 {
		res = time.Millisecond
	}
	return d / res * res
}

// Package sampler acquires raw analog readings for leaf batches.
package sampler

import (
	"sync"

	"github.com/juju/errors"
)

type Sampler interface {
	Sample() (uint16, error)
}

// ADC reads one conversion from channel.
type ADC interface {
	Read(channel int) (uint16, error)
}

// Func adapts plain function.
type Func func() (uint16, error)

func (self Func) Sample() (uint16, error) { return self() }

// Mock returns queued values in order, then repeats last one.
type Mock struct {
	mu     sync.Mutex
	values []uint16
	err    error
	n      int
}

func NewMock(values ...uint16) *Mock { return &Mock{values: values} }

func (self *Mock) Sample() (uint16, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.err != nil {
		return 0, self.err
	}
	if len(self.values) == 0 {
		return 0, errors.NotFoundf("sampler mock values")
	}
	i := self.n
	if i >= len(self.values) {
		i = len(self.values) - 1
	}
	self.n++
	return self.values[i], nil
}

func (self *Mock) SetError(err error) {
	self.mu.Lock()
	self.err = err
	self.mu.Unlock()
}

// Count of Sample calls.
func (self *Mock) Count() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.n
}

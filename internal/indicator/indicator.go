// Package indicator drives status LEDs: green double flash on identity reply,
// blue flash on host command and alarm.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/temoto/gpio-cdev-go"
)

type Color uint8

const (
	Green Color = iota
	Blue
)

func (self Color) String() string {
	switch self {
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return fmt.Sprintf("Color(%d)", uint8(self))
}

type Indicator interface {
	// Flash must not block caller.
	Flash(c Color, times int)
}

type Noop struct{}

func (Noop) Flash(Color, int) {}

const (
	DefaultOn  = 100 * time.Millisecond
	DefaultOff = 150 * time.Millisecond
)

type GPIO struct {
	log   *log2.Log
	mu    sync.Mutex
	chip  gpio.Chiper
	lines gpio.Lineser
	set   [2]gpio.LineSetFunc
	on    time.Duration
	off   time.Duration
}

func OpenGPIO(chipName string, green, blue uint32, on, off time.Duration, log *log2.Log) (*GPIO, error) {
	chip, err := gpio.Open(chipName, "dustnet-led")
	if err != nil {
		return nil, errors.Annotatef(err, "indicator gpio chip=%s", chipName)
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, "dustnet-led", green, blue)
	if err != nil {
		chip.Close()
		return nil, errors.Annotatef(err, "indicator gpio lines=%d,%d", green, blue)
	}
	if on <= 0 {
		on = DefaultOn
	}
	if off <= 0 {
		off = DefaultOff
	}
	self := &GPIO{
		log:   log,
		chip:  chip,
		lines: lines,
		on:    on,
		off:   off,
	}
	self.set[Green] = lines.SetFunc(green)
	self.set[Blue] = lines.SetFunc(blue)
	return self, nil
}

func (self *GPIO) Flash(c Color, times int) {
	if int(c) >= len(self.set) || times <= 0 {
		return
	}
	go self.blink(c, times)
}

func (self *GPIO) blink(c Color, times int) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.lines == nil {
		return
	}
	for i := 0; i < times; i++ {
		self.set[c](1)
		if err := self.lines.Flush(); err != nil {
			self.log.Errorf("indicator %s flush err=%v", c, err)
			return
		}
		time.Sleep(self.on)
		self.set[c](0)
		if err := self.lines.Flush(); err != nil {
			self.log.Errorf("indicator %s flush err=%v", c, err)
			return
		}
		time.Sleep(self.off)
	}
}

func (self *GPIO) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	var errs []error
	if self.lines != nil {
		errs = append(errs, self.lines.Close())
		self.lines = nil
	}
	if self.chip != nil {
		errs = append(errs, self.chip.Close())
		self.chip = nil
	}
	for _, e := range errs {
		if e != nil {
			return errors.Annotate(e, "indicator close")
		}
	}
	return nil
}

type Event struct {
	Color Color
	Times int
}

// Mock records flashes.
type Mock struct {
	mu     sync.Mutex
	events []Event
}

func (self *Mock) Flash(c Color, times int) {
	self.mu.Lock()
	self.events = append(self.events, Event{c, times})
	self.mu.Unlock()
}

func (self *Mock) Events() []Event {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]Event(nil), self.events...)
}

package sampler

import (
	"time"

	"github.com/juju/errors"
)

// Sharp GP2Y1010 style pulse timing: IR LED on, sample after 280us,
// hold 40us, then LED off for rest of 10ms cycle.
const (
	DefaultOversample = 20
	DefaultSampleWait = 280 * time.Microsecond
	DefaultHoldWait   = 40 * time.Microsecond
	DefaultSleepWait  = 9680 * time.Microsecond
)

// LED drives sensor IR LED. Output is active low.
type LED interface {
	Set(on bool) error
}

// NoLED is for sensor boards with LED wired on permanently.
type NoLED struct{}

func (NoLED) Set(bool) error { return nil }

type DustConfig struct {
	Channel    int
	Oversample int
	SampleWait time.Duration
	HoldWait   time.Duration
	SleepWait  time.Duration
}

// Dust averages Oversample pulsed ADC reads into one sample.
type Dust struct {
	adc   ADC
	led   LED
	c     DustConfig
	sleep func(time.Duration)
}

func NewDust(adc ADC, led LED, c DustConfig) *Dust {
	if led == nil {
		led = NoLED{}
	}
	if c.Oversample <= 0 {
		c.Oversample = DefaultOversample
	}
	if c.SampleWait <= 0 {
		c.SampleWait = DefaultSampleWait
	}
	if c.HoldWait <= 0 {
		c.HoldWait = DefaultHoldWait
	}
	if c.SleepWait <= 0 {
		c.SleepWait = DefaultSleepWait
	}
	return &Dust{adc: adc, led: led, c: c, sleep: time.Sleep}
}

func (self *Dust) Sample() (uint16, error) {
	var sum uint32
	for i := 0; i < self.c.Oversample; i++ {
		if err := self.led.Set(true); err != nil {
			return 0, errors.Annotate(err, "dust led on")
		}
		self.sleep(self.c.SampleWait)
		v, err := self.adc.Read(self.c.Channel)
		if err != nil {
			_ = self.led.Set(false)
			return 0, errors.Annotatef(err, "dust adc channel=%d", self.c.Channel)
		}
		sum += uint32(v)
		self.sleep(self.c.HoldWait)
		if err := self.led.Set(false); err != nil {
			return 0, errors.Annotate(err, "dust led off")
		}
		self.sleep(self.c.SleepWait)
	}
	return uint16(sum / uint32(self.c.Oversample)), nil
}

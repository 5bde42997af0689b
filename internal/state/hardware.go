package state

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustnet/dustnet/internal/indicator"
	"github.com/dustnet/dustnet/internal/sampler"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/internal/uplink"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

// hardware is opened on first use. Tests assign fields before first use.
type hardware struct {
	Radio struct {
		once
		T transport.Transport
	}
	Indicator struct {
		once
		I      indicator.Indicator
		closer io.Closer
	}
	Sampler struct {
		once
		S       sampler.Sampler
		closers []io.Closer
	}
	Uplink struct {
		once
		RW io.ReadWriteCloser
	}
}

func (g *Global) Radio(ctx context.Context) (transport.Transport, error) {
	x := &g.Hardware.Radio
	_ = x.do(func() error {
		if x.T != nil {
			return nil
		}
		cfg := &g.Config.Radio
		udp, err := transport.ListenUDP(ctx, cfg.Listen, cfg.Broadcast)
		if err != nil {
			return errors.Annotate(err, "radio")
		}
		g.Log.Debugf("radio listen=%s addr=%s broadcast=%s", cfg.Listen, udp.Addr(), cfg.Broadcast)
		x.T = udp
		return nil
	})
	return x.T, x.err
}

func (g *Global) Indicator() indicator.Indicator {
	x := &g.Hardware.Indicator
	_ = x.do(func() error {
		if x.I != nil {
			return nil
		}
		cfg := &g.Config.Indicator
		if !cfg.Enable {
			x.I = indicator.Noop{}
			return nil
		}
		on := time.Duration(cfg.OnMs) * time.Millisecond
		off := time.Duration(cfg.OffMs) * time.Millisecond
		led, err := indicator.OpenGPIO(cfg.Chip, uint32(cfg.Green), uint32(cfg.Blue), on, off, g.Log)
		if err != nil {
			// indicator is optional, keep running without it
			g.Error(err, "indicator")
			x.I = indicator.Noop{}
			return nil
		}
		x.I, x.closer = led, led
		return nil
	})
	return x.I
}

func (g *Global) Sampler() (sampler.Sampler, error) {
	x := &g.Hardware.Sampler
	_ = x.do(func() error {
		if x.S != nil {
			return nil
		}
		cfg := &g.Config.Sampler
		if cfg.Mock {
			x.S = sampler.Func(mockDust())
			return nil
		}
		adc, err := sampler.OpenMCP3008(cfg.SpiBus, cfg.SpiMode, cfg.SpiSpeed)
		if err != nil {
			x.err = errors.Annotate(err, "sampler adc")
			return x.err
		}
		x.closers = append(x.closers, adc)
		var led sampler.LED
		if cfg.LedChip != "" {
			gl, err := sampler.OpenGPIOLED(cfg.LedChip, uint32(cfg.LedLine))
			if err != nil {
				x.err = errors.Annotate(err, "sampler led")
				return x.err
			}
			x.closers = append(x.closers, gl)
			led = gl
		}
		x.S = sampler.NewDust(adc, led, sampler.DustConfig{
			Channel:    cfg.Channel,
			Oversample: cfg.Oversample,
		})
		return nil
	})
	return x.S, x.err
}

// Uplink is serial line to host, stdin/stdout when device is empty or "-".
func (g *Global) Uplink() (io.ReadWriteCloser, error) {
	x := &g.Hardware.Uplink
	_ = x.do(func() error {
		if x.RW != nil {
			return nil
		}
		cfg := &g.Config.Uplink
		if cfg.Device == "" || cfg.Device == "-" {
			x.RW = uplink.Stdio{Reader: os.Stdin, Writer: os.Stdout}
			return nil
		}
		serial, err := uplink.OpenSerial(cfg.Device, cfg.Baud)
		if err != nil {
			return errors.Annotatef(err, "uplink device=%s", cfg.Device)
		}
		x.RW = serial
		return nil
	})
	return x.RW, x.err
}

func (self *hardware) close(log *log2.Log) {
	closeLog := func(c io.Closer, what string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			log.Errorf("close %s err=%v", what, err)
		}
	}
	if self.Radio.T != nil {
		closeLog(self.Radio.T, "radio")
	}
	closeLog(self.Indicator.closer, "indicator")
	for _, c := range self.Sampler.closers {
		closeLog(c, "sampler")
	}
	if self.Uplink.RW != nil {
		closeLog(self.Uplink.RW, "uplink")
	}
}

// mockDust produces slowly varying readings, for bench runs without sensor.
func mockDust() func() (uint16, error) {
	var n uint32
	return func() (uint16, error) {
		i := atomic.AddUint32(&n, 1)
		return uint16(300 + i%17), nil
	}
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}

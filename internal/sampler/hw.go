package sampler

import (
	"github.com/juju/errors"
	"github.com/temoto/gpio-cdev-go"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const DefaultSpiSpeed = 1 * physic.MegaHertz

type SpiTxFunc func(send, recv []byte) error

// MCP3008 is 10 bit SPI ADC, single-ended mode.
type MCP3008 struct {
	tx   SpiTxFunc
	port spi.PortCloser
}

func NewMCP3008(tx SpiTxFunc) *MCP3008 { return &MCP3008{tx: tx} }

func OpenMCP3008(bus string, mode int, speed string) (*MCP3008, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	port, err := spireg.Open(bus)
	if err != nil {
		return nil, errors.Annotatef(err, "SPI Open bus=%s", bus)
	}
	freq := DefaultSpiSpeed
	if speed != "" {
		if err = freq.Set(speed); err != nil {
			port.Close()
			return nil, errors.Annotate(err, "SPI speed parse")
		}
	}
	conn, err := port.Connect(freq, spi.Mode(mode), 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotate(err, "SPI Connect")
	}
	return &MCP3008{tx: conn.Tx, port: port}, nil
}

func (self *MCP3008) Read(channel int) (uint16, error) {
	if channel < 0 || channel > 7 {
		return 0, errors.NotValidf("mcp3008 channel=%d", channel)
	}
	w := []byte{0x01, byte(0x80 | channel<<4), 0}
	r := make([]byte, 3)
	if err := self.tx(w, r); err != nil {
		return 0, errors.Annotate(err, "mcp3008 tx")
	}
	return uint16(r[1]&0x03)<<8 | uint16(r[2]), nil
}

func (self *MCP3008) Close() error {
	if self.port == nil {
		return nil
	}
	return self.port.Close()
}

// GPIOLED is active-low LED line.
type GPIOLED struct {
	chip  gpio.Chiper
	lines gpio.Lineser
	set   gpio.LineSetFunc
}

func OpenGPIOLED(chipName string, line uint32) (*GPIOLED, error) {
	chip, err := gpio.Open(chipName, "dustnet-sampler")
	if err != nil {
		return nil, errors.Annotatef(err, "sampler led chip=%s", chipName)
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, "dustnet-sampler", line)
	if err != nil {
		chip.Close()
		return nil, errors.Annotatef(err, "sampler led line=%d", line)
	}
	self := &GPIOLED{chip: chip, lines: lines, set: lines.SetFunc(line)}
	return self, self.Set(false)
}

func (self *GPIOLED) Set(on bool) error {
	if on {
		self.set(0)
	} else {
		self.set(1)
	}
	return self.lines.Flush()
}

func (self *GPIOLED) Close() error {
	err1 := self.lines.Close()
	err2 := self.chip.Close()
	if err1 != nil {
		return errors.Trace(err1)
	}
	return errors.Trace(err2)
}

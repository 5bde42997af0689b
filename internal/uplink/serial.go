// Package uplink is the gateway to host serial line: newline separated
// text in both directions.
package uplink

import (
	"os"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const DefaultBaud = 115200

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// Serial is raw 8N1 tty.
type Serial struct {
	f         *os.File
	closeOnce sync.Once
	closeErr  error
}

func OpenSerial(path string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	speed, ok := baudRates[baud]
	if !ok {
		return nil, errors.NotSupportedf("uplink baud=%d", baud)
	}
	f, err := os.OpenFile(path, unix.O_RDWR|unix.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "uplink open path=%s", path)
	}
	if err = setRaw(int(f.Fd()), speed); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "uplink termios path=%s", path)
	}
	return &Serial{f: f}, nil
}

func setRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	// blocking read of at least one byte
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (self *Serial) Read(p []byte) (int, error)  { return self.f.Read(p) }
func (self *Serial) Write(p []byte) (int, error) { return self.f.Write(p) }

// Close is safe to call many times, it also unblocks pending Read.
func (self *Serial) Close() error {
	self.closeOnce.Do(func() { self.closeErr = self.f.Close() })
	return self.closeErr
}

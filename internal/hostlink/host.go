package hostlink

import (
	"context"
	"io"

	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/uplink"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

// Inserter is satisfied by Store, tests replace it.
type Inserter interface {
	Insert(ctx context.Context, rs ...Reading) error
}

type Host struct {
	Log   *log2.Log
	Store Inserter
	Scale float64

	// OnReading is optional hook, called after successful store.
	OnReading func(Reading)
}

// PushTime sends current host wall time as gateway time command.
// Terminating NUL is part of the line, gateway strips it.
func PushTime(w io.Writer, now clock.WallClock) error {
	line := clock.FormatHostTime(now) + "\x00\n"
	return errors.Annotate(helpers.WriteAll(w, []byte(line)), "host push time")
}

// Run consumes uplink lines until r ends or ctx is done.
// Bad records are logged and skipped. Store failure stops Run.
func (self *Host) Run(ctx context.Context, r io.Reader) error {
	scale := self.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	var storeErr error
	errStop := errors.New("host stop")
	err := uplink.ReadLines(r, func(line string) bool {
		if ctx.Err() != nil {
			storeErr = errStop
			return false
		}
		if !IsRecord([]byte(line)) {
			self.Log.Debugf("host uplink line=%q", line)
			return true
		}
		reading, err := ParseRecord([]byte(line), scale)
		if err != nil {
			self.Log.Errorf("host line=%q err=%v", line, err)
			return true
		}
		if err = self.Store.Insert(ctx, reading); err != nil {
			storeErr = err
			return false
		}
		if self.OnReading != nil {
			self.OnReading(reading)
		}
		return true
	})
	if storeErr == errStop {
		return ctx.Err()
	}
	if storeErr != nil {
		return storeErr
	}
	return err
}

// Package gateway is the node-manager session: it issues leaf identities,
// corrects leaf clocks and turns data batches into uplink records.
package gateway

import (
	"io"
	"time"

	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/indicator"
	"github.com/dustnet/dustnet/internal/loop"
	"github.com/dustnet/dustnet/internal/metrics"
	"github.com/dustnet/dustnet/internal/protocol"
	"github.com/dustnet/dustnet/internal/registry"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

const DefaultAlarmPeriod = time.Minute

type Alarm interface {
	Arm(period time.Duration, t loop.Task)
}

// Forwarder receives copy of every record line, e.g. telemetry spool.
type Forwarder interface {
	Forward(line []byte) error
}

// Storer persists registry after new identity.
type Storer interface {
	Store() error
}

type Options struct {
	Log         *log2.Log
	Clock       clock.Clock
	Transport   transport.Transport
	Registry    *registry.Registry
	RegistryDB  Storer
	Uplink      io.Writer
	Forward     Forwarder
	Alarm       Alarm
	AlarmPeriod time.Duration
	Indicator   indicator.Indicator
	Metrics     *metrics.Metrics
}

// Gateway state is touched only from single loop, handlers do not lock.
type Gateway struct {
	log     *log2.Log
	clock   clock.Clock
	tr      transport.Transport
	reg     *registry.Registry
	regdb   Storer
	uplink  io.Writer
	forward Forwarder
	alarm   Alarm
	period  time.Duration
	ind     indicator.Indicator
	metrics *metrics.Metrics

	line []byte
}

func New(opt Options) *Gateway {
	if opt.Clock == nil || opt.Transport == nil || opt.Uplink == nil {
		panic("code error gateway.New requires Clock, Transport, Uplink")
	}
	self := &Gateway{
		log:     opt.Log,
		clock:   opt.Clock,
		tr:      opt.Transport,
		reg:     opt.Registry,
		regdb:   opt.RegistryDB,
		uplink:  opt.Uplink,
		forward: opt.Forward,
		alarm:   opt.Alarm,
		period:  opt.AlarmPeriod,
		ind:     opt.Indicator,
		metrics: opt.Metrics,
		line:    make([]byte, 0, 128),
	}
	if self.reg == nil {
		self.reg = registry.New(registry.DefaultCapacity)
	}
	if self.ind == nil {
		self.ind = indicator.Noop{}
	}
	if self.period <= 0 {
		self.period = DefaultAlarmPeriod
	}
	self.metrics.SetRegistrySize(self.reg.Len())
	return self
}

func (self *Gateway) Registry() *registry.Registry { return self.reg }

// HandleFrame processes one inbound radio frame. Malformed, unknown and
// unexpected messages are logged and ignored.
func (self *Gateway) HandleFrame(from transport.Addr, b []byte) {
	m, err := protocol.Unmarshal(b)
	if err != nil {
		reason := metrics.DropMalformed
		switch {
		case protocol.IsUnrecognizedTag(err):
			reason = metrics.DropUnknownTag
		case protocol.IsChecksum(err):
			reason = metrics.DropChecksum
		}
		self.metrics.Drop(reason)
		self.log.Debugf("gateway ignore frame from=%s err=%v", from, err)
		return
	}
	self.metrics.FrameIn(m.Tag().String())

	switch x := m.(type) {
	case protocol.IdentityRequest:
		self.onIdentityRequest(from, &x)
	case protocol.DataRequest:
		self.onDataRequest(from, &x)
	default:
		self.metrics.Drop(metrics.DropUnexpected)
		self.log.Debugf("gateway ignore %s from=%s", m.Tag(), from)
	}
}

func (self *Gateway) onIdentityRequest(from transport.Addr, req *protocol.IdentityRequest) {
	corrected := AdjustTime(self.clock.Now(), req.Time)
	id, created, err := self.reg.LookupOrAssign(from)
	if err != nil {
		if registry.IsFull(err) {
			self.metrics.Drop(metrics.DropRegistryFull)
		}
		self.log.Errorf("gateway drop IdentityRequest name=%q err=%v", req.Name, err)
		return
	}
	if created {
		self.metrics.IdentityAssigned(self.reg.Len())
		self.log.Infof("gateway new leaf addr=%s identity=%d name=%q", from, id, req.Name)
		if self.regdb != nil {
			if err := self.regdb.Store(); err != nil {
				self.log.Error(errors.Annotate(err, "gateway registry store"))
			}
		}
	}

	resp := protocol.IdentityResponse{Identity: id, Time: corrected, Batch: req.Batch}
	if err := self.send(from, resp); err != nil {
		self.log.Error(errors.Annotatef(err, "gateway IdentityResponse to=%s", from))
		return
	}
	self.log.Debugf("gateway IdentityResponse to=%s identity=%d time=%s", from, id, corrected)
	self.ind.Flash(indicator.Green, 2)
}

func (self *Gateway) onDataRequest(from transport.Addr, req *protocol.DataRequest) {
	if known, ok := self.reg.Lookup(from); !ok || known != req.Identity {
		self.log.Debugf("gateway DataRequest from=%s identity=%d registry=%d,%t", from, req.Identity, known, ok)
	}
	records, err := Reconstruct(req.Time, int(req.SampleCount), &req.Batch, req.Identity)
	if err != nil {
		self.metrics.Drop(metrics.DropMalformed)
		self.log.Errorf("gateway drop DataRequest from=%s err=%v", from, err)
		return
	}
	for _, r := range records {
		self.emit(r)
	}
	self.log.Debugf("gateway DataRequest from=%s identity=%d records=%d", from, req.Identity, len(records))
}

func (self *Gateway) emit(r TelemetryRecord) {
	self.line = r.AppendText(self.line[:0])
	self.line = append(self.line, '\n')
	if err := self.writeUplink(self.line); err != nil {
		return
	}
	self.metrics.RecordsOut(1)
	if self.forward != nil {
		if err := self.forward.Forward(self.line[:len(self.line)-1]); err != nil {
			self.log.Error(errors.Annotate(err, "gateway forward"))
		}
	}
}

func (self *Gateway) writeUplink(b []byte) error {
	if err := helpers.WriteAll(self.uplink, b); err != nil {
		self.metrics.UplinkError()
		err = errors.Annotate(err, "gateway uplink write")
		self.log.Error(err)
		return err
	}
	return nil
}

func (self *Gateway) send(to transport.Addr, m protocol.Message) error {
	b, err := protocol.Marshal(m)
	if err != nil {
		return errors.Trace(err)
	}
	if err = self.tr.Send(to, b); err != nil {
		return errors.Trace(err)
	}
	self.metrics.FrameOut(m.Tag().String())
	return nil
}

// Announce broadcasts current time to all leaves.
func (self *Gateway) Announce() {
	a := protocol.Announcement{
		Time:     self.clock.Now(),
		SenderID: protocol.GatewayIdentity,
		NodeID:   0,
	}
	b, err := protocol.Marshal(a)
	if err != nil {
		self.log.Error(errors.Annotate(err, "gateway announce"))
		return
	}
	if err = self.tr.Broadcast(b); err != nil {
		self.log.Error(errors.Annotate(err, "gateway announce"))
		return
	}
	self.metrics.FrameOut(a.Tag().String())
}

// HostCommand applies host time line: set clock to whole second, re-arm alarm,
// echo line back.
func (self *Gateway) HostCommand(line string) error {
	t, err := clock.ParseHostTime(line)
	if err != nil {
		self.metrics.Drop(metrics.DropHostTime)
		self.log.Errorf("gateway host command err=%v", err)
		return errors.Annotate(err, "host command")
	}
	t = t.ClearTicks()
	self.clock.Set(t)
	if self.alarm != nil {
		self.alarm.Arm(self.period, self.onAlarm)
	}
	self.ind.Flash(indicator.Blue, 1)
	self.log.Infof("gateway clock set time=%s", t)

	echo := make([]byte, 0, len(line)+1)
	echo = append(echo, trimLine(line)...)
	echo = append(echo, '\n')
	return self.writeUplink(echo)
}

func (self *Gateway) onAlarm() {
	self.ind.Flash(indicator.Blue, 1)
	self.log.Infof("gateway alarm time=%s", self.clock.Now())
}

// LogTime is periodic diagnostic clock dump.
func (self *Gateway) LogTime() {
	self.log.Debugf("gateway time=%s", self.clock.Now())
}

func trimLine(s string) string {
	for len(s) > 0 {
		switch s[len(s)-1] {
		case '\r', '\n', 0:
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}

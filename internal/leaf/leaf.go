// Package leaf is the sensor node session: it obtains identity and time
// from the gateway, then ships full sample batches as DataRequests.
package leaf

import (
	"fmt"

	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/metrics"
	"github.com/dustnet/dustnet/internal/protocol"
	"github.com/dustnet/dustnet/internal/sampler"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

type State uint8

const (
	Unidentified State = iota
	AwaitingResponse
	Identified
)

func (self State) String() string {
	switch self {
	case Unidentified:
		return "unidentified"
	case AwaitingResponse:
		return "awaiting-response"
	case Identified:
		return "identified"
	}
	return fmt.Sprintf("leaf.State(%d)", uint8(self))
}

type Options struct {
	Log       *log2.Log
	Clock     clock.Clock
	Transport transport.Transport
	Sampler   sampler.Sampler
	Metrics   *metrics.Metrics
	// Name sent in requests, default "Dust sensor".
	Name string
	// Arm starts periodic SampleTick once identity is known.
	Arm func()
}

// Leaf state is touched only from single loop.
type Leaf struct {
	log     *log2.Log
	clock   clock.Clock
	tr      transport.Transport
	sampler sampler.Sampler
	metrics *metrics.Metrics
	name    string
	arm     func()

	state    State
	identity uint8
	gateway  transport.Addr
	buf      batch.Buffer
}

func New(opt Options) *Leaf {
	if opt.Clock == nil || opt.Transport == nil || opt.Sampler == nil {
		panic("code error leaf.New requires Clock, Transport, Sampler")
	}
	self := &Leaf{
		log:     opt.Log,
		clock:   opt.Clock,
		tr:      opt.Transport,
		sampler: opt.Sampler,
		metrics: opt.Metrics,
		name:    opt.Name,
		arm:     opt.Arm,
	}
	if self.name == "" {
		self.name = protocol.SensorName
	}
	return self
}

func (self *Leaf) State() State            { return self.state }
func (self *Leaf) Identity() uint8         { return self.identity }
func (self *Leaf) Gateway() transport.Addr { return self.gateway }
func (self *Leaf) Pending() int            { return self.buf.Len() }

func (self *Leaf) HandleFrame(from transport.Addr, b []byte) {
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
		self.log.Debugf("leaf ignore frame from=%s err=%v", from, err)
		return
	}
	self.metrics.FrameIn(m.Tag().String())

	switch x := m.(type) {
	case protocol.Announcement:
		self.HandleAnnouncement(from, x)
	case protocol.IdentityResponse:
		self.onIdentityResponse(from, &x)
	default:
		self.metrics.Drop(metrics.DropUnexpected)
		self.log.Debugf("leaf ignore %s from=%s state=%s", m.Tag(), from, self.state)
	}
}

// HandleAnnouncement requests identity on first announcement seen.
// Later announcements are ignored.
func (self *Leaf) HandleAnnouncement(from transport.Addr, a protocol.Announcement) {
	if self.state != Unidentified {
		self.log.Debugf("leaf ignore announcement from=%s state=%s", from, self.state)
		return
	}
	req := protocol.IdentityRequest{
		Name:        self.name,
		Time:        a.Time,
		SampleCount: protocol.DefaultSampleCount,
	}
	if err := self.send(from, req); err != nil {
		// stay unidentified, next announcement retries
		self.log.Error(errors.Annotatef(err, "leaf IdentityRequest to=%s", from))
		return
	}
	self.gateway = from
	self.state = AwaitingResponse
	self.log.Debugf("leaf IdentityRequest to=%s time=%s", from, a.Time)
}

func (self *Leaf) onIdentityResponse(from transport.Addr, r *protocol.IdentityResponse) {
	if self.state != AwaitingResponse {
		self.metrics.Drop(metrics.DropUnexpected)
		self.log.Debugf("leaf ignore IdentityResponse from=%s state=%s", from, self.state)
		return
	}
	if from != self.gateway {
		self.log.Debugf("leaf IdentityResponse from=%s expected=%s", from, self.gateway)
	}
	self.identity = r.Identity
	self.clock.Set(r.Time)
	self.state = Identified
	self.log.Infof("leaf identified identity=%d gateway=%s time=%s", r.Identity, self.gateway, r.Time)
	if self.arm != nil {
		self.arm()
	}
}

// SampleTick acquires one sample. Full batch is sent as DataRequest.
func (self *Leaf) SampleTick() {
	if self.state != Identified {
		return
	}
	v, err := self.sampler.Sample()
	if err != nil {
		self.log.Error(errors.Annotate(err, "leaf sample"))
		return
	}
	self.metrics.Sample()
	status, full := self.buf.Push(v, self.clock.Now())
	if status != batch.Full {
		return
	}
	req := protocol.DataRequest{
		Name:        self.name,
		Identity:    self.identity,
		Time:        full.Time,
		SampleCount: uint8(full.Len),
		Batch:       full.Payload,
	}
	if err := self.send(self.gateway, req); err != nil {
		self.log.Error(errors.Annotatef(err, "leaf DataRequest to=%s", self.gateway))
		return
	}
	self.log.Debugf("leaf DataRequest identity=%d time=%s", self.identity, full.Time)
}

func (self *Leaf) send(to transport.Addr, m protocol.Message) error {
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

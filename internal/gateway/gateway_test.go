package gateway

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dustnet/dustnet/crc"
	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/indicator"
	"github.com/dustnet/dustnet/internal/loop"
	"github.com/dustnet/dustnet/internal/metrics"
	"github.com/dustnet/dustnet/internal/protocol"
	"github.com/dustnet/dustnet/internal/registry"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var gatewayTime = clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25, Second: 10}

type mockAlarm struct {
	period time.Duration
	task   loop.Task
	armed  int
}

func (self *mockAlarm) Arm(period time.Duration, t loop.Task) {
	self.period = period
	self.task = t
	self.armed++
}

type mockForwarder struct{ mock.Mock }

func (self *mockForwarder) Forward(line []byte) error {
	args := self.Called(string(line))
	return args.Error(0)
}

type countStorer struct{ n int }

func (self *countStorer) Store() error { self.n++; return nil }

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("uplink unplugged") }

type env struct {
	g       *Gateway
	hub     *transport.Hub
	tr      *transport.Mock
	clock   *clock.Manual
	uplink  *bytes.Buffer
	alarm   *mockAlarm
	ind     *indicator.Mock
	metrics *metrics.Metrics
	store   *countStorer
}

func newEnv(t testing.TB, opt Options) *env {
	e := &env{
		hub:     transport.NewHub(),
		clock:   clock.NewManual(gatewayTime),
		uplink:  bytes.NewBuffer(nil),
		alarm:   &mockAlarm{},
		ind:     &indicator.Mock{},
		metrics: metrics.New("gateway"),
		store:   &countStorer{},
	}
	e.tr = e.hub.Attach(transport.MockAddr(1))
	opt.Log = log2.NewTest(t, log2.LDebug)
	opt.Clock = e.clock
	opt.Transport = e.tr
	if opt.Uplink == nil {
		opt.Uplink = e.uplink
	}
	opt.Alarm = e.alarm
	opt.Indicator = e.ind
	opt.Metrics = e.metrics
	opt.RegistryDB = e.store
	e.g = New(opt)
	return e
}

func mustMarshal(t testing.TB, m protocol.Message) []byte {
	b, err := protocol.Marshal(m)
	require.NoError(t, err)
	return b
}

func (e *env) lines() []string {
	s := strings.TrimSuffix(e.uplink.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestIdentityRequest(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	leafAddr := transport.MockAddr(2)
	leafTr := e.hub.Attach(leafAddr)

	var echo batch.Payload
	echo.Set(0, 0xbeef)
	reqTime := gatewayTime
	reqTime.Second = 9
	req := mustMarshal(t, protocol.IdentityRequest{Name: protocol.SensorName, Time: reqTime, SampleCount: 20, Batch: echo})
	e.g.HandleFrame(leafAddr, req)

	f, ok := leafTr.TryRecv()
	require.True(t, ok, "response expected")
	assert.Equal(t, transport.MockAddr(1), f.From)
	m, err := protocol.Unmarshal(f.Data)
	require.NoError(t, err)
	resp := m.(protocol.IdentityResponse)
	assert.Equal(t, uint8(1), resp.Identity)
	assert.Equal(t, AdjustTime(gatewayTime, reqTime), resp.Time)
	assert.Equal(t, uint8(12), resp.Time.Second)
	assert.Equal(t, echo, resp.Batch)
	assert.Equal(t, 1, e.store.n)
	assert.Equal(t, []indicator.Event{{Color: indicator.Green, Times: 2}}, e.ind.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Identities))

	// same leaf again keeps identity, registry not stored again
	e.g.HandleFrame(leafAddr, req)
	f, ok = leafTr.TryRecv()
	require.True(t, ok)
	m, err = protocol.Unmarshal(f.Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), m.(protocol.IdentityResponse).Identity)
	assert.Equal(t, 1, e.store.n)
	assert.Empty(t, e.lines(), "identity exchange writes nothing to uplink")
}

func TestRegistryFull(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	req := mustMarshal(t, protocol.IdentityRequest{Name: protocol.SensorName, Time: gatewayTime, SampleCount: 20})
	for i := 1; i <= registry.DefaultCapacity+1; i++ {
		e.g.HandleFrame(transport.MockAddr(uint16(100+i)), req)
	}
	assert.Equal(t, registry.DefaultCapacity, e.g.Registry().Len())
	sent := e.tr.Sent()
	require.Len(t, sent, registry.DefaultCapacity, "17th request dropped without reply")
	last, err := protocol.Unmarshal(sent[len(sent)-1].Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(16), last.(protocol.IdentityResponse).Identity)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Dropped.WithLabelValues(metrics.DropRegistryFull)))
}

func TestDataRequest(t *testing.T) {
	t.Parallel()
	fwd := &mockForwarder{}
	fwd.On("Forward", mock.AnythingOfType("string")).Return(nil)
	e := newEnv(t, Options{Forward: fwd})

	var p batch.Payload
	p.Low[0], p.High[0] = 0x34, 0x01
	p.Set(1, 5)
	p.Set(2, 6)
	bt := clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25, Second: 0, Ticks: 12}
	e.g.HandleFrame(transport.MockAddr(2), mustMarshal(t, protocol.DataRequest{
		Name: protocol.SensorName, Identity: 1, Time: bt, SampleCount: 3, Batch: p,
	}))

	expect := []string{
		`{"Raw": 308, "numSampl": 3, "date":"2024-03-30T18:25:00Z", "SensId":1}`,
		`{"Raw": 5, "numSampl": 3, "date":"2024-03-30T18:25:01Z", "SensId":1}`,
		`{"Raw": 6, "numSampl": 3, "date":"2024-03-30T18:25:02Z", "SensId":1}`,
	}
	assert.Equal(t, expect, e.lines())
	fwd.AssertNumberOfCalls(t, "Forward", 3)
	fwd.AssertCalled(t, "Forward", expect[0])
	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.Records))
	assert.Empty(t, e.tr.Sent(), "data request is not answered")
}

func TestIgnoredFrames(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	good := mustMarshal(t, protocol.IdentityRequest{Name: protocol.SensorName, Time: gatewayTime, SampleCount: 20})
	corrupt := append([]byte(nil), good...)
	corrupt[40] ^= 0xff
	unknown := append([]byte(nil), good...)
	unknown[0] = 9
	over := mustMarshal(t, protocol.DataRequest{Identity: 1, SampleCount: 60})
	over[29] = 61
	over[protocol.FrameSize-1] = crc.CRC8_p93_n(0, over[:protocol.FrameSize-1])

	type Case struct {
		name   string
		input  []byte
		reason string
	}
	cases := []Case{
		{"empty", nil, metrics.DropMalformed},
		{"checksum", corrupt, metrics.DropChecksum},
		{"unknown-tag", unknown, metrics.DropUnknownTag},
		{"response-to-gateway", mustMarshal(t, protocol.IdentityResponse{Identity: 3}), metrics.DropUnexpected},
		{"announcement-echo", mustMarshal(t, protocol.Announcement{}), metrics.DropUnexpected},
		{"sample-count-over", over, metrics.DropMalformed},
	}
	for _, c := range cases {
		before := testutil.ToFloat64(e.metrics.Dropped.WithLabelValues(c.reason))
		e.g.HandleFrame(transport.MockAddr(2), c.input)
		after := testutil.ToFloat64(e.metrics.Dropped.WithLabelValues(c.reason))
		assert.Equal(t, before+1, after, c.name)
	}
	assert.Empty(t, e.tr.Sent())
	assert.Empty(t, e.lines())
	assert.Equal(t, 0, e.g.Registry().Len())
}

func TestAnnounce(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	leafTr := e.hub.Attach(transport.MockAddr(2))
	e.g.Announce()
	f, ok := leafTr.TryRecv()
	require.True(t, ok)
	m, err := protocol.Unmarshal(f.Data)
	require.NoError(t, err)
	assert.Equal(t, protocol.Announcement{Time: gatewayTime, SenderID: 0, NodeID: 0}, m)
}

func TestHostCommand(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{AlarmPeriod: 30 * time.Second})

	require.NoError(t, e.g.HostCommand("2024-04-01T08:00:05.730\r\n"))
	assert.Equal(t, clock.WallClock{Year: 24, Month: 4, Day: 1, Hour: 8, Minute: 0, Second: 5}, e.clock.Now(), "fraction dropped")
	assert.Equal(t, 1, e.alarm.armed)
	assert.Equal(t, 30*time.Second, e.alarm.period)
	assert.Equal(t, []string{"2024-04-01T08:00:05.730"}, e.lines())

	e.alarm.task()
	assert.Equal(t, []indicator.Event{{Color: indicator.Blue, Times: 1}, {Color: indicator.Blue, Times: 1}}, e.ind.Events())

	// re-arm on next command
	require.NoError(t, e.g.HostCommand("2024-04-01T09:00:00.000"))
	assert.Equal(t, 2, e.alarm.armed)

	before := e.clock.Now()
	err := e.g.HostCommand("garbage")
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
	assert.Equal(t, before, e.clock.Now(), "clock untouched")
	assert.Equal(t, 2, e.alarm.armed)
	assert.Len(t, e.lines(), 2)
}

func TestDefaultAlarmPeriod(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	require.NoError(t, e.g.HostCommand("2024-04-01T08:00:05.000"))
	assert.Equal(t, DefaultAlarmPeriod, e.alarm.period)
	e.g.LogTime()
}

func TestUplinkError(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{Uplink: failWriter{}})
	e.g.HandleFrame(transport.MockAddr(2), mustMarshal(t, protocol.DataRequest{Identity: 1, Time: gatewayTime, SampleCount: 2}))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.UplinkErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.Records))
}

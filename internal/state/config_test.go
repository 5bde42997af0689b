package state

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dustnet/dustnet/internal/indicator"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/internal/uplink"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Global)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, g *Global) {
			c := g.Config
			assert.Equal(t, DefaultPersistRoot, c.Persist.Root)
			assert.Equal(t, ":7700", c.Radio.Listen)
			assert.Equal(t, "255.255.255.255:7700", c.Radio.Broadcast)
			assert.Equal(t, filepath.Join(DefaultPersistRoot, "tele"), c.Tele.PersistPath)
			assert.False(t, g.Tele.Enabled())
		}, ""},

		{"sections", `
log_debug = true
persist { root = "/var/lib/dustnet" }
radio { listen = "0.0.0.0:7701" broadcast = "10.0.0.255:7701" }
gateway { announce_sec = 3 alarm_sec = 30 registry_capacity = 32 time_log = true }
leaf { name = "Dust sensor" sample_interval_ms = 500 }
sampler { spi_bus = "SPI0.0" spi_speed = "1MHz" channel = 2 oversample = 10 led_chip = "gpiochip0" led_line = 17 }
indicator { enable = true chip = "gpiochip0" green = 5 blue = 6 }
uplink { device = "/dev/ttyAMA0" baud = 115200 }
metrics { listen = ":9100" }
host { dsn = "postgres://dust@localhost/dust" scale = 0.5 }`,
			func(t testing.TB, g *Global) {
				c := g.Config
				assert.True(t, c.LogDebug)
				assert.Equal(t, "/var/lib/dustnet", c.Persist.Root)
				assert.Equal(t, "0.0.0.0:7701", c.Radio.Listen)
				assert.Equal(t, "10.0.0.255:7701", c.Radio.Broadcast)
				assert.Equal(t, 3, c.Gateway.AnnounceSec)
				assert.Equal(t, 30, c.Gateway.AlarmSec)
				assert.Equal(t, 32, c.Gateway.RegistryCapacity)
				assert.True(t, c.Gateway.TimeLog)
				assert.Equal(t, 500, c.Leaf.SampleIntervalMs)
				assert.Equal(t, "SPI0.0", c.Sampler.SpiBus)
				assert.Equal(t, 2, c.Sampler.Channel)
				assert.Equal(t, 17, c.Sampler.LedLine)
				assert.Equal(t, 6, c.Indicator.Blue)
				assert.Equal(t, "/dev/ttyAMA0", c.Uplink.Device)
				assert.Equal(t, ":9100", c.Metrics.Listen)
				assert.Equal(t, 0.5, c.Host.Scale)
				assert.Equal(t, "/var/lib/dustnet/tele", c.Tele.PersistPath)
			}, ""},

		{"tele", `tele { enable = false mqtt_broker = "tcp://broker:1883" client_id = "gw1" }`,
			func(t testing.TB, g *Global) {
				assert.Equal(t, "tcp://broker:1883", g.Config.Tele.MqttBroker)
				assert.Equal(t, "gw1", g.Config.Tele.ClientID)
			}, ""},

		{"include-normalize", `
gateway { announce_sec = 1 }
include "./empty" {}`,
			nil, ""},

		{"include-optional", `
include "announce-9" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, g *Global) {
				assert.Equal(t, 9, g.Config.Gateway.AnnounceSec)
			}, ""},

		{"include-overwrites", `
gateway { announce_sec = 1 }
include "announce-9" {}`,
			func(t testing.TB, g *Global) {
				assert.Equal(t, 9, g.Config.Gateway.AnnounceSec)
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-capacity", `gateway { registry_capacity = 300 }`, nil, "registry_capacity=300"},
		{"error-scale", `host { scale = -1.5 }`, nil, "host.scale"},
		{"error-leaf-name", `leaf { name = "particulate-sensor-roof" }`, nil, "leaf.name=\"particulate-sensor-roof\" longer than 20"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			ctx, g := NewContext(log, "test")
			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"announce-9":   "gateway{announce_sec=9}",
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if err == nil {
				err = g.Init(ctx, cfg)
			}
			defer g.Close()
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, g)
				}
			} else {
				require.Error(t, err)
				if !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		t.Run(c.name, mkCheck(c))
	}
}

func TestGetGlobal(t *testing.T) {
	t.Parallel()
	ctx, g := NewContext(log2.NewTest(t, log2.LDebug), "test")
	assert.Equal(t, g, GetGlobal(ctx))
	assert.Equal(t, g.Log, log2.ContextValueLogger(ctx))
	assert.Panics(t, func() { GetGlobal(context.Background()) })
}

func TestHardware(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	ctx, g := NewContext(log, "test")
	g.MustInit(ctx, MustReadConfig(log, NewMockFullReader(map[string]string{
		"test-inline": `sampler { mock = true } uplink { device = "-" }`,
	}), "test-inline"))

	hub := transport.NewHub()
	mock := hub.Attach(transport.MockAddr(1))
	g.Hardware.Radio.T = mock
	tr, err := g.Radio(ctx)
	require.NoError(t, err)
	assert.Equal(t, transport.MockAddr(1), tr.Addr())

	assert.Equal(t, indicator.Noop{}, g.Indicator())

	s, err := g.Sampler()
	require.NoError(t, err)
	v1, err := s.Sample()
	require.NoError(t, err)
	v2, _ := s.Sample()
	assert.NotEqual(t, v1, v2)

	rw, err := g.Uplink()
	require.NoError(t, err)
	assert.IsType(t, uplink.Stdio{}, rw)
}

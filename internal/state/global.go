package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustnet/dustnet/internal/metrics"
	"github.com/dustnet/dustnet/internal/protocol"
	"github.com/dustnet/dustnet/internal/tele"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const (
	DefaultAnnounce       = 7 * time.Second
	DefaultAlarm          = time.Minute
	DefaultSampleInterval = time.Second
	DefaultRadioPort      = "7700"
	DefaultPersistRoot    = "./tmp-dustnet-db"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Metrics      *metrics.Metrics
	Role         string
	Tele         *tele.Tele

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log, role string) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	m := metrics.New(role)
	g := &Global{
		Alive:   alive.NewAlive(),
		Log:     log,
		Metrics: m,
		Role:    role,
		Tele:    tele.New(nil, m),
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// Init applies defaults and validates config. Hardware is opened lazily.
// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s role=%s", g.BuildVersion, g.Role)
	if cfg.LogDebug {
		g.Log.SetLevel(log2.LDebug)
	}

	if cfg.Persist.Root == "" {
		cfg.Persist.Root = DefaultPersistRoot
		g.Log.Errorf("config: persist.root=empty changed=%s", cfg.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", cfg.Persist.Root)

	if cfg.Radio.Listen == "" {
		cfg.Radio.Listen = ":" + DefaultRadioPort
	}
	if cfg.Radio.Broadcast == "" {
		cfg.Radio.Broadcast = "255.255.255.255:" + DefaultRadioPort
	}
	if cfg.Gateway.RegistryCapacity < 0 || cfg.Gateway.RegistryCapacity > 255 {
		return errors.NotValidf("config: gateway.registry_capacity=%d", cfg.Gateway.RegistryCapacity)
	}
	if len(cfg.Leaf.Name) > protocol.NameSize {
		return errors.NotValidf("config: leaf.name=%q longer than %d", cfg.Leaf.Name, protocol.NameSize)
	}
	if cfg.Leaf.SampleIntervalMs < 0 {
		return errors.NotValidf("config: leaf.sample_interval_ms=%d", cfg.Leaf.SampleIntervalMs)
	}
	if cfg.Host.Scale < 0 {
		return errors.NotValidf("config: host.scale=%v", cfg.Host.Scale)
	}

	if cfg.Tele.PersistPath == "" {
		cfg.Tele.PersistPath = filepath.Join(cfg.Persist.Root, "tele")
	}
	if err := g.Tele.Init(ctx, g.Log.Clone(log2.LInfo), cfg.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

func (g *Global) Stop() { g.Alive.Stop() }

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close releases hardware and flushes tele spool.
func (g *Global) Close() {
	g.Hardware.close(g.Log)
	g.Tele.Close()
}

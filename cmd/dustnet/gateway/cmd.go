// Gateway node: assigns identities, keeps leaves in sync with host time
// and prints their telemetry on the uplink.
package gateway

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/dustnet/dustnet/cmd/dustnet/subcmd"
	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/gateway"
	"github.com/dustnet/dustnet/internal/loop"
	"github.com/dustnet/dustnet/internal/persist"
	"github.com/dustnet/dustnet/internal/registry"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/dustnet/dustnet/internal/transport"
	"github.com/dustnet/dustnet/internal/uplink"
	"github.com/juju/errors"
)

var Mod = subcmd.Mod{Name: "gateway", Usage: "run gateway node", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()
	ctx = subcmd.StopContext(ctx, g)
	cfg := g.Config

	tr, err := g.Radio(ctx)
	if err != nil {
		return err
	}
	up, err := g.Uplink()
	if err != nil {
		return err
	}

	reg := registry.New(cfg.Gateway.RegistryCapacity)
	regdb := &persist.Persist{}
	if err = regdb.Init("registry", reg, cfg.Persist.Root, cfg.Gateway.RegistryPersist, g.Log); err != nil {
		return errors.Annotate(err, "registry persist")
	}
	if err = regdb.Load(); err != nil {
		return errors.Annotate(err, "registry load")
	}
	g.Log.Infof("registry size=%d capacity=%d", reg.Len(), reg.Cap())

	l := loop.New(g.Log, 0)
	gw := gateway.New(gateway.Options{
		Log:         g.Log,
		Clock:       clock.NewSystemRTC(),
		Transport:   tr,
		Registry:    reg,
		RegistryDB:  regdb,
		Uplink:      up,
		Forward:     g.Tele,
		Alarm:       loop.NewAlarm(l),
		AlarmPeriod: helpers.IntSecondDefault(cfg.Gateway.AlarmSec, state.DefaultAlarm),
		Indicator:   g.Indicator(),
		Metrics:     g.Metrics,
	})

	l.Receive(tr, func(f transport.Frame) { gw.HandleFrame(f.From, f.Data) })
	l.Every(helpers.IntSecondDefault(cfg.Gateway.AnnounceSec, state.DefaultAnnounce), gw.Announce)
	if cfg.Gateway.TimeLog {
		l.Every(time.Second, gw.LogTime)
	}
	// uplink Read can not be interrupted, goroutine is not tracked by loop
	go func() {
		err := uplink.ReadLines(up, func(line string) bool {
			return l.Post(func() {
				if err := gw.HostCommand(line); err != nil {
					g.Log.Error(err)
				}
			}) == nil
		})
		if err != nil {
			g.Error(err)
		}
	}()
	subcmd.ServeMetrics(ctx, g)
	subcmd.StopOnSignal(g)

	go func() {
		<-ctx.Done()
		l.Stop()
	}()
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("gateway addr=%s running", tr.Addr())
	l.Run()
	l.Wait()
	return nil
}

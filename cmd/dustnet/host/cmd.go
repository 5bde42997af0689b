// Host base station: pushes wall time to gateway and stores telemetry records.
package host

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/dustnet/dustnet/cmd/dustnet/subcmd"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/hostlink"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/juju/errors"
)

var Mod = subcmd.Mod{Name: "host", Usage: "run host base station", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()
	ctx = subcmd.StopContext(ctx, g)
	cfg := g.Config

	store, err := hostlink.OpenStore(ctx, cfg.Host.DSN, cfg.Host.Table)
	if err != nil {
		return err
	}
	defer store.Close()
	if err = store.Migrate(ctx); err != nil {
		return err
	}

	up, err := g.Uplink()
	if err != nil {
		return err
	}
	now := clock.FromTime(time.Now().UTC())
	if err = hostlink.PushTime(up, now); err != nil {
		return err
	}
	g.Log.Infof("host time sent %s", now)

	h := &hostlink.Host{
		Log:   g.Log,
		Store: store,
		Scale: cfg.Host.Scale,
		OnReading: func(r hostlink.Reading) {
			g.Log.Debugf("reading sensor=%d value=%v at=%s", r.SensorID, r.Value, r.TakenAt.Format(time.RFC3339))
		},
	}
	subcmd.StopOnSignal(g)
	go func() {
		// unblock Read on uplink
		<-ctx.Done()
		_ = up.Close()
	}()
	subcmd.SdNotify(daemon.SdNotifyReady)
	err = h.Run(ctx, up)
	if ctx.Err() != nil {
		return nil
	}
	return errors.Annotate(err, "host")
}

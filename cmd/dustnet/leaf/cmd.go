// Leaf node: samples dust sensor and reports batches to gateway.
package leaf

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/dustnet/dustnet/cmd/dustnet/subcmd"
	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/leaf"
	"github.com/dustnet/dustnet/internal/loop"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/dustnet/dustnet/internal/transport"
)

var Mod = subcmd.Mod{Name: "leaf", Usage: "run sensor leaf node", Main: Main}

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
	s, err := g.Sampler()
	if err != nil {
		return err
	}

	l := loop.New(g.Log, 0)
	interval := helpers.IntMillisecondDefault(cfg.Leaf.SampleIntervalMs, state.DefaultSampleInterval)
	var sampling *loop.Ticker
	var node *leaf.Leaf
	node = leaf.New(leaf.Options{
		Log:       g.Log,
		Clock:     clock.NewSystemRTC(),
		Transport: tr,
		Sampler:   s,
		Metrics:   g.Metrics,
		Name:      cfg.Leaf.Name,
		Arm: func() {
			// runs on loop, no race on sampling
			if sampling == nil {
				g.Log.Infof("leaf identity=%d sampling every %v", node.Identity(), interval)
				sampling = l.Every(interval, node.SampleTick)
			}
		},
	})
	l.Receive(tr, func(f transport.Frame) { node.HandleFrame(f.From, f.Data) })
	subcmd.ServeMetrics(ctx, g)
	subcmd.StopOnSignal(g)

	go func() {
		<-ctx.Done()
		l.Stop()
	}()
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("leaf addr=%s waiting for gateway announcement", tr.Addr())
	l.Run()
	l.Wait()
	return nil
}

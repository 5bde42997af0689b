// Support sub-commands in dustnet application.
package subcmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/juju/errors"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(context.Context, *state.Config) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown command='%s'", command)
}

// SdNotify returns true when running under systemd.
func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// StopOnSignal stops g on first SIGINT or SIGTERM.
func StopOnSignal(g *state.Global) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			g.Log.Infof("signal=%v stopping", sig)
			SdNotify(daemon.SdNotifyStopping)
			g.Stop()
		case <-g.Alive.StopChan():
		}
		signal.Stop(sigs)
	}()
}

// StopContext derives ctx cancelled when g stops.
func StopContext(ctx context.Context, g *state.Global) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-g.Alive.StopChan():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx
}

// ServeMetrics runs metrics endpoint in background when configured.
func ServeMetrics(ctx context.Context, g *state.Global) {
	listen := g.Config.Metrics.Listen
	if listen == "" {
		return
	}
	go func() {
		if err := g.Metrics.Serve(ctx, g.Log, listen); err != nil {
			g.Error(err)
		}
	}()
}

// Interactive console on gateway uplink: send time commands, watch records.
package console

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/dustnet/dustnet/cmd/dustnet/subcmd"
	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/helpers/cli"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/dustnet/dustnet/internal/hostlink"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/dustnet/dustnet/internal/uplink"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

const modName = "console"

const usage = `commands:
- time            send current UTC time to gateway
- time VALUE      send VALUE (YYYY-MM-DDThh:mm:ss[.fff]) as time command
- raw TEXT        send TEXT line as is
- help            this text`

var Mod = subcmd.Mod{Name: modName, Usage: "interactive uplink console", Main: Main}

var suggests = []prompt.Suggest{
	{Text: "time", Description: "send time command"},
	{Text: "raw", Description: "send raw line"},
	{Text: "help", Description: "show commands"},
}

func Main(ctx context.Context, config *state.Config) error {
	if err := checkDevice(config.Uplink.Device); err != nil {
		return err
	}
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()

	up, err := g.Uplink()
	if err != nil {
		return err
	}
	go watch(g.Log, up)

	cli.MainLoop(modName, newExecutor(g.Log, up), func(d prompt.Document) []prompt.Suggest {
		return cli.FilterCommands(d, suggests)
	})
	return nil
}

// Prompt owns stdin, uplink must be a separate line.
func checkDevice(device string) error {
	if device == "" || device == "-" {
		return errors.NotValidf("console uplink.device=%q", device)
	}
	return nil
}

// watch prints every uplink line, records are decoded for readability.
func watch(log *log2.Log, r io.Reader) {
	err := uplink.ReadLines(r, func(line string) bool {
		if hostlink.IsRecord([]byte(line)) {
			if rd, err := hostlink.ParseRecord([]byte(line), hostlink.DefaultScale); err == nil {
				log.Infof("< sensor=%d raw=%d samples=%d at=%s", rd.SensorID, rd.Raw, rd.SampleCount, rd.TakenAt.Format(time.RFC3339))
				return true
			}
		}
		log.Infof("< %s", line)
		return true
	})
	if err != nil {
		log.Error(err)
	}
}

func newExecutor(log *log2.Log, w io.Writer) cli.Executor {
	return func(line string) {
		if err := execute(log, w, line, time.Now); err != nil {
			log.Error(err)
		}
	}
}

func execute(log *log2.Log, w io.Writer, line string, now func() time.Time) error {
	cmd, arg := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, arg = line[:i], strings.TrimSpace(line[i+1:])
	}
	switch cmd {
	case "":
		return nil
	case "help":
		log.Info(usage)
		return nil
	case "time":
		if arg == "" {
			return hostlink.PushTime(w, clock.FromTime(now().UTC()))
		}
		if _, err := clock.ParseHostTime(arg); err != nil {
			return err
		}
		return helpers.WriteAll(w, []byte(arg+"\n"))
	case "raw":
		return helpers.WriteAll(w, []byte(arg+"\n"))
	default:
		log.Errorf("unknown command=%s\n%s", cmd, usage)
		return nil
	}
}

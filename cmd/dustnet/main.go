package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustnet/dustnet/cmd/dustnet/console"
	"github.com/dustnet/dustnet/cmd/dustnet/gateway"
	"github.com/dustnet/dustnet/cmd/dustnet/host"
	"github.com/dustnet/dustnet/cmd/dustnet/leaf"
	"github.com/dustnet/dustnet/cmd/dustnet/subcmd"
	"github.com/dustnet/dustnet/internal/state"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
)

var BuildVersion string = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LDebug)
var modules = []subcmd.Mod{
	gateway.Mod,
	leaf.Mod,
	host.Mod,
	console.Mod,
}

func main() {
	flagConfig := flag.String("config", "dustnet.hcl", "")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] command\n\nCommands:\n", os.Args[0])
		for _, m := range modules {
			fmt.Fprintf(flag.CommandLine.Output(), "  %-8s %s\n", m.Name, m.Usage)
		}
		fmt.Fprintf(flag.CommandLine.Output(), "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.SetLevel(log2.LInfo)
	log.Infof("dustnet version=%s starting %s", BuildVersion, mod.Name)

	ctx, g := state.NewContext(log, mod.Name)
	g.BuildVersion = BuildVersion
	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)

	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	g.Log.Infof("%s done", mod.Name)
}

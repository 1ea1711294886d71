package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"github.com/mmynk/ledgersync/internal/cli"
	"github.com/mmynk/ledgersync/internal/config"
	"github.com/mmynk/ledgersync/pkg/logging"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		config.Exitf("ledger: %v", err)
	}

	app := &cli.App{
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
		Logger: logging.New(cfg.Options()),
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	app.Register(commander)

	flag.StringVar(&app.Owner, "owner", "", "Owner to open instead of the current one.")
	flag.BoolVar(&app.Offline, "offline", false, "Do not contact the remote store.")
	flag.StringVar(&app.Config.DBPath, "db", cfg.DBPath, "Path to the local ledger database.")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}

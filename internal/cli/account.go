package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mmynk/ledgersync/internal/remote"
	"github.com/mmynk/ledgersync/internal/storage"
)

type loginCmd struct {
	app      *App
	password string
	register bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in to the remote store and make the owner current" }
func (*loginCmd) Usage() string {
	return `ledger login [-register] -password <password> <owner>

  Signs in, stores the token on this device and pulls the remote ledger
  when it is newer than the local one.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "password", "", "Account password.")
	f.BoolVar(&c.register, "register", false, "Create the account first.")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.password == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.app.Offline {
		return c.app.fail(errors.New("login needs the remote store, drop -offline"))
	}
	ownerID := f.Arg(0)

	client := remote.NewClient(c.app.httpClient(), c.app.Config.RemoteURL, "")
	if c.register {
		if _, err := client.Register(ctx, ownerID, c.password); err != nil {
			return c.app.fail(err)
		}
		fmt.Fprintf(c.app.Out, "registered %s\n", ownerID)
	}
	owner, token, err := client.Login(ctx, ownerID, c.password)
	if err != nil {
		return c.app.fail(err)
	}

	store, err := c.app.openStore()
	if err != nil {
		return c.app.fail(err)
	}
	batch := storage.Batch{}
	if err := batch.Set(storage.TokenKey(owner.ID), token); err != nil {
		store.Close()
		return c.app.fail(err)
	}
	if err := store.PutAll(ctx, batch); err != nil {
		store.Close()
		return c.app.fail(err)
	}

	w, err := c.app.openOwner(ctx, store, *owner)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	if err := w.engine.Sync(ctx); err != nil {
		fmt.Fprintf(c.app.Out, "warning: signed in but not synced: %v\n", err)
	}
	fmt.Fprintf(c.app.Out, "signed in as %s, %d debts\n", owner.ID, len(w.session.ListDebts()))
	return subcommands.ExitSuccess
}

type passwdCmd struct {
	app     *App
	current string
	next    string
}

func (*passwdCmd) Name() string     { return "passwd" }
func (*passwdCmd) Synopsis() string { return "change the owner password" }
func (*passwdCmd) Usage() string {
	return `ledger passwd -current <password> -new <password>
`
}

func (c *passwdCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.current, "current", "", "Current password.")
	f.StringVar(&c.next, "new", "", "New password, at least 8 characters.")
}

func (c *passwdCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	if err := w.session.ChangePassword(ctx, c.current, c.next); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.Out, "password changed")
	return subcommands.ExitSuccess
}

type syncCmd struct {
	app  *App
	pull bool
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "reconcile the local ledger with the remote store" }
func (*syncCmd) Usage() string {
	return `ledger sync [-pull]

  Pulls the remote ledger when it is newer, otherwise pushes local changes.
  The newer side replaces the other entirely.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.pull, "pull", false, "Only pull, never push.")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.app.Offline {
		return c.app.fail(errors.New("sync needs the remote store, drop -offline"))
	}
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	if c.pull {
		err = w.engine.Pull(ctx)
	} else {
		err = w.engine.Sync(ctx)
	}
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "in sync, last update %s\n", w.session.LastUpdate().Format("2006-01-02 15:04:05"))
	return subcommands.ExitSuccess
}

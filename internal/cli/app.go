// Package cli implements the subcommands of the ledger binary.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/ledgersync/internal/config"
	"github.com/mmynk/ledgersync/internal/ledger"
	"github.com/mmynk/ledgersync/internal/metrics"
	"github.com/mmynk/ledgersync/internal/models"
	"github.com/mmynk/ledgersync/internal/remote"
	"github.com/mmynk/ledgersync/internal/remotesync"
	"github.com/mmynk/ledgersync/internal/storage"
	"github.com/mmynk/ledgersync/internal/storage/sqlite"
)

// ErrNoOwner is returned when no owner was given and none is stored.
var ErrNoOwner = errors.New("no owner on this device, run login first or pass -owner")

// App holds what every command shares.
type App struct {
	Config config.Client

	// Owner overrides the current owner stored on the device.
	Owner string
	// Offline disables remote sync.
	Offline bool

	Out        io.Writer
	In         io.Reader
	Now        func() time.Time
	HTTPClient connect.HTTPClient
	Logger     *slog.Logger
	// Registry collects the ledger, sync and voice metrics. watch serves it.
	Registry *prometheus.Registry

	input   *bufio.Scanner
	metrics *metrics.Metrics
}

// Register adds every command to c.
func (a *App) Register(c *subcommands.Commander) {
	c.Register(&debtCmd{app: a}, "ledger")
	c.Register(&payCmd{app: a}, "ledger")
	c.Register(&consumeCmd{app: a}, "ledger")
	c.Register(&resetCmd{app: a}, "ledger")
	c.Register(&restoreCmd{app: a}, "ledger")

	c.Register(&listCmd{app: a}, "reports")
	c.Register(&summaryCmd{app: a}, "reports")

	c.Register(&voiceCmd{app: a}, "voice")

	c.Register(&loginCmd{app: a}, "account")
	c.Register(&passwdCmd{app: a}, "account")
	c.Register(&syncCmd{app: a}, "account")
	c.Register(&watchCmd{app: a}, "account")
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// instruments returns the collectors of a, registering them on first use.
func (a *App) instruments() *metrics.Metrics {
	if a.metrics == nil {
		if a.Registry == nil {
			a.Registry = prometheus.NewRegistry()
		}
		a.metrics = metrics.New(a.Registry)
	}
	return a.metrics
}

func (a *App) httpClient() connect.HTTPClient {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

// readLine returns the next line of In.
func (a *App) readLine() (string, bool) {
	if a.input == nil {
		a.input = bufio.NewScanner(a.In)
	}
	if !a.input.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.input.Text()), true
}

// workspace is an opened ledger with its sync engine.
type workspace struct {
	store   *sqlite.SQLiteStore
	session *ledger.Session
	client  *remote.Client
	engine  *remotesync.Engine
}

func (a *App) openStore() (*sqlite.SQLiteStore, error) {
	store, err := sqlite.New(a.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local ledger: %w", err)
	}
	return store, nil
}

func (a *App) currentOwner(ctx context.Context, store storage.Store) (string, error) {
	if a.Owner != "" {
		return a.Owner, nil
	}
	var owner string
	ok, err := storage.GetJSON(ctx, store, storage.CurrentOwnerKey, &owner)
	if err != nil {
		return "", err
	}
	if !ok || owner == "" {
		return "", ErrNoOwner
	}
	return owner, nil
}

// open loads the ledger of the current owner and, unless offline, wires the
// sync engine as its scheduler.
func (a *App) open(ctx context.Context) (*workspace, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	ownerID, err := a.currentOwner(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a.openOwner(ctx, store, models.Owner{ID: ownerID})
}

func (a *App) openOwner(ctx context.Context, store *sqlite.SQLiteStore, owner models.Owner) (*workspace, error) {
	session, err := ledger.Open(ctx, store, owner,
		ledger.WithClock(a.now),
		ledger.WithLogger(a.logger()),
		ledger.WithMetrics(a.instruments()),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	w := &workspace{store: store, session: session}
	if a.Offline {
		return w, nil
	}

	token := a.Config.Token
	if token == "" {
		if _, err := storage.GetJSON(ctx, store, storage.TokenKey(owner.ID), &token); err != nil {
			store.Close()
			return nil, err
		}
	}
	w.client = remote.NewClient(a.httpClient(), a.Config.RemoteURL, token)
	w.engine = remotesync.New(session, w.client,
		remotesync.Config{MaxAttempts: a.Config.SyncAttempts, Interval: a.Config.SyncInterval},
		remotesync.WithLogger(a.logger()),
		remotesync.WithMetrics(a.instruments()),
		remotesync.OnFailure(func(err error) {
			fmt.Fprintf(a.Out, "warning: not synced, working offline: %v\n", err)
		}),
	)
	session.SetScheduler(w.engine)
	return w, nil
}

// close waits for scheduled syncs and releases the store.
func (w *workspace) close() {
	if w.engine != nil {
		w.engine.Wait()
	}
	w.store.Close()
}

// fail prints err and returns ExitFailure.
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(a.Out, "error: %v\n", err)
	return subcommands.ExitFailure
}

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type watchCmd struct {
	app         *App
	metricsAddr string
	probe       time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "keep the ledger in sync until interrupted" }
func (*watchCmd) Usage() string {
	return `ledger watch [-metrics <addr>] [-probe <interval>]

  Syncs now and then every sync interval. While the remote store is
  unreachable it is probed every probe interval, and the first answer
  triggers a sync. With -metrics the collectors are served on addr/metrics.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address.")
	f.DurationVar(&c.probe, "probe", 10*time.Second, "How often to check connectivity while offline.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.app.Offline {
		return c.app.fail(errors.New("watch needs the remote store, drop -offline"))
	}
	if c.probe <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	if c.metricsAddr != "" {
		stop, err := c.serveMetrics(c.metricsAddr)
		if err != nil {
			return c.app.fail(err)
		}
		defer stop()
	}

	// the failure callback already printed a warning
	_ = w.engine.Sync(ctx)
	fmt.Fprintf(c.app.Out, "watching %s, sync every %s\n", w.session.Owner().ID, c.app.Config.SyncInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.engine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		w.engine.WatchConnectivity(ctx, w.client.Ping, c.probe)
	}()
	wg.Wait()

	fmt.Fprintf(c.app.Out, "stopped, last update %s\n", w.session.LastUpdate().Format("2006-01-02 15:04:05"))
	return subcommands.ExitSuccess
}

// serveMetrics exposes the app registry until the returned stop is called.
func (c *watchCmd) serveMetrics(addr string) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	reg := c.app.Registry
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.app.logger().Error("Metrics server failed", "error", err)
		}
	}()
	c.app.logger().Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

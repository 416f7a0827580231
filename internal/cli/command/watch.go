package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/infra/shutdown"
	"github.com/yndnr/savekeep-go/internal/storage/slot"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
)

const shutdownTimeout = 5 * time.Second

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print slot changes in the save directory until interrupted",
		Description: "SIGHUP re-reads the configuration and applies its log.level; " +
			"an explicit --log-level still wins.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 watches until interrupted)",
			},
		},
		Action: watchRun,
	}
}

type eventView struct {
	Time string `json:"time" yaml:"time"`
	Slot int    `json:"slot" yaml:"slot"`
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path" yaml:"path"`
}

func (v eventView) Table(bool) *output.Table {
	t := &output.Table{}
	t.AddRow(v.Time, v.Kind, "slot "+output.Cell(v.Slot), v.Path)
	return t
}

func watchRun(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	reg := metric.NewRegistry(env.Config.Metrics.Namespace)

	w, err := slot.NewWatcher(env.Catalog)
	if err != nil {
		return err
	}
	var mu sync.Mutex
	w.OnChange(func(e slot.Event) {
		reg.SlotEvents.WithLabelValues(string(e.Kind)).Inc()
		mu.Lock()
		defer mu.Unlock()
		if err := env.Print(eventView{
			Time: time.Now().Format(time.TimeOnly),
			Slot: int(e.Slot),
			Kind: string(e.Kind),
			Path: e.Path,
		}); err != nil {
			env.Logger.Warn("print slot event", "error", err)
		}
	})

	h := shutdown.NewHandler(shutdownTimeout)
	h.OnShutdown(func(context.Context) error { return w.Stop() })

	if addr := c.String("metrics-addr"); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			_ = w.Stop()
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.Logger.Error("metrics server stopped", "error", err)
			}
		}()
		h.OnShutdown(srv.Shutdown)
		env.Logger.Info("serving metrics", "addr", ln.Addr().String())
	}

	w.StartAsync()

	ctx := c.Context
	if d := c.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	stopReload := onHangup(func() {
		reloadLogLevel(func() (*config.Config, error) { return loadConfig(c) }, env.Logger)
	})
	defer stopReload()
	return h.Wait(ctx)
}

// onHangup calls fn for every SIGHUP until the returned stop is called.
func onHangup(fn func()) (stop func()) {
	hup := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-hup:
				fn()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		close(done)
	}
}

// reloadLogLevel applies the log level of a freshly loaded configuration.
// A failed load keeps the current level.
func reloadLogLevel(load func() (*config.Config, error), log logger.Logger) {
	cfg, err := load()
	if err != nil {
		log.Warn("config reload failed, keeping log level", "error", err)
		return
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Warn("config reload failed, keeping log level", "error", err)
		return
	}
	log.Info("log level reloaded", "level", cfg.Log.Level)
}

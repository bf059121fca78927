// Command indexdb inspects, merges, archives and publishes indexdb files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/indexdb"
	"github.com/hupe1980/indexdb/config"
	"github.com/hupe1980/indexdb/metrics"
)

var version = "dev"

// env carries the settings shared by all commands.
type env struct {
	cfg     config.Config
	logger  *indexdb.Logger
	metrics indexdb.MetricsCollector
	server  *http.Server
}

func (e *env) indexOptions() []indexdb.Option {
	return []indexdb.Option{
		indexdb.WithLogger(e.logger),
		indexdb.WithMetricsCollector(e.metrics),
	}
}

func getEnv(c *cli.Context) *env {
	return c.App.Metadata["env"].(*env)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "indexdb",
		Usage:   "Inspect, merge, archive and publish source-code fact indexes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, TakesFile: true, Usage: "TOML configuration file", EnvVars: []string{"INDEXDB_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)", EnvVars: []string{"INDEXDB_LOG_LEVEL"}},
			&cli.BoolFlag{Name: "log-json", Usage: "Log in JSON format", EnvVars: []string{"INDEXDB_LOG_JSON"}},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address, e.g. :9090", EnvVars: []string{"INDEXDB_METRICS_ADDR"}},
		},
		Before: setup,
		After:  teardown,
	}
	app.Commands = []*cli.Command{
		infoCommand(),
		dumpCommand(),
		grepCommand(),
		mergeCommand(),
		buildCommand(),
		archiveCommand(),
		publishCommand(),
		fetchCommand(),
		releasesCommand(),
		pruneCommand(),
	}
	return app
}

func setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-json") {
		cfg.Log.JSON = c.Bool("log-json")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(c.App.ErrWriter, handlerOpts)
	if cfg.Log.JSON {
		handler = slog.NewJSONHandler(c.App.ErrWriter, handlerOpts)
	}

	e := &env{
		cfg:     cfg,
		logger:  indexdb.NewLogger(handler),
		metrics: indexdb.NoopMetricsCollector{},
	}
	if addr := c.String("metrics-addr"); addr != "" {
		if err := e.serveMetrics(addr); err != nil {
			return err
		}
	}
	c.App.Metadata["env"] = e
	return nil
}

func (e *env) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewPrometheusCollector(reg, "indexdb")
	if err != nil {
		return err
	}
	e.metrics = collector

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()
	e.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func teardown(c *cli.Context) error {
	e, ok := c.App.Metadata["env"].(*env)
	if !ok || e.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.server.Shutdown(ctx)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := newApp()
	app.Writer = stdout
	app.ErrWriter = stderr
	return app.RunContext(ctx, args)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "indexdb:", err)
		os.Exit(1)
	}
}

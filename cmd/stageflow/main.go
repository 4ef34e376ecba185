// Command stageflow runs the development pipeline: an emitter feeding
// Analyst, Developer, Tester and Manager stages, with the run transcript
// written to the console and to a log file.
//
// Usage:
//
//	stageflow [-config config.json] [-version]
//
// Settings come from the config file (JSON, YAML or TOML) and can be
// overridden with STAGEFLOW_* environment variables, for example
// STAGEFLOW_TASK_COUNT=50.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ctxutil "github.com/vnykmshr/stageflow/pkg/common/context"
	"github.com/vnykmshr/stageflow/pkg/config"
	"github.com/vnykmshr/stageflow/pkg/eventlog"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/metrics"
	"github.com/vnykmshr/stageflow/pkg/scheduling/pipeline"
	"github.com/vnykmshr/stageflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/stageflow/pkg/sink"
	"github.com/vnykmshr/stageflow/pkg/tracing"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// defaultConfigPath is read when present and -config is not given.
const defaultConfigPath = "config.json"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stageflow", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to a .json, .yaml, .yml or .toml config file")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "stageflow %s (built %s)\n", Version, BuildTime)
		return nil
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	diag, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = diag.Sync() }()
	diag.Info("configuration loaded",
		zap.String("path", path),
		zap.Int("task_count", cfg.TaskCount),
		zap.String("schedule", cfg.Schedule))

	events, err := eventlog.New(eventlog.Config{
		Path:        cfg.LogPath,
		Console:     zapcore.AddSync(stdout),
		Buffered:    cfg.BufferedLog,
		Diagnostics: diag,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			diag.Warn("close event log", zap.Error(err))
		}
	}()

	pcfg := cfg.Pipeline()
	pcfg.Log = events
	pcfg.Diagnostics = diag

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pcfg.Registry = metrics.NewRegistryWithConfig(metrics.Config{Enabled: true, Registry: reg})

		shutdown := serveMetrics(cfg.MetricsAddr, reg, diag)
		defer shutdown()
	}

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.NewProvider(ctx, cfg.OTLPEndpoint, tracing.DefaultServiceName)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				diag.Warn("shutdown tracing", zap.Error(err))
			}
		}()
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		rcfg := sink.DefaultRedisConfig()
		rcfg.Redis = rdb
		rcfg.Key = cfg.RedisKey
		rs, err := sink.NewRedis(rcfg)
		if err != nil {
			return err
		}
		pcfg.Sink = rs
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	runOnce := func(ctx context.Context) error {
		res, err := p.Run(ctx)
		if res != nil {
			diag.Info("run finished",
				zap.String("run_id", res.RunID),
				zap.Int("delivered", res.Delivered),
				zap.Int("faults", len(res.Faults)))
		}
		return err
	}

	if cfg.Schedule == "" {
		err := runOnce(ctx)
		if ctx.Err() != nil || onlyFaults(err) {
			return nil
		}
		return err
	}

	r, err := scheduler.New(scheduler.Config{Schedule: cfg.Schedule, Diagnostics: diag}, runOnce)
	if err != nil {
		return err
	}
	if err := r.Run(ctx); err != nil && !ctxutil.IsContextError(err) {
		return err
	}
	return nil
}

// onlyFaults reports whether every error joined into err is a worker
// fault. Faulted items are already in the transcript.
func onlyFaults(err error) bool {
	if err == nil {
		return true
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		var f *pipeline.WorkerFault
		return errors.As(err, &f)
	}
	for _, e := range joined.Unwrap() {
		if _, ok := e.(*pipeline.WorkerFault); !ok {
			return false
		}
	}
	return true
}

func serveMetrics(addr string, reg *prometheus.Registry, diag *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		diag.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			diag.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

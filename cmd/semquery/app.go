package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semquery/config"
	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/health"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/natsclient"
	"github.com/c360/semquery/operation"
	"github.com/c360/semquery/pkg/tlsutil"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/query"
	"github.com/c360/semquery/schema"
	"github.com/c360/semquery/schema/sdl"
)

const natsConnectTimeout = 10 * time.Second

// app holds what every subcommand shares once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	health  *health.Monitor
	metrics *metric.Server
	nats    *natsclient.Client
	closers []func()

	// background tasks run alongside the command by run.
	background []func(context.Context) error
}

func bootstrap(g *globalFlags, stderr io.Writer) (*app, error) {
	var opts []config.LoaderOption
	if g.configPath != "" {
		opts = append(opts, config.WithFile(g.configPath))
	}
	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if _, err := config.ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Log, stderr)
	slog.SetDefault(logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		health:   health.NewMonitor(appName),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.registry)
		a.metrics.SetHealthHandler(a.health)
		a.background = append(a.background, a.metrics.Start)
		logger.Info("metrics server enabled", "address", a.metrics.Address())
	}
	return a, nil
}

// run executes fn alongside the background tasks. The tasks are stopped
// when fn returns, and a failing task cancels fn's context.
func (a *app) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range a.background {
		g.Go(func() error { return task(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

// loadSchema reads the SDL files. With watch set the returned provider
// follows edits to those files while run is active.
func (a *app) loadSchema(paths []string, watch bool) (schema.Provider, error) {
	if len(paths) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "semquery", "loadSchema", "at least one --schema file is required")
	}
	if !watch {
		s, err := sdl.LoadFiles(paths...)
		if err != nil {
			return nil, err
		}
		a.logger.Info("schema loaded", "version", s.Version(), "files", len(paths))
		provider := schema.NewStaticProvider(s)
		a.health.Register("schema", schemaCheck(provider))
		return provider, nil
	}

	w, err := sdl.NewWatcher(paths, sdl.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.background = append(a.background, func(ctx context.Context) error {
		w.Run(ctx)
		return nil
	})
	a.closers = append(a.closers, w.Stop)
	a.logger.Info("watching schema", "version", w.Schema().Version(), "files", len(paths))
	a.health.Register("schema", schemaCheck(w))
	return w, nil
}

func schemaCheck(provider schema.Provider) health.Check {
	return func(context.Context) health.Status {
		s := provider.Schema()
		if s == nil {
			return health.NewUnhealthy("schema", "no schema loaded")
		}
		return health.NewHealthy("schema", "version "+s.Version())
	}
}

func natsCheck(client *natsclient.Client) health.Check {
	return func(context.Context) health.Status {
		switch st := client.Status(); st {
		case natsclient.StatusConnected:
			return health.NewHealthy("nats", "connected")
		case natsclient.StatusReconnecting:
			return health.NewDegraded("nats", st.String())
		default:
			return health.NewUnhealthy("nats", st.String())
		}
	}
}

// loadInvoker builds the stub invoker from a responses file. Without one
// every invocation fails with a no-response error.
func (a *app) loadInvoker(path string, s *schema.Schema) (operation.Invoker, error) {
	if path == "" {
		a.logger.Warn("no --responses file, operations will not return values")
		return operation.NewStubInvoker(), nil
	}
	return operation.LoadStubInvoker(path, s)
}

func (a *app) connectNATS(ctx context.Context) (*natsclient.Client, error) {
	if a.nats != nil {
		return a.nats, nil
	}
	tlsConfig, err := tlsutil.LoadClientTLSConfig(a.cfg.Security.TLS)
	if err != nil {
		return nil, err
	}
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithName(fmt.Sprintf("%s-%s", appName, Version)),
		natsclient.WithMetrics(a.registry),
		natsclient.WithTLS(tlsConfig),
	}
	if sec := a.cfg.Security; sec.Username != "" {
		opts = append(opts, natsclient.WithCredentials(sec.Username, sec.Password))
	} else if sec.Token != "" {
		opts = append(opts, natsclient.WithToken(sec.Token))
	}
	client, err := natsclient.NewClient(a.cfg.NATS.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, natsConnectTimeout)
	defer cancel()
	if err := client.WaitForConnection(waitCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, err
	}
	a.nats = client
	a.health.Register("nats", natsCheck(client))
	a.logger.Info("connected to NATS", "url", client.URL())
	return client, nil
}

func (a *app) newEngine(ctx context.Context, engineCfg query.Config, provider schema.Provider, invoker operation.Invoker) (*query.Engine, error) {
	deps := query.Deps{
		Schema:          provider,
		Invoker:         invoker,
		Logger:          a.logger,
		MetricsRegistry: a.registry,
	}
	if engineCfg.Projection.Mode == projection.Distributed {
		client, err := a.connectNATS(ctx)
		if err != nil {
			return nil, err
		}
		substrate, err := projection.NewNATSSubstrate(ctx, client, a.cfg.NATS, a.logger)
		if err != nil {
			return nil, err
		}
		deps.Substrate = substrate
	}
	return query.NewEngine(engineCfg, deps)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("closing NATS connection", "error", err)
		}
	}
	if a.metrics != nil {
		_ = a.metrics.Stop()
	}
}

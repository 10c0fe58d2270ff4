package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360/semquery/projection"
)

type workerFlags struct {
	schemas     []string
	responses   string
	member      string
	concurrency int
	watch       bool
}

func newWorkerCmd(g *globalFlags) *cobra.Command {
	f := &workerFlags{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Project distributed packets received over NATS",
		Long: `worker joins the projection pool: it consumes packets published by engines
running in DISTRIBUTED mode, projects each item against its own copy of the
schema and publishes the results back. Packets built against another schema
version are rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			provider, err := a.loadSchema(f.schemas, f.watch)
			if err != nil {
				return err
			}
			invoker, err := a.loadInvoker(f.responses, provider.Schema())
			if err != nil {
				return err
			}

			// A worker projects what it receives itself.
			engineCfg := a.cfg.EngineConfig()
			engineCfg.Projection.Mode = projection.Local
			eng, err := a.newEngine(ctx, engineCfg, provider, invoker)
			if err != nil {
				return err
			}

			client, err := a.connectNATS(ctx)
			if err != nil {
				return err
			}

			concurrency := f.concurrency
			if concurrency <= 0 {
				concurrency = a.cfg.Projection.Concurrency
			}
			member := f.member
			if member == "" {
				member = defaultMember()
			}
			w := projection.NewWorker(member, eng.RemoteProjector, concurrency,
				projection.WithLogger(a.logger), projection.WithMetrics(a.registry))

			a.logger.Info("projection worker started",
				"member", member, "concurrency", concurrency, "schema_version", provider.Schema().Version())
			return a.run(ctx, func(ctx context.Context) error {
				return projection.Serve(ctx, client, a.cfg.NATS, w, concurrency, a.logger)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&f.schemas, "schema", "s", nil, "SDL schema files (repeatable)")
	cmd.Flags().StringVarP(&f.responses, "responses", "r", "", "YAML file of canned operation responses")
	cmd.Flags().StringVar(&f.member, "member", "", "member name reported to engines (default hostname)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "items projected in parallel (default projection.concurrency)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload the schema when its files change")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func defaultMember() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return appName
	}
	return host
}

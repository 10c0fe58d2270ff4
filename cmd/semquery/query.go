package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/query"
)

type queryFlags struct {
	schemas   []string
	responses string
	factsFile string
	sets      []string
	limit     int
	timeout   time.Duration
}

// resultLine is one result written to stdout.
type resultLine struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	Value  any    `json:"value"`
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query [flags] QUERY",
		Short: "Run a query and print results as JSON lines",
		Example: `  semquery query --schema customer.graphql --responses stubs.yaml \
    'given { id: CustomerId = "123" } find { Customer }'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, f, args[0])
		},
	}
	cmd.Flags().StringSliceVarP(&f.schemas, "schema", "s", nil, "SDL schema files (repeatable)")
	cmd.Flags().StringVarP(&f.responses, "responses", "r", "", "YAML file of canned operation responses")
	cmd.Flags().StringVarP(&f.factsFile, "facts", "f", "", "YAML file of facts to add to the engine")
	cmd.Flags().StringSliceVar(&f.sets, "set", []string{string(facts.All)}, "fact sets visible to the query")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop the query after this many results (0 for no limit)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "cancel the query after this long (0 for no timeout)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func runQuery(cmd *cobra.Command, g *globalFlags, f *queryFlags, text string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	a, err := bootstrap(g, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	provider, err := a.loadSchema(f.schemas, false)
	if err != nil {
		return err
	}
	invoker, err := a.loadInvoker(f.responses, provider.Schema())
	if err != nil {
		return err
	}
	eng, err := a.newEngine(ctx, a.cfg.EngineConfig(), provider, invoker)
	if err != nil {
		return err
	}
	if f.factsFile != "" {
		loaded, err := facts.LoadFile(f.factsFile, provider.Schema())
		if err != nil {
			return err
		}
		for _, fact := range loaded.Facts() {
			eng.AddModel(fact.SetID, fact.Value)
		}
		a.logger.Debug("facts loaded", "count", loaded.Len(), "sets", len(loaded.IDs()))
	}

	ids := make([]facts.FactSetID, 0, len(f.sets))
	for _, s := range f.sets {
		ids = append(ids, facts.FactSetID(s))
	}
	return a.run(ctx, func(ctx context.Context) error {
		return executeQuery(ctx, cmd.OutOrStdout(), a, eng.QueryEngine(ids), text, f.limit)
	})
}

func executeQuery(ctx context.Context, out io.Writer, a *app, qf *query.QueryFactory, text string, limit int) error {
	res, err := qf.Query(ctx, text)
	if err != nil {
		return err
	}
	a.logger.Info("query started", "query_id", res.QueryID, "mode", res.Mode, "response_type", res.ResponseType)

	written, streamErr := writeResults(ctx, out, res, limit)

	// The query may outlive ctx briefly after a stop, so wait on a fresh one.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	queryErr := res.Query.Wait(waitCtx)

	status := res.Query.CurrentStatus()
	a.logger.Info("query finished",
		"query_id", status.QueryID,
		"results", written,
		"completed", status.Completed,
		"estimated", status.Estimated,
		"cancelled", status.Cancelled,
		"failed", status.Failed,
		"duration", time.Since(status.StartTime))

	if streamErr != nil && !isCancellation(streamErr) {
		return streamErr
	}
	if queryErr != nil && !isCancellation(queryErr) {
		return queryErr
	}
	return nil
}

// writeResults copies results to w as JSON lines until the stream ends,
// limit values have been written or ctx is done.
func writeResults(ctx context.Context, w io.Writer, res *query.QueryResult, limit int) (int, error) {
	sub := res.Results()
	defer sub.Close()
	enc := json.NewEncoder(w)

	written := 0
	for {
		v, err := sub.Next(ctx)
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			res.Query.Stop()
			return written, err
		}
		line := resultLine{Type: string(v.Type), Source: v.Source, Value: v.Plain()}
		if err := enc.Encode(line); err != nil {
			res.Query.Stop()
			return written, errors.WrapFatal(err, "semquery", "writeResults", "encode result")
		}
		written++
		if limit > 0 && written >= limit {
			res.Query.Stop()
			return written, nil
		}
	}
}

func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

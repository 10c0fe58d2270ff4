package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/graph"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/operation"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/schema"
)

// Config holds the engine settings. It is read once by NewEngine.
type Config struct {
	BaseCacheSize      int                `mapstructure:"base_cache_size" yaml:"base_cache_size"`
	FactTypesCacheSize int                `mapstructure:"fact_types_cache_size" yaml:"fact_types_cache_size"`
	ExclusionCacheSize int                `mapstructure:"exclusion_cache_size" yaml:"exclusion_cache_size"`
	ExclusionCacheTTL  time.Duration      `mapstructure:"exclusion_cache_ttl" yaml:"exclusion_cache_ttl"`
	MaxIterations      int                `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxDiscoveryDepth  int                `mapstructure:"max_discovery_depth" yaml:"max_discovery_depth"`
	MaxPathEvaluations int                `mapstructure:"max_path_evaluations" yaml:"max_path_evaluations"`
	BufferSize         int                `mapstructure:"buffer_size" yaml:"buffer_size"`
	Retry              errors.RetryConfig `mapstructure:"retry" yaml:"retry"`
	RateLimit          float64            `mapstructure:"rate_limit" yaml:"rate_limit"` // invocations per second, 0 for none
	RateBurst          int                `mapstructure:"rate_burst" yaml:"rate_burst"`
	Projection         projection.Config  `mapstructure:"projection" yaml:"projection"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		BaseCacheSize:      8,
		FactTypesCacheSize: 64,
		ExclusionCacheSize: 1024,
		ExclusionCacheTTL:  5 * time.Minute,
		MaxIterations:      10000,
		MaxDiscoveryDepth:  3,
		MaxPathEvaluations: 64,
		BufferSize:         256,
		Retry:              errors.DefaultRetryConfig(),
		Projection:         projection.DefaultConfig(),
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch {
	case c.BaseCacheSize <= 0 || c.FactTypesCacheSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "graph cache sizes must be positive")
	case c.ExclusionCacheSize < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "exclusion cache size cannot be negative")
	case c.ExclusionCacheSize > 0 && c.ExclusionCacheTTL <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "exclusion cache ttl must be positive")
	case c.MaxIterations < 0 || c.MaxPathEvaluations < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "search limits cannot be negative")
	case c.MaxDiscoveryDepth < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "discovery depth cannot be negative")
	case c.RateLimit < 0 || c.RateBurst < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "rate limit cannot be negative")
	case c.BufferSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "query", "Validate", "result buffer size must be positive")
	}
	return c.Projection.Validate()
}

// Deps are the collaborators of an engine.
type Deps struct {
	Schema  schema.Provider
	Invoker operation.Invoker

	// Substrate distributes projection packets in DISTRIBUTED mode.
	Substrate projection.Substrate

	// Projection replaces the provider built from Config.Projection.
	Projection projection.Provider

	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Engine compiles and runs queries against the current schema. Facts added
// with AddModel are visible to queries according to the fact sets they
// select.
type Engine struct {
	cfg        Config
	schemas    schema.Provider
	invoker    operation.Invoker
	provider   projection.Provider
	graphs     *graph.Cache
	exclusions *exclusionCache
	facts      *facts.FactSetMap
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// NewEngine creates an engine. Invoker calls are retried according to
// cfg.Retry.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Schema == nil || deps.Invoker == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "query", "NewEngine", "schema provider and invoker are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	graphs, err := graph.NewCache(cfg.BaseCacheSize, cfg.FactTypesCacheSize, deps.MetricsRegistry)
	if err != nil {
		return nil, err
	}
	exclusions, err := newExclusionCache(cfg.ExclusionCacheSize, cfg.ExclusionCacheTTL, deps.MetricsRegistry)
	if err != nil {
		return nil, err
	}

	provider := deps.Projection
	if provider == nil {
		provider, err = projection.NewProvider(cfg.Projection, deps.Substrate,
			projection.WithLogger(logger), projection.WithMetrics(deps.MetricsRegistry))
		if err != nil {
			return nil, err
		}
	}

	invoker := deps.Invoker
	if cfg.RateLimit > 0 {
		invoker = operation.NewRateLimitedInvoker(invoker, cfg.RateLimit, cfg.RateBurst)
	}

	e := &Engine{
		cfg:        cfg,
		schemas:    deps.Schema,
		invoker:    operation.NewRetryingInvoker(invoker, cfg.Retry, logger, deps.MetricsRegistry),
		provider:   provider,
		graphs:     graphs,
		exclusions: exclusions,
		facts:      facts.NewFactSetMap(),
		logger:     logger,
	}
	if deps.MetricsRegistry != nil {
		e.metrics = deps.MetricsRegistry.CoreMetrics()
	}

	deps.Schema.OnChange(func(s *schema.Schema) {
		e.graphs.Invalidate()
		e.exclusions.clear()
		version := ""
		if s != nil {
			version = s.Version()
		}
		e.logger.Info("schema changed, graph caches invalidated", "version", version)
	})
	return e, nil
}

// AddModel registers a fact under a fact set. Existing facts are kept.
func (e *Engine) AddModel(id facts.FactSetID, value *facts.TypedInstance) {
	e.facts.Add(id, value)
}

// Facts returns the engine fact set map.
func (e *Engine) Facts() *facts.FactSetMap { return e.facts }

// Graphs returns the engine graph cache.
func (e *Engine) Graphs() *graph.Cache { return e.graphs }

// QueryEngine returns a factory for queries that see the fact sets ids of
// the engine plus additional facts. Additional facts take precedence.
func (e *Engine) QueryEngine(ids []facts.FactSetID, additional ...facts.Fact) *QueryFactory {
	return &QueryFactory{
		engine:     e,
		ids:        append([]facts.FactSetID(nil), ids...),
		additional: facts.FactSetMapOf(additional...),
	}
}

// Query runs a query over every fact set of the engine.
func (e *Engine) Query(ctx context.Context, q string) (*QueryResult, error) {
	return e.QueryEngine([]facts.FactSetID{facts.All}).Query(ctx, q)
}

// RemoteProjector builds the projector for a packet received from another
// engine. The packet must target the schema version served here.
func (e *Engine) RemoteProjector(_ context.Context, packet projection.Packet) (projection.ItemProjector, error) {
	s := e.schemas.Schema()
	if s == nil {
		return nil, errors.WrapTransient(errors.ErrServiceUnavailable, "query", "RemoteProjector", "no schema loaded")
	}
	if packet.SchemaVersion != "" && packet.SchemaVersion != s.Version() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("packet schema %s, serving %s: %w", packet.SchemaVersion, s.Version(), errors.ErrSchemaInvalid),
			"query", "RemoteProjector", "schema version check")
	}
	if packet.ProjectionType == "" {
		return projection.Identity, nil
	}
	bag := facts.NewFactBag(s, packet.Facts...)
	d := e.discoverer(packet.QueryID, s, nil, nil)
	return d.projector(bag, packet.ProjectionType), nil
}

func (e *Engine) discoverer(queryID string, s *schema.Schema, cancelled func() bool, record func(SearchStats)) *discoverer {
	return &discoverer{
		queryID:    queryID,
		schema:     s,
		graphs:     e.graphs,
		invoker:    e.invoker,
		exclusions: e.exclusions,
		limits: limits{
			maxIterations:  e.cfg.MaxIterations,
			maxDepth:       e.cfg.MaxDiscoveryDepth,
			maxEvaluations: e.cfg.MaxPathEvaluations,
		},
		cancelled: cancelled,
		record:    record,
		logger:    e.logger,
		metrics:   e.metrics,
	}
}

// QueryFactory creates query contexts over a fixed fact selection.
type QueryFactory struct {
	engine     *Engine
	ids        []facts.FactSetID
	additional *facts.FactSetMap
}

// QueryResult is the handle of a submitted query.
type QueryResult struct {
	QueryID      string
	Mode         Mode
	ResponseType string
	Query        *ExecutableQuery

	results *Subscription[*facts.TypedInstance]
}

// Results returns the subscription created before the query started, which
// sees every emitted value.
func (r *QueryResult) Results() *Subscription[*facts.TypedInstance] { return r.results }

// Collect reads every result and returns them with the query failure, if
// any.
func (r *QueryResult) Collect(ctx context.Context) ([]*facts.TypedInstance, error) {
	values, err := r.results.Collect(ctx)
	if err != nil {
		return values, err
	}
	return values, r.Query.Wait(ctx)
}

// Query compiles q and starts executing it. Syntax errors, unsupported
// shapes and unknown types are returned here; search and invocation
// failures are reported by the result. Cancelling ctx stops the query the
// same way Stop does.
func (f *QueryFactory) Query(ctx context.Context, q string) (*QueryResult, error) {
	e := f.engine
	stmt, err := Parse(q)
	if err != nil {
		return nil, err
	}
	if len(stmt.Targets) > 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%d targets, one supported: %w", len(stmt.Targets), ErrUnsupportedQuery),
			"query", "Query", "compile")
	}

	s := e.schemas.Schema()
	if s == nil {
		return nil, errors.WrapTransient(errors.ErrServiceUnavailable, "query", "Query", "no schema loaded")
	}

	target := stmt.Targets[0]
	if err := checkType(s, target.Type); err != nil {
		return nil, err
	}
	if stmt.Projection != nil {
		if err := checkType(s, stmt.Projection.Type); err != nil {
			return nil, err
		}
	}
	mode := stmt.Mode
	if target.Collection {
		mode = FindAll
	}

	given := make([]*facts.TypedInstance, 0, len(stmt.Given))
	for _, g := range stmt.Given {
		v, err := facts.FromValue(s, g.Type, g.Value)
		if err != nil {
			return nil, errors.WrapInvalid(err, "query", "Query", "given fact "+g.Name)
		}
		given = append(given, v.WithSource(string(facts.Caller)))
	}

	var extra []*facts.TypedInstance
	for _, fact := range f.additional.Facts() {
		extra = append(extra, fact.Value)
	}
	bag := e.facts.ToFactBag(s, f.ids...).With(extra...).With(given...)

	// build the graph before starting so schema errors surface here
	if _, err := e.graphs.ForFacts(s, bag.TypeSignature(), bag.Types()); err != nil {
		return nil, err
	}

	response := target.String()
	if stmt.Projection != nil {
		response = stmt.Projection.String()
	}
	if mode == FindAll && !target.Collection && stmt.Projection == nil {
		response += "[]"
	}

	id := uuid.New().String()
	qc := newQueryContext(ctx, id, s, bag, mode, response, e.cfg.BufferSize)
	exec := &ExecutableQuery{
		qc:         qc,
		stmt:       stmt,
		expr:       NewExpression(target),
		strategy:   strategyFor(mode),
		disc:       e.discoverer(id, s, qc.Cancelled, qc.recordSearch),
		provider:   e.provider,
		projection: stmt.Projection,
		logger:     e.logger,
		metrics:    e.metrics,
		done:       make(chan struct{}),
	}
	result := &QueryResult{
		QueryID:      id,
		Mode:         mode,
		ResponseType: response,
		Query:        exec,
		results:      exec.ResultStream(),
	}

	if e.metrics != nil {
		e.metrics.QueriesStarted.WithLabelValues(mode.String()).Inc()
	}
	e.logger.Debug("query submitted",
		"query_id", id,
		"mode", mode.String(),
		"target", exec.expr.String(),
		"facts", bag.Len())

	stop := context.AfterFunc(ctx, exec.Stop)
	go func() {
		defer stop()
		exec.run(context.WithoutCancel(ctx))
	}()
	return result, nil
}

func checkType(s *schema.Schema, t schema.QualifiedName) error {
	if s.HasType(t) {
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("type %s: %w", t, schema.ErrUnknownType), "query", "Query", "type lookup")
}

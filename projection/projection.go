// Package projection fans the projection of a collection of source items out
// to local goroutines or to remote cluster members.
//
// A Provider receives a Job: the items to project and an ItemProjector that
// turns one source item into one result. Providers emit every item that was
// started exactly once. LocalProvider emits in source order; DistributedProvider
// emits packets as they complete, preserving order only within a packet.
//
// Cancellation is cooperative. Providers poll Job.Cancelled before starting
// each item or packet and stop scheduling new work once it reports true.
// Work already started is allowed to finish.
package projection

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

// Mode selects where projection work runs.
type Mode string

// Distribution modes.
const (
	Local       Mode = "LOCAL"
	Distributed Mode = "DISTRIBUTED"
)

// ParseMode accepts mode names case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Local, "":
		return Local, nil
	case Distributed:
		return Distributed, nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("unknown distribution mode %q: %w", s, errors.ErrInvalidConfig),
			"projection", "ParseMode", "mode lookup")
	}
}

// ErrStopped is returned by an emit function to stop a provider without
// failing it.
var ErrStopped = stderrors.New("projection stopped")

// Config holds the projection settings.
type Config struct {
	Mode          Mode          `mapstructure:"distribution_mode" yaml:"distribution_mode"`
	PacketSize    int           `mapstructure:"distribution_packet_size" yaml:"distribution_packet_size"`
	RemoteBias    float64       `mapstructure:"distribution_remote_bias" yaml:"distribution_remote_bias"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	PacketTimeout time.Duration `mapstructure:"packet_timeout" yaml:"packet_timeout"`
}

// DefaultConfig returns local projection on four workers.
func DefaultConfig() Config {
	return Config{
		Mode:          Local,
		PacketSize:    50,
		RemoteBias:    1,
		Concurrency:   4,
		PacketTimeout: 30 * time.Second,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	switch {
	case c.PacketSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "projection", "Validate", "packet size must be positive")
	case c.RemoteBias < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "projection", "Validate", "remote bias cannot be negative")
	case c.Concurrency <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "projection", "Validate", "concurrency must be positive")
	case c.PacketTimeout <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "projection", "Validate", "packet timeout must be positive")
	}
	return nil
}

// ItemProjector projects one source item.
type ItemProjector func(ctx context.Context, item *facts.TypedInstance) (*facts.TypedInstance, error)

// Identity returns items unchanged.
func Identity(_ context.Context, item *facts.TypedInstance) (*facts.TypedInstance, error) {
	return item, nil
}

// Job is one projection request.
type Job struct {
	QueryID       string
	SchemaVersion string

	// ProjectionType is the requested result type; empty means items are
	// emitted as they are.
	ProjectionType schema.QualifiedName

	Items []*facts.TypedInstance

	// Facts are shipped to remote members so they can resolve fields.
	Facts []*facts.TypedInstance

	Project   ItemProjector
	Cancelled func() bool
}

func (j Job) cancelled() bool {
	return j.Cancelled != nil && j.Cancelled()
}

func (j Job) projector() ItemProjector {
	if j.Project == nil {
		return Identity
	}
	return j.Project
}

// Result is one projected item.
type Result struct {
	Index  int // position of the source item
	Source *facts.TypedInstance
	Value  *facts.TypedInstance
}

// EmitFunc receives results. Returning ErrStopped stops the provider quietly;
// any other error fails it.
type EmitFunc func(Result) error

// Provider runs a projection job.
type Provider interface {
	Project(ctx context.Context, job Job, emit EmitFunc) error
}

// NewProvider returns the provider for cfg.Mode. substrate is only used in
// distributed mode and may be nil otherwise.
func NewProvider(cfg Config, substrate Substrate, opts ...ProviderOption) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseMode(string(cfg.Mode))
	local := NewLocalProvider(cfg.Concurrency, opts...)
	if mode == Local {
		return local, nil
	}
	if substrate == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("distributed mode without substrate: %w", errors.ErrMissingConfig),
			"projection", "NewProvider", "substrate check")
	}
	return NewDistributedProvider(cfg, substrate, local, opts...), nil
}

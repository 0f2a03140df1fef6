package engine

import (
	"fmt"
	"log/slog"

	"github.com/codewright-io/codewright/pkg/gateway"
	"github.com/codewright-io/codewright/pkg/gateway/hardcode"
	"github.com/codewright-io/codewright/pkg/transport"
	"github.com/codewright-io/codewright/pkg/validation"
)

// Engine drives runs end to end. It calls the gateway for planning, test
// inference, generation, and repair analysis, the sandbox for execution,
// and the validator for verdicts. It implements transport.RunStarter.
type Engine struct {
	gateway   gateway.Gateway
	policy    gateway.HardcodePolicy
	runner    validation.Executor
	validator *validation.Validator
	store     transport.RunStore
	cfg       Config
	log       *slog.Logger
}

// Ensure Engine implements transport.RunStarter at compile time.
var _ transport.RunStarter = (*Engine)(nil)

// Option customizes an Engine.
type Option func(*Engine)

// WithHardcodePolicy replaces the default suspected-hardcoding detector.
func WithHardcodePolicy(p gateway.HardcodePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a new Engine. The gateway and runner must not be nil; the
// runner is usually a *sandbox.Runner. The store can be nil for ephemeral
// operation (runs exist only as streams).
func New(gw gateway.Gateway, runner validation.Executor, store transport.RunStore, cfg Config, opts ...Option) (*Engine, error) {
	if gw == nil {
		return nil, fmt.Errorf("engine: gateway must not be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("engine: sandbox runner must not be nil")
	}

	e := &Engine{
		gateway: gw,
		policy:  hardcode.New(),
		runner:  runner,
		store:   store,
		cfg:     cfg,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validator = validation.New(runner, e.log)

	return e, nil
}

package engine

import "github.com/codewright-io/codewright/pkg/api"

// Config holds configuration for the core engine.
type Config struct {
	// Validation bounds inbound requests (task length, supplied test
	// count, iteration cap). Zero values fall back to the api defaults.
	Validation api.ValidationConfig

	// StdinInput is passed to the guest process on every execution.
	// Usually empty; the harness feeds test inputs through code, not stdin.
	StdinInput string
}

// validationConfig returns the effective request validation settings.
func (c Config) validationConfig() api.ValidationConfig {
	cfg := c.Validation
	def := api.DefaultValidationConfig()
	if cfg.MaxTaskLength <= 0 {
		cfg.MaxTaskLength = def.MaxTaskLength
	}
	if cfg.MaxSuppliedTests <= 0 {
		cfg.MaxSuppliedTests = def.MaxSuppliedTests
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	return cfg
}

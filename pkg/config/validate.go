package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for consistency. All problems are
// reported at once via errors.Join.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, errors.New("server.max_body_size must be positive"))
	}

	if c.Gateway.BackendURL == "" {
		errs = append(errs, errors.New("gateway.backend_url is required (or CODEWRIGHT_BACKEND_URL)"))
	}
	if c.Gateway.Model == "" {
		errs = append(errs, errors.New("gateway.model is required (or CODEWRIGHT_MODEL)"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}

	if c.Engine.MaxIterations <= 0 {
		errs = append(errs, errors.New("engine.max_iterations must be positive"))
	}
	if c.Engine.MaxTaskLength <= 0 {
		errs = append(errs, errors.New("engine.max_task_length must be positive"))
	}
	if c.Engine.MaxSuppliedTests <= 0 {
		errs = append(errs, errors.New("engine.max_supplied_tests must be positive"))
	}

	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, errors.New("sandbox.timeout must be positive"))
	}
	if c.Sandbox.MaxOutputBytes <= 0 {
		errs = append(errs, errors.New("sandbox.max_output_bytes must be positive"))
	}

	switch c.Storage.Type {
	case "memory":
		if c.Storage.MaxSize < 0 {
			errs = append(errs, errors.New("storage.max_size must not be negative"))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required when storage.type is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be memory or postgres, got %q", c.Storage.Type))
	}

	return errors.Join(errs...)
}

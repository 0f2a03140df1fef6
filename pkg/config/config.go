// Package config provides unified configuration for the codewright service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CODEWRIGHT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the codewright service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Engine        EngineConfig        `yaml:"engine"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// GatewayConfig holds generation backend settings.
type GatewayConfig struct {
	BackendURL string        `yaml:"backend_url"`  // required
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // required
	Timeout    time.Duration `yaml:"timeout"`      // default: 120s
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	MaxIterations    int `yaml:"max_iterations"`     // cap per run, default: 10
	MaxTaskLength    int `yaml:"max_task_length"`    // default: 4000
	MaxSuppliedTests int `yaml:"max_supplied_tests"` // default: 64
}

// SandboxConfig holds guest execution settings.
type SandboxConfig struct {
	Interpreter    string        `yaml:"interpreter"`      // default: "python3"
	Timeout        time.Duration `yaml:"timeout"`          // default: 10s
	Grace          time.Duration `yaml:"grace"`            // SIGTERM-to-SIGKILL window, default: 2s
	MaxOutputBytes int           `yaml:"max_output_bytes"` // default: 1 MiB
}

// StorageConfig holds run persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	Categories string `yaml:"categories"` // comma-separated, e.g. "engine,sandbox"
	Level      string `yaml:"level"`      // ERROR..TRACE, default: INFO
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			Timeout: 120 * time.Second,
		},
		Engine: EngineConfig{
			MaxIterations:    10,
			MaxTaskLength:    4000,
			MaxSuppliedTests: 64,
		},
		Sandbox: SandboxConfig{
			Interpreter:    "python3",
			Timeout:        10 * time.Second,
			Grace:          2 * time.Second,
			MaxOutputBytes: 1 << 20,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			Level: "INFO",
		},
	}
}

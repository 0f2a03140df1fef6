package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration. configPath may be empty, in
// which case the file is discovered from CODEWRIGHT_CONFIG or the
// standard locations. A missing config file is not an error; defaults
// and environment overrides still apply.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	path, explicit := discoverConfigFile(configPath)
	if path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return cfg, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// discoverConfigFile returns the config file path to try and whether it
// was explicitly requested (explicit paths must exist).
func discoverConfigFile(configPath string) (path string, explicit bool) {
	if configPath != "" {
		return configPath, true
	}
	if env := os.Getenv("CODEWRIGHT_CONFIG"); env != "" {
		return env, true
	}
	for _, candidate := range []string{"config.yaml", "/etc/codewright/config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, false
		}
	}
	return "", false
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

// applyEnvOverrides layers CODEWRIGHT_ environment variables on top of
// the file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CODEWRIGHT_BACKEND_URL"); v != "" {
		cfg.Gateway.BackendURL = v
	}
	if v := os.Getenv("CODEWRIGHT_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("CODEWRIGHT_MODEL"); v != "" {
		cfg.Gateway.Model = v
	}
	if v := os.Getenv("CODEWRIGHT_GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CODEWRIGHT_GATEWAY_TIMEOUT %q: %w", v, err)
		}
		cfg.Gateway.Timeout = d
	}
	if v := os.Getenv("CODEWRIGHT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CODEWRIGHT_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CODEWRIGHT_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CODEWRIGHT_STORAGE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CODEWRIGHT_STORAGE_SIZE %q: %w", v, err)
		}
		cfg.Storage.MaxSize = size
	}
	if v := os.Getenv("CODEWRIGHT_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("CODEWRIGHT_DEBUG"); v != "" {
		cfg.Debug.Categories = v
	}
	if v := os.Getenv("CODEWRIGHT_LOG_LEVEL"); v != "" {
		cfg.Debug.Level = v
	}
	return nil
}

// resolveFileReferences reads secrets referenced by _file fields. The
// direct value wins when both are set.
func resolveFileReferences(cfg *Config) error {
	if cfg.Gateway.APIKey == "" && cfg.Gateway.APIKeyFile != "" {
		v, err := readSecretFile(cfg.Gateway.APIKeyFile)
		if err != nil {
			return fmt.Errorf("reading gateway.api_key_file: %w", err)
		}
		cfg.Gateway.APIKey = v
	}
	if cfg.Storage.Postgres.DSN == "" && cfg.Storage.Postgres.DSNFile != "" {
		v, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("reading storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = v
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

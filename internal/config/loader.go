package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads an optional .env overlay, then the YAML configuration file at
// path, and returns a validated [Config]. Environment variables always win
// over file values for the fields they cover — see [applyEnvOverrides].
//
// The .env overlay (mined from intelligencedev-manifold's loader, which the
// teacher's go.mod does not carry) is loaded best-effort: a missing .env
// file is not an error, since most deployments set real environment
// variables directly rather than via a dotfile.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: failed to load .env overlay", "error", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	// Decode without validating, so that fields supplied only through the
	// environment are in place before Validate runs.
	cfg := &Config{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. It does not apply the .env
// overlay or environment overrides — useful in tests where configs are
// constructed from string literals and must remain deterministic.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables onto cfg for the handful
// of fields that are routinely secrets rather than config-file material.
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("PLEXUS_STORE_POSTGRES_DSN"); dsn != "" {
		cfg.Store.PostgresDSN = dsn
	}
	if url := os.Getenv("PLEXUS_OUTBOUND_NATS_URL"); url != "" {
		cfg.Outbound.URL = url
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Store.Backend != "" && !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, badger, postgres", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StoreBackendBadger && cfg.Store.BadgerDir == "" {
		errs = append(errs, errors.New("store.badger_dir is required when store.backend is \"badger\""))
	}
	if cfg.Store.Backend == StoreBackendPostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is \"postgres\" (or set PLEXUS_STORE_POSTGRES_DSN)"))
	}

	if cfg.Enrichment.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("enrichment.max_rounds %d must not be negative", cfg.Enrichment.MaxRounds))
	}

	if cfg.Outbound.Enabled && cfg.Outbound.URL == "" {
		errs = append(errs, errors.New("outbound.url is required when outbound.enabled is true"))
	}

	for i, seed := range cfg.Contexts {
		if seed.Name == "" {
			errs = append(errs, fmt.Errorf("contexts[%d].name is required", i))
		}
	}

	return errors.Join(errs...)
}

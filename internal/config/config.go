// Package config provides the configuration schema and loader for the
// Plexus graph-ingestion core.
package config

// Config is the root configuration structure for a Plexus deployment.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// with environment variables layered on top (see [Load]'s .env overlay).
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Outbound   OutboundConfig   `yaml:"outbound"`
	Contexts   []ContextSeed    `yaml:"contexts"`
}

// ServerConfig holds network and logging settings for the Plexus daemon.
type ServerConfig struct {
	// ListenAddr is the TCP address on which plexusd serves its /healthz
	// and /readyz endpoints (e.g., ":8080"). Left empty, no listener is
	// started. The facade itself has no network transport; it is used
	// embedded, in-process.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated string enum matching log/slog's levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is empty or one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// StoreBackend selects which GraphStore implementation backs the engine.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendBadger   StoreBackend = "badger"
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid reports whether b is one of the recognised store backends.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendMemory, StoreBackendBadger, StoreBackendPostgres:
		return true
	default:
		return false
	}
}

// StoreConfig selects and configures the GraphStore backend (spec §4.2).
type StoreConfig struct {
	// Backend selects the implementation. Defaults to "memory" if empty.
	Backend StoreBackend `yaml:"backend"`

	// BadgerDir is the on-disk directory for the badger backend.
	// Ignored unless Backend is "badger".
	BadgerDir string `yaml:"badger_dir"`

	// PostgresDSN is the connection string for the postgres backend.
	// Ignored unless Backend is "postgres". Typically supplied via the
	// PLEXUS_STORE_POSTGRES_DSN environment variable rather than committed
	// to the config file.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EnrichmentConfig tunes the enrichment loop (spec §4.6).
type EnrichmentConfig struct {
	// MaxRounds is the configured enrichment round budget. It is validated
	// (it must not be negative) and compared by Diff, but plexusd does not
	// pass it on: the pipeline's enrichment registry always runs with
	// enrichment.DefaultMaxRounds.
	MaxRounds int `yaml:"max_rounds"`
}

// OutboundConfig configures the optional NATS mirroring of OutboundEvents.
type OutboundConfig struct {
	// Enabled turns on the outbound publisher. When false, ingest's
	// synchronous return value is the only way to observe OutboundEvents.
	Enabled bool `yaml:"enabled"`

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string `yaml:"url"`

	// SubjectPrefix prefixes every published subject, before the
	// "<prefix>.<context>" suffix. Defaults to "plexus.outbound".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ContextSeed describes a Context the daemon should ensure exists at
// startup, so a deployment's context topology can be declared alongside
// its config rather than provisioned out-of-band.
type ContextSeed struct {
	// Name is the human-readable context name (graph.Context.Name).
	Name string `yaml:"name"`

	// Tags seed the context's metadata tags.
	Tags []string `yaml:"tags"`
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// Archive; empty disables persistence
	DatabaseURL string

	// Event feed; empty disables publishing
	NATSURL string

	// Solana configuration. SolanaRPCURL may list several comma-separated endpoints.
	SolanaRPCURL      string
	RPCTimeout        time.Duration
	DecodeConcurrency int

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Decoder configuration
	TokenMetadataPath   string
	BatchTokenProgramID string
	DCAProgramID        string
	DCAIDLPath          string
	GovernanceProgramID string
	GovernanceIDLPath   string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	timeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = timeout
	}

	concurrency, err := parseInt("DECODE_CONCURRENCY", 4)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DecodeConcurrency = concurrency
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "governance-decode")

	// Decoder configuration
	cfg.TokenMetadataPath = os.Getenv("TOKEN_METADATA_PATH")
	cfg.BatchTokenProgramID = getEnvOrDefault("BATCH_TOKEN_PROGRAM_ID", decoder.DefaultBatchTokenProgramID.String())
	cfg.DCAProgramID = getEnvOrDefault("DCA_PROGRAM_ID", decoder.DefaultDCAProgramID.String())
	cfg.DCAIDLPath = os.Getenv("DCA_IDL_PATH")
	cfg.GovernanceProgramID = getEnvOrDefault("GOVERNANCE_PROGRAM_ID", decoder.DefaultGovernanceProgramID.String())
	cfg.GovernanceIDLPath = os.Getenv("GOVERNANCE_IDL_PATH")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	for _, endpoint := range strings.Split(c.SolanaRPCURL, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			errs = append(errs, fmt.Errorf("SolanaRPCURL endpoint %q must be http(s)", endpoint))
		}
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
	}

	if c.DecodeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("DecodeConcurrency must be positive"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if _, err := c.Programs(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// Programs parses the configured deployment program addresses. Blank
// entries keep the decoder defaults.
func (c *Config) Programs() (decoder.ProgramIDs, error) {
	var ids decoder.ProgramIDs
	var errs []error
	for _, p := range []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"BatchTokenProgramID", c.BatchTokenProgramID, &ids.BatchToken},
		{"DCAProgramID", c.DCAProgramID, &ids.DCA},
		{"GovernanceProgramID", c.GovernanceProgramID, &ids.Governance},
	} {
		if p.raw == "" {
			continue
		}
		pk, err := decoder.ParseAddress(p.raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid address %q: %w", p.name, p.raw, err))
			continue
		}
		*p.dst = pk
	}
	return ids, errors.Join(errs...)
}

// NewDecoder builds the instruction decoder from the program and IDL settings.
func (c *Config) NewDecoder(logger *slog.Logger, m *metrics.Metrics) (*decoder.Decoder, error) {
	ids, err := c.Programs()
	if err != nil {
		return nil, err
	}
	if ids.DCA.IsZero() {
		ids.DCA = decoder.DefaultDCAProgramID
	}
	if ids.Governance.IsZero() {
		ids.Governance = decoder.DefaultGovernanceProgramID
	}

	opts := []decoder.Option{
		decoder.WithLogger(logger),
		decoder.WithMetrics(m),
		decoder.WithPrograms(ids),
	}
	for _, schema := range []struct {
		program solana.PublicKey
		path    string
	}{
		{ids.DCA, c.DCAIDLPath},
		{ids.Governance, c.GovernanceIDLPath},
	} {
		if schema.path == "" {
			continue
		}
		idl, err := decoder.LoadIDL(schema.path)
		if err != nil {
			return nil, fmt.Errorf("load IDL %s: %w", schema.path, err)
		}
		opts = append(opts, decoder.WithSchema(schema.program, idl))
	}
	return decoder.New(opts...), nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

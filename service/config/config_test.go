package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

func validConfig() *Config {
	return &Config{
		SolanaRPCURL:      "https://api.mainnet-beta.solana.com",
		RPCTimeout:        30 * time.Second,
		DecodeConcurrency: 4,
		TemporalHost:      "localhost:7233",
		TemporalNamespace: "default",
		TemporalTaskQueue: "governance-decode",
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Empty(t, cfg.DatabaseURL, "archive is optional")
	assert.Empty(t, cfg.NATSURL, "event feed is optional")
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 4, cfg.DecodeConcurrency)
	assert.Equal(t, "governance-decode", cfg.TemporalTaskQueue)
	assert.Equal(t, decoder.DefaultGovernanceProgramID.String(), cfg.GovernanceProgramID)
}

func TestLoad_MissingSolanaRPCURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	os.Setenv("RPC_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	os.Setenv("DECODE_CONCURRENCY", "many")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://a.example, https://b.example")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("METRICS_ADDR", ":9091")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("RPC_TIMEOUT", "1m")
	os.Setenv("DECODE_CONCURRENCY", "8")
	os.Setenv("DCA_PROGRAM_ID", "So11111111111111111111111111111111111111112")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, time.Minute, cfg.RPCTimeout)
	assert.Equal(t, 8, cfg.DecodeConcurrency)

	ids, err := cfg.Programs()
	require.NoError(t, err)
	assert.Equal(t, decoder.SOLMint, ids.DCA)
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing rpc", func(c *Config) { c.SolanaRPCURL = "" }, "SolanaRPCURL is required"},
		{"non http rpc", func(c *Config) { c.SolanaRPCURL = "ws://node" }, "must be http(s)"},
		{"short timeout", func(c *Config) { c.RPCTimeout = 100 * time.Millisecond }, "at least 1 second"},
		{"zero concurrency", func(c *Config) { c.DecodeConcurrency = 0 }, "DecodeConcurrency must be positive"},
		{"missing queue", func(c *Config) { c.TemporalTaskQueue = "" }, "TemporalTaskQueue is required"},
		{"bad program", func(c *Config) { c.GovernanceProgramID = "not-base58-0OIl" }, "GovernanceProgramID: invalid address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewDecoder_LoadsSchemas(t *testing.T) {
	// Setup
	cfg := validConfig()
	cfg.DCAIDLPath = filepath.Join("..", "decoder", "testdata", "dca.json")
	cfg.GovernanceIDLPath = filepath.Join("..", "decoder", "testdata", "governance.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Act
	dec, err := cfg.NewDecoder(logger, nil)

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, dec)
}

func TestNewDecoder_MissingSchema(t *testing.T) {
	cfg := validConfig()
	cfg.DCAIDLPath = filepath.Join(t.TempDir(), "absent.json")

	_, err := cfg.NewDecoder(nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load IDL")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"SOLANA_RPC_URL", "DATABASE_URL", "SERVER_ADDR", "METRICS_ADDR", "LOG_LEVEL",
		"NATS_URL", "TEMPORAL_HOST", "RPC_TIMEOUT", "DECODE_CONCURRENCY", "DCA_PROGRAM_ID",
	} {
		os.Unsetenv(key)
	}
}

package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendSQLite, cfg.Knowledge.Backend)
	assert.InDelta(t, 0.8, cfg.Pipeline.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Pipeline.MaxCandidatesPerContact)
	assert.True(t, cfg.Pipeline.Tiers.CandidateValidation)
	assert.Equal(t, 180*24*time.Hour, cfg.Confidence.HalfLife)
	assert.Equal(t, Trust{Cache: 1, Provider: 0.9, Search: 0.5, Validation: 1}, cfg.Confidence.Trust)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Providers.Hunter.Enabled())
}

func TestNewViper_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAILSCOUT_PIPELINE_THRESHOLD", "0.9")
	t.Setenv("MAILSCOUT_KNOWLEDGE_BACKEND", "memory")
	t.Setenv("MAILSCOUT_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HUNTER_API_KEY", "hk-123")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.Pipeline.Threshold, 1e-9)
	assert.Equal(t, BackendMemory, cfg.Knowledge.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "hk-123", cfg.Providers.Hunter.APIKey.Reveal())
	assert.True(t, cfg.Providers.Hunter.Enabled())
}

func TestNewViper_TrustOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAILSCOUT_CONFIDENCE_TRUST_SEARCH", "0.3")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.InDelta(t, 0.3, cfg.Confidence.Trust.Search, 1e-9)
	assert.InDelta(t, 0.9, cfg.Confidence.Trust.Provider, 1e-9)
}

func TestNewViper_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mailscout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  concurrency: 16\nstore:\n  path: /tmp/out.csv\n"), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Pipeline.Concurrency)
	assert.Equal(t, "/tmp/out.csv", cfg.Store.Path)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *viper.Viper {
		v := viper.New()
		SetDefaults(v)
		return v
	}

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"threshold above one", "pipeline.threshold", 1.5},
		{"zero threshold", "pipeline.threshold", 0},
		{"too many candidates", "pipeline.max_candidates_per_contact", 8},
		{"no concurrency", "pipeline.concurrency", 0},
		{"unknown backend", "knowledge.backend", "mongo"},
		{"postgres without dsn", "knowledge.backend", "postgres"},
		{"redis without url", "knowledge.backend", "redis"},
		{"bad log level", "logging.level", "loud"},
		{"zero burst", "providers.hunter.burst", 0},
		{"trust above one", "confidence.trust.search", 1.2},
		{"negative trust", "confidence.trust.provider", -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "", Secret("").String())

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("configured", "api_key", s)
	assert.NotContains(t, buf.String(), "super-secret")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

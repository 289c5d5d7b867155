// Package config loads runtime configuration from defaults, an optional YAML
// file, MAILSCOUT_* environment variables and bound CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key: server.addr -> MAILSCOUT_SERVER_ADDR.
const EnvPrefix = "MAILSCOUT"

// Knowledge backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full runtime configuration.
type Config struct {
	Server     Server
	Store      ResultStore
	Knowledge  Knowledge
	Pipeline   Pipeline
	Providers  Providers
	Confidence Confidence
	Kafka      Kafka
	Webhook    Webhook
	Logging    Logging
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ResultStore locates the durable CSV file.
type ResultStore struct {
	Path string
}

// Knowledge selects the pattern cache backend.
type Knowledge struct {
	Backend     string
	SQLitePath  string
	PostgresDSN Secret
	Redis       RedisConfig
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Pipeline holds verification limits.
type Pipeline struct {
	Threshold               float64
	MaxCandidatesPerContact int
	Concurrency             int
	TierTimeout             time.Duration
	ContactDeadline         time.Duration
	DeferRateLimited        bool
	Tiers                   Tiers
}

// Tiers toggles individual verification tiers.
type Tiers struct {
	KnownPattern        bool
	ProviderAPI         bool
	SearchProbe         bool
	CandidateValidation bool
}

// Providers holds external API settings.
type Providers struct {
	BreakerThreshold int
	Hunter           Provider
	NeverBounce      Provider
	SerpAPI          Provider
}

// Provider is one external API with its own token bucket.
type Provider struct {
	APIKey         Secret
	BaseURL        string
	RPS            float64
	Burst          int
	AcquireTimeout time.Duration
}

// Enabled reports whether the provider has credentials.
func (p Provider) Enabled() bool {
	return !p.APIKey.Empty()
}

// Confidence holds the scoring curve parameters.
type Confidence struct {
	Trust             Trust
	FrequencyExponent float64
	MinDamping        float64
	SampleSaturation  float64
	HalfLife          time.Duration
	ProviderSamples   int
}

// Trust is the base weight of each evidence source, each in [0,1].
type Trust struct {
	Cache      float64
	Provider   float64
	Search     float64
	Validation float64
}

// Kafka configures event publishing. No brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Webhook configures the ingestion endpoint.
type Webhook struct {
	JWTSecret    Secret
	MaxBodyBytes int64
	Concurrency  int
}

// Logging selects the slog handler.
type Logging struct {
	Level  string
	Format string
}

// NewViper returns a viper instance with env binding and defaults applied.
// cfgFile may be empty; a missing default config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also accepted under their conventional names.
	_ = v.BindEnv("providers.hunter.api_key", EnvPrefix+"_PROVIDERS_HUNTER_API_KEY", "HUNTER_API_KEY")
	_ = v.BindEnv("providers.neverbounce.api_key", EnvPrefix+"_PROVIDERS_NEVERBOUNCE_API_KEY", "NEVERBOUNCE_API_KEY")
	_ = v.BindEnv("providers.serpapi.api_key", EnvPrefix+"_PROVIDERS_SERPAPI_API_KEY", "SERPAPI_KEY")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mailscout")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers every key with its default so env-only overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.path", "results.csv")

	v.SetDefault("knowledge.backend", BackendSQLite)
	v.SetDefault("knowledge.sqlite_path", "patterns.db")
	v.SetDefault("knowledge.postgres_dsn", "")
	v.SetDefault("knowledge.redis.url", "")
	v.SetDefault("knowledge.redis.pool_size", 10)
	v.SetDefault("knowledge.redis.min_idle_conns", 2)
	v.SetDefault("knowledge.redis.dial_timeout", 5*time.Second)
	v.SetDefault("knowledge.redis.read_timeout", 3*time.Second)
	v.SetDefault("knowledge.redis.write_timeout", 3*time.Second)

	v.SetDefault("pipeline.threshold", 0.8)
	v.SetDefault("pipeline.max_candidates_per_contact", 3)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.tier_timeout", 10*time.Second)
	v.SetDefault("pipeline.contact_deadline", 60*time.Second)
	v.SetDefault("pipeline.defer_rate_limited", true)
	v.SetDefault("pipeline.tiers.known_pattern", true)
	v.SetDefault("pipeline.tiers.provider_api", true)
	v.SetDefault("pipeline.tiers.search_probe", true)
	v.SetDefault("pipeline.tiers.candidate_validation", true)

	v.SetDefault("providers.breaker_threshold", 5)
	v.SetDefault("providers.hunter.api_key", "")
	v.SetDefault("providers.hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("providers.hunter.rps", 5.0)
	v.SetDefault("providers.hunter.burst", 5)
	v.SetDefault("providers.hunter.acquire_timeout", 5*time.Second)
	v.SetDefault("providers.neverbounce.api_key", "")
	v.SetDefault("providers.neverbounce.base_url", "https://api.neverbounce.com/v4")
	v.SetDefault("providers.neverbounce.rps", 2.5)
	v.SetDefault("providers.neverbounce.burst", 1)
	v.SetDefault("providers.neverbounce.acquire_timeout", 5*time.Second)
	v.SetDefault("providers.serpapi.api_key", "")
	v.SetDefault("providers.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("providers.serpapi.rps", 1.0)
	v.SetDefault("providers.serpapi.burst", 1)
	v.SetDefault("providers.serpapi.acquire_timeout", 5*time.Second)

	v.SetDefault("confidence.trust.cache", 1.0)
	v.SetDefault("confidence.trust.provider", 0.9)
	v.SetDefault("confidence.trust.search", 0.5)
	v.SetDefault("confidence.trust.validation", 1.0)
	v.SetDefault("confidence.frequency_exponent", 0.25)
	v.SetDefault("confidence.min_damping", 0.5)
	v.SetDefault("confidence.sample_saturation", 3.0)
	v.SetDefault("confidence.half_life", 180*24*time.Hour)
	v.SetDefault("confidence.provider_samples", 10)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "mailscout.items")

	v.SetDefault("webhook.jwt_secret", "")
	v.SetDefault("webhook.max_body_bytes", int64(5<<20))
	v.SetDefault("webhook.concurrency", 8)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads a Config out of v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Store: ResultStore{Path: v.GetString("store.path")},
		Knowledge: Knowledge{
			Backend:     strings.ToLower(v.GetString("knowledge.backend")),
			SQLitePath:  v.GetString("knowledge.sqlite_path"),
			PostgresDSN: Secret(v.GetString("knowledge.postgres_dsn")),
			Redis: RedisConfig{
				URL:          v.GetString("knowledge.redis.url"),
				PoolSize:     v.GetInt("knowledge.redis.pool_size"),
				MinIdleConns: v.GetInt("knowledge.redis.min_idle_conns"),
				DialTimeout:  v.GetDuration("knowledge.redis.dial_timeout"),
				ReadTimeout:  v.GetDuration("knowledge.redis.read_timeout"),
				WriteTimeout: v.GetDuration("knowledge.redis.write_timeout"),
			},
		},
		Pipeline: Pipeline{
			Threshold:               v.GetFloat64("pipeline.threshold"),
			MaxCandidatesPerContact: v.GetInt("pipeline.max_candidates_per_contact"),
			Concurrency:             v.GetInt("pipeline.concurrency"),
			TierTimeout:             v.GetDuration("pipeline.tier_timeout"),
			ContactDeadline:         v.GetDuration("pipeline.contact_deadline"),
			DeferRateLimited:        v.GetBool("pipeline.defer_rate_limited"),
			Tiers: Tiers{
				KnownPattern:        v.GetBool("pipeline.tiers.known_pattern"),
				ProviderAPI:         v.GetBool("pipeline.tiers.provider_api"),
				SearchProbe:         v.GetBool("pipeline.tiers.search_probe"),
				CandidateValidation: v.GetBool("pipeline.tiers.candidate_validation"),
			},
		},
		Providers: Providers{
			BreakerThreshold: v.GetInt("providers.breaker_threshold"),
			Hunter:           loadProvider(v, "hunter"),
			NeverBounce:      loadProvider(v, "neverbounce"),
			SerpAPI:          loadProvider(v, "serpapi"),
		},
		Confidence: Confidence{
			Trust: Trust{
				Cache:      v.GetFloat64("confidence.trust.cache"),
				Provider:   v.GetFloat64("confidence.trust.provider"),
				Search:     v.GetFloat64("confidence.trust.search"),
				Validation: v.GetFloat64("confidence.trust.validation"),
			},
			FrequencyExponent: v.GetFloat64("confidence.frequency_exponent"),
			MinDamping:        v.GetFloat64("confidence.min_damping"),
			SampleSaturation:  v.GetFloat64("confidence.sample_saturation"),
			HalfLife:          v.GetDuration("confidence.half_life"),
			ProviderSamples:   v.GetInt("confidence.provider_samples"),
		},
		Kafka: Kafka{
			Brokers: nonEmpty(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Webhook: Webhook{
			JWTSecret:    Secret(v.GetString("webhook.jwt_secret")),
			MaxBodyBytes: v.GetInt64("webhook.max_body_bytes"),
			Concurrency:  v.GetInt("webhook.concurrency"),
		},
		Logging: Logging{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadProvider(v *viper.Viper, name string) Provider {
	prefix := "providers." + name + "."
	return Provider{
		APIKey:         Secret(v.GetString(prefix + "api_key")),
		BaseURL:        v.GetString(prefix + "base_url"),
		RPS:            v.GetFloat64(prefix + "rps"),
		Burst:          v.GetInt(prefix + "burst"),
		AcquireTimeout: v.GetDuration(prefix + "acquire_timeout"),
	}
}

// nonEmpty handles "a,b" env values, which viper hands back as a single element.
func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	switch c.Knowledge.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Knowledge.SQLitePath == "" {
			errs = append(errs, errors.New("knowledge.sqlite_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.Knowledge.PostgresDSN.Empty() {
			errs = append(errs, errors.New("knowledge.postgres_dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Knowledge.Redis.URL == "" {
			errs = append(errs, errors.New("knowledge.redis.url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("knowledge.backend %q is not one of memory, sqlite, postgres, redis", c.Knowledge.Backend))
	}

	p := c.Pipeline
	if p.Threshold <= 0 || p.Threshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.threshold must be in (0,1], got %v", p.Threshold))
	}
	if p.MaxCandidatesPerContact < 1 || p.MaxCandidatesPerContact > 7 {
		errs = append(errs, fmt.Errorf("pipeline.max_candidates_per_contact must be in [1,7], got %d", p.MaxCandidatesPerContact))
	}
	if p.Concurrency < 1 {
		errs = append(errs, errors.New("pipeline.concurrency must be at least 1"))
	}
	if p.TierTimeout <= 0 || p.ContactDeadline <= 0 {
		errs = append(errs, errors.New("pipeline.tier_timeout and pipeline.contact_deadline must be positive"))
	}

	if c.Providers.BreakerThreshold < 1 {
		errs = append(errs, errors.New("providers.breaker_threshold must be at least 1"))
	}
	for name, pr := range map[string]Provider{
		"hunter":      c.Providers.Hunter,
		"neverbounce": c.Providers.NeverBounce,
		"serpapi":     c.Providers.SerpAPI,
	} {
		if pr.RPS <= 0 || pr.Burst < 1 {
			errs = append(errs, fmt.Errorf("providers.%s: rps must be positive and burst at least 1", name))
		}
	}

	for name, t := range map[string]float64{
		"cache":      c.Confidence.Trust.Cache,
		"provider":   c.Confidence.Trust.Provider,
		"search":     c.Confidence.Trust.Search,
		"validation": c.Confidence.Trust.Validation,
	} {
		if t < 0 || t > 1 {
			errs = append(errs, fmt.Errorf("confidence.trust.%s must be in [0,1], got %v", name, t))
		}
	}

	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.Webhook.Concurrency < 1 {
		errs = append(errs, errors.New("webhook.concurrency must be at least 1"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("invalid log format: %s", c.Logging.Format))
	}

	return errors.Join(errs...)
}

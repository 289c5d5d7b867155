package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mailscout/internal/confidence"
	"mailscout/internal/events"
	jwttoken "mailscout/internal/jwt_token"
	"mailscout/internal/knowledge"
	knowledgemetrics "mailscout/internal/knowledge/metrics"
	"mailscout/internal/knowledge/store"
	"mailscout/internal/platform/config"
	"mailscout/internal/platform/logger"
	"mailscout/internal/platform/middleware"
	"mailscout/internal/platform/ratelimit"
	platformredis "mailscout/internal/platform/redis"
	"mailscout/internal/resultstore"
	"mailscout/internal/verification"
	verificationmetrics "mailscout/internal/verification/metrics"
	"mailscout/internal/verification/providers"
	"mailscout/internal/verification/providers/hunter"
	"mailscout/internal/verification/providers/neverbounce"
	"mailscout/internal/verification/providers/serpapi"
)

// bindings maps a command's flag names to config keys.
type bindings map[string]string

var globalBindings = bindings{
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

// app holds the loaded configuration and everything that must be closed on exit.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	closers  []func() error
}

func loadApp(cmd *cobra.Command, flags bindings) (*app, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}

	all := maps.Clone(globalBindings)
	maps.Copy(all, flags)
	for name, key := range all {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{cfg: cfg, logger: log, registry: reg}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("shutdown: close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) scorer() (*confidence.Scorer, error) {
	cc := confidence.DefaultConfig()
	t := a.cfg.Confidence.Trust
	cc.Trust = map[confidence.Source]float64{
		confidence.SourceCache:      t.Cache,
		confidence.SourceProvider:   t.Provider,
		confidence.SourceSearch:     t.Search,
		confidence.SourceValidation: t.Validation,
	}
	cc.FrequencyExponent = a.cfg.Confidence.FrequencyExponent
	cc.MinDamping = a.cfg.Confidence.MinDamping
	cc.SampleSaturation = a.cfg.Confidence.SampleSaturation
	cc.HalfLife = a.cfg.Confidence.HalfLife
	s, err := confidence.New(cc)
	if err != nil {
		return nil, fmt.Errorf("confidence: %w", err)
	}
	return s, nil
}

func (a *app) knowledgeBackend(ctx context.Context) (knowledge.Backend, error) {
	k := a.cfg.Knowledge
	switch k.Backend {
	case config.BackendMemory:
		return store.NewInMemoryStore(), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(ctx, k.SQLitePath)
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, k.PostgresDSN.Reveal())
	case config.BackendRedis:
		client, err := platformredis.New(ctx, k.Redis)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client.Client), nil
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", k.Backend)
	}
}

func (a *app) knowledgeStore(ctx context.Context, scorer *confidence.Scorer) (*knowledge.Store, error) {
	backend, err := a.knowledgeBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge store: %w", err)
	}
	ks := knowledge.New(backend, scorer, a.logger, knowledge.WithMetrics(knowledgemetrics.New(a.registry)))
	a.onClose(ks.Close)
	a.logger.Info("knowledge store opened", "backend", a.cfg.Knowledge.Backend)
	return ks, nil
}

func (a *app) guard(name string, p config.Provider, m *verificationmetrics.Metrics) *providers.Guard {
	limiter := ratelimit.New(name, ratelimit.Config{RequestsPerSecond: p.RPS, Burst: p.Burst})
	return providers.NewGuard(name, limiter, a.cfg.Providers.BreakerThreshold, a.logger,
		providers.WithAcquireTimeout(p.AcquireTimeout),
		providers.WithGuardMetrics(m),
	)
}

// tiers builds the enabled tiers in their fixed order. A provider tier whose
// provider has no API key is left out with a warning.
func (a *app) tiers(ks *knowledge.Store, scorer *confidence.Scorer, m *verificationmetrics.Metrics) []verification.Tier {
	t := a.cfg.Pipeline.Tiers
	p := a.cfg.Providers
	httpClient := &http.Client{Timeout: a.cfg.Pipeline.TierTimeout}

	var tiers []verification.Tier
	if t.KnownPattern {
		tiers = append(tiers, verification.NewKnownPatternLookup(ks, scorer, a.logger))
	}
	switch {
	case !t.ProviderAPI:
	case p.Hunter.Enabled():
		client := hunter.New(p.Hunter.BaseURL, p.Hunter.APIKey, httpClient, a.guard(hunter.Name, p.Hunter, m))
		tiers = append(tiers, verification.NewProviderAPILookup(client, ks, scorer, a.cfg.Confidence.ProviderSamples, a.logger))
	default:
		a.logger.Warn("provider tier disabled: no API key", "tier", verification.TierProviderAPI, "provider", hunter.Name)
	}
	switch {
	case !t.SearchProbe:
	case p.SerpAPI.Enabled():
		client := serpapi.New(p.SerpAPI.BaseURL, p.SerpAPI.APIKey, httpClient, a.guard(serpapi.Name, p.SerpAPI, m))
		tiers = append(tiers, verification.NewSearchEngineProbe(client, ks, scorer, a.logger))
	default:
		a.logger.Warn("search tier disabled: no API key", "tier", verification.TierSearchProbe, "provider", serpapi.Name)
	}
	switch {
	case !t.CandidateValidation:
	case p.NeverBounce.Enabled():
		client := neverbounce.New(p.NeverBounce.BaseURL, p.NeverBounce.APIKey, httpClient, a.guard(neverbounce.Name, p.NeverBounce, m))
		tiers = append(tiers, verification.NewCandidateValidation(client, neverbounce.Name, ks, scorer,
			verification.NewVerifyCache(), a.cfg.Pipeline.MaxCandidatesPerContact, a.logger))
	default:
		a.logger.Warn("validation tier disabled: no API key", "tier", verification.TierCandidateValidation, "provider", neverbounce.Name)
	}
	return tiers
}

func (a *app) pipeline(ctx context.Context) (*verification.Pipeline, error) {
	scorer, err := a.scorer()
	if err != nil {
		return nil, err
	}
	ks, err := a.knowledgeStore(ctx, scorer)
	if err != nil {
		return nil, err
	}
	m := verificationmetrics.New(a.registry)
	tiers := a.tiers(ks, scorer, m)

	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, string(t.Name()))
	}
	a.logger.Info("verification pipeline ready", "tiers", names, "threshold", a.cfg.Pipeline.Threshold)

	return verification.NewPipeline(verification.Config{
		Threshold:       a.cfg.Pipeline.Threshold,
		ContactDeadline: a.cfg.Pipeline.ContactDeadline,
		TierTimeout:     a.cfg.Pipeline.TierTimeout,
	}, tiers, a.logger, verification.WithMetrics(m)), nil
}

func (a *app) resultStore() (*resultstore.CSVStore, error) {
	rs, err := resultstore.Open(a.cfg.Store.Path, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(rs.Close)
	return rs, nil
}

func (a *app) publisher(ctx context.Context) (events.Publisher, error) {
	k := a.cfg.Kafka
	if len(k.Brokers) == 0 {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewKafkaPublisher(ctx, k.Brokers, k.Topic, a.logger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	a.onClose(p.Close)
	return p, nil
}

// tokenValidator returns nil when no webhook secret is configured.
func (a *app) tokenValidator() middleware.TokenValidator {
	if a.cfg.Webhook.JWTSecret.Empty() {
		return nil
	}
	return jwttoken.NewJWTService(a.cfg.Webhook.JWTSecret.Reveal())
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

const (
	// One hash per domain; fields are "<pattern>|<attr>".
	patternKeyPrefix = "mailscout:patterns:"

	attrSamples    = "samples"
	attrSource     = "source"
	attrVerified   = "verified"
	attrConfidence = "confidence"

	maxTxRetries = 64
)

// RedisStore shares pattern knowledge between workers through Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client. The store owns the client and closes it on Close.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func field(p pattern.Name, attr string) string {
	return string(p) + "|" + attr
}

// Upsert runs an optimistic WATCH/MULTI transaction on the domain hash:
// HINCRBY accumulates samples while source, timestamp and confidence are
// derived from the watched snapshot. A concurrent write to the same domain
// aborts the transaction and it is retried.
func (s *RedisStore) Upsert(ctx context.Context, obs models.Observation, score models.ScoreFunc) (models.DomainPatternRecord, error) {
	key := patternKeyPrefix + obs.Domain
	var out models.DomainPatternRecord

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		existing, err := decodeDomainHash(obs.Domain, raw)
		if err != nil {
			return err
		}

		rec := models.DomainPatternRecord{Domain: obs.Domain, Pattern: obs.Pattern, Source: obs.Source}
		total := obs.Samples
		for _, r := range existing {
			total += r.SampleCount
			if r.Pattern == obs.Pattern {
				rec = r
			}
		}
		rec.SampleCount += obs.Samples
		rec.Source = confidence.MoreTrusted(rec.Source, obs.Source)
		if at := obs.At.UTC(); at.After(rec.LastVerifiedAt) {
			rec.LastVerifiedAt = at
		}
		rec.Confidence = score(rec, total)

		var incr *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.HIncrBy(ctx, key, field(obs.Pattern, attrSamples), int64(obs.Samples))
			pipe.HSet(ctx, key,
				field(obs.Pattern, attrSource), string(rec.Source),
				field(obs.Pattern, attrVerified), strconv.FormatInt(rec.LastVerifiedAt.UnixNano(), 10),
				field(obs.Pattern, attrConfidence), strconv.FormatFloat(rec.Confidence, 'g', -1, 64),
			)
			return nil
		})
		if err != nil {
			return err
		}
		rec.SampleCount = int(incr.Val())
		out = rec
		return nil
	}

	for attempt := range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			select {
			case <-ctx.Done():
				return models.DomainPatternRecord{}, ctx.Err()
			case <-time.After(time.Duration(attempt%8) * time.Millisecond):
			}
			continue
		}
		if errors.Is(err, models.ErrCacheCorrupted) {
			return models.DomainPatternRecord{}, err
		}
		return models.DomainPatternRecord{}, fmt.Errorf("upsert pattern: %w", err)
	}
	return models.DomainPatternRecord{}, fmt.Errorf("upsert pattern %s/%s: too much contention", obs.Domain, obs.Pattern)
}

// ListByDomain reads and decodes the domain hash.
func (s *RedisStore) ListByDomain(ctx context.Context, domain string) ([]models.DomainPatternRecord, error) {
	raw, err := s.client.HGetAll(ctx, patternKeyPrefix+domain).Result()
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return decodeDomainHash(domain, raw)
}

// DeleteDomain removes the domain hash.
func (s *RedisStore) DeleteDomain(ctx context.Context, domain string) error {
	if err := s.client.Del(ctx, patternKeyPrefix+domain).Err(); err != nil {
		return fmt.Errorf("delete patterns: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeDomainHash(domain string, raw map[string]string) ([]models.DomainPatternRecord, error) {
	byPattern := make(map[pattern.Name]*models.DomainPatternRecord)
	seen := make(map[pattern.Name]map[string]bool)

	for f, v := range raw {
		i := strings.LastIndexByte(f, '|')
		if i <= 0 {
			return nil, fmt.Errorf("%w: unexpected field %q in %s", models.ErrCacheCorrupted, f, domain)
		}
		p, attr := pattern.Name(f[:i]), f[i+1:]
		rec, ok := byPattern[p]
		if !ok {
			rec = &models.DomainPatternRecord{Domain: domain, Pattern: p}
			byPattern[p] = rec
			seen[p] = make(map[string]bool, 4)
		}
		seen[p][attr] = true

		var err error
		switch attr {
		case attrSamples:
			rec.SampleCount, err = strconv.Atoi(v)
		case attrSource:
			rec.Source = confidence.Source(v)
		case attrVerified:
			var ns int64
			ns, err = strconv.ParseInt(v, 10, 64)
			rec.LastVerifiedAt = time.Unix(0, ns).UTC()
		case attrConfidence:
			rec.Confidence, err = strconv.ParseFloat(v, 64)
		default:
			err = errors.New("unknown attribute")
		}
		if err != nil {
			return nil, fmt.Errorf("%w: field %q in %s: %v", models.ErrCacheCorrupted, f, domain, err)
		}
	}

	out := make([]models.DomainPatternRecord, 0, len(byPattern))
	for p, rec := range byPattern {
		for _, attr := range []string{attrSamples, attrSource, attrVerified} {
			if !seen[p][attr] {
				return nil, fmt.Errorf("%w: %s/%s missing %s", models.ErrCacheCorrupted, domain, p, attr)
			}
		}
		out = append(out, *rec)
	}
	return out, nil
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"seriescomplete/models"
)

// Default resilience settings per spec'd provider class.
const (
	DefaultTripThreshold   = 5
	DefaultAITripThreshold = 3
	DefaultResetTimeout    = 60 * time.Second
	DefaultTTL             = 7 * 24 * time.Hour
	DefaultAITTL           = 30 * 24 * time.Hour
)

// ProviderConfig registers one adapter with the orchestrator.
type ProviderConfig struct {
	Provider      Provider
	Role          Role
	Bucket        BucketConfig
	TripThreshold int           // 0 = default for the role
	ResetTimeout  time.Duration // 0 = default
	CacheTTL      time.Duration // 0 = default for the role
}

// providerState is the per-provider resilience record: the breaker is owned
// exclusively here, and the shared limiter holds the provider's bucket.
type providerState struct {
	provider Provider
	role     Role
	breaker  *CircuitBreaker
	ttl      time.Duration
}

// Options adjusts a single Resolve call.
type Options struct {
	PreferredProvider string
	UseConsensus      bool
}

// Service is the fallback orchestrator: it sequences providers in priority
// order, gates every network call behind the provider's breaker and rate
// bucket, retries transient failures, deduplicates concurrent identical
// lookups and caches results in two tiers.
type Service struct {
	providers []*providerState
	limiter   *RateLimiter
	retry     RetryPolicy
	dedupe    Deduplicator
	cache     *TwoTierCache
}

// ErrEmptyName is the one hard contract violation Resolve reports.
var ErrEmptyName = errors.New("entity name must not be empty")

// NewService wires the orchestrator. Provider order is fallback priority
// order: the first registered provider is the primary.
func NewService(configs []ProviderConfig, cache *TwoTierCache, retry RetryPolicy) *Service {
	buckets := make(map[string]BucketConfig, len(configs))
	states := make([]*providerState, 0, len(configs))
	for _, cfg := range configs {
		threshold := cfg.TripThreshold
		if threshold == 0 {
			threshold = DefaultTripThreshold
			if cfg.Role == RoleAI {
				threshold = DefaultAITripThreshold
			}
		}
		reset := cfg.ResetTimeout
		if reset == 0 {
			reset = DefaultResetTimeout
		}
		ttl := cfg.CacheTTL
		if ttl == 0 {
			ttl = DefaultTTL
			if cfg.Role == RoleAI {
				ttl = DefaultAITTL
			}
		}
		buckets[cfg.Provider.ID()] = cfg.Bucket
		states = append(states, &providerState{
			provider: cfg.Provider,
			role:     cfg.Role,
			breaker:  NewCircuitBreaker(threshold, reset),
			ttl:      ttl,
		})
	}
	return &Service{
		providers: states,
		limiter:   NewRateLimiter(buckets),
		retry:     retry,
		cache:     cache,
	}
}

// Resolve returns completeness metadata for the named series, or (nil, nil)
// when every provider was exhausted without a match. Not-found is a business
// outcome, not an error.
func (s *Service) Resolve(ctx context.Context, name string, year int, opts Options) (*models.SeriesMetadata, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	norm := NormalizeName(name)
	key := resolveKey(norm, year, opts.PreferredProvider)

	result, shared, err := s.dedupe.Do(key, func() (*models.SeriesMetadata, error) {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}

		meta, trail := s.runFallback(ctx, norm, year, opts.PreferredProvider)
		if meta == nil {
			log.Printf("[resolver] %q exhausted all providers: %s", norm, trail)
			return nil, nil
		}

		if opts.UseConsensus {
			if report, err := s.Verify(ctx, norm, year); err == nil {
				applyConsensus(meta, report)
			}
		}

		s.cache.Set(key, meta, s.ttlFor(meta.Source))
		return meta, nil
	})
	if shared {
		log.Printf("[resolver] coalesced concurrent lookup for %q", norm)
	}
	return result, err
}

// attemptRecord is one entry in the per-resolution outcome trail.
type attemptRecord struct {
	provider string
	role     Role
	outcome  Outcome
}

type trail []attemptRecord

func (t trail) String() string {
	parts := make([]string, len(t))
	for i, a := range t {
		parts[i] = fmt.Sprintf("%s=%s", a.provider, a.outcome)
	}
	return strings.Join(parts, ", ")
}

// runFallback iterates providers in priority order. A found result
// short-circuits; not-found and error both escalate to the next tier.
func (s *Service) runFallback(ctx context.Context, norm string, year int, preferred string) (*models.SeriesMetadata, trail) {
	var tried trail
	for _, ps := range s.ordered(preferred) {
		meta, outcome, err := s.tryProvider(ctx, ps, norm, year)
		tried = append(tried, attemptRecord{provider: ps.provider.ID(), role: ps.role, outcome: outcome})
		if err != nil {
			log.Printf("[resolver] provider %s failed for %q: %v", ps.provider.ID(), norm, err)
		}
		if outcome != OutcomeFound {
			continue
		}
		if len(tried) > 1 {
			first := tried[0]
			meta.FallbackUsed = true
			meta.FallbackReason = fmt.Sprintf("%s_%s", first.outcome, first.role)
		}
		return meta, tried
	}
	return nil, tried
}

// ordered returns the provider chain, moving the preferred provider (if any)
// to the front without changing the relative order of the rest.
func (s *Service) ordered(preferred string) []*providerState {
	if preferred == "" {
		return s.providers
	}
	out := make([]*providerState, 0, len(s.providers))
	for _, ps := range s.providers {
		if ps.provider.ID() == preferred {
			out = append(out, ps)
		}
	}
	if len(out) == 0 {
		return s.providers
	}
	for _, ps := range s.providers {
		if ps.provider.ID() != preferred {
			out = append(out, ps)
		}
	}
	return out
}

// tryProvider performs one gated, retried attempt against a single provider.
func (s *Service) tryProvider(ctx context.Context, ps *providerState, norm string, year int) (*models.SeriesMetadata, Outcome, error) {
	if err := ps.breaker.Allow(); err != nil {
		return nil, OutcomeError, fmt.Errorf("%s: %w", ps.provider.ID(), err)
	}

	raw, err := s.searchWithRetry(ctx, ps, norm, year)
	if err == nil && raw == nil && year > 0 {
		// Second pass without the year filter before escalating.
		raw, err = s.searchWithRetry(ctx, ps, norm, 0)
	}
	if err != nil {
		ps.breaker.RecordFailure()
		return nil, OutcomeError, err
	}
	if raw == nil {
		ps.breaker.RecordSuccess()
		return nil, OutcomeNotFound, nil
	}

	if raw.TotalSeasons <= 0 && raw.ID != "" {
		detail, derr := s.detailsWithRetry(ctx, ps, raw.ID)
		if derr != nil {
			ps.breaker.RecordFailure()
			return nil, OutcomeError, derr
		}
		if detail != nil {
			raw = detail
		}
	}

	ps.breaker.RecordSuccess()
	if raw.TotalSeasons <= 0 {
		// Responded, but not a plausible result.
		return nil, OutcomeNotFound, nil
	}
	return s.normalize(raw, ps), OutcomeFound, nil
}

func (s *Service) searchWithRetry(ctx context.Context, ps *providerState, norm string, year int) (*RawResult, error) {
	var raw *RawResult
	err := s.retry.Do(ctx, func() error {
		if err := s.limiter.Acquire(ctx, ps.provider.ID()); err != nil {
			return err
		}
		if err := ps.provider.Authenticate(ctx); err != nil {
			return err
		}
		r, err := ps.provider.Search(ctx, norm, year)
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) detailsWithRetry(ctx context.Context, ps *providerState, id string) (*RawResult, error) {
	var raw *RawResult
	err := s.retry.Do(ctx, func() error {
		if err := s.limiter.Acquire(ctx, ps.provider.ID()); err != nil {
			return err
		}
		r, err := ps.provider.Details(ctx, id)
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// normalize converts a provider-native result into the immutable result type.
func (s *Service) normalize(raw *RawResult, ps *providerState) *models.SeriesMetadata {
	confidence := models.ConfidenceMedium
	if ps.role == RoleAI {
		confidence = models.ConfidenceLow
	}
	return &models.SeriesMetadata{
		Title:         raw.Title,
		TotalSeasons:  raw.TotalSeasons,
		TotalEpisodes: raw.TotalEpisodes,
		FirstAired:    raw.FirstAired,
		LastAired:     raw.LastAired,
		Status:        ParseAirStatus(raw.Status),
		Source:        ps.provider.ID(),
		Confidence:    confidence,
	}
}

// ParseAirStatus maps provider-native status strings onto the normalized
// enum. Unrecognized strings map to Unknown.
func ParseAirStatus(status string) models.AirStatus {
	switch s := strings.ToLower(strings.TrimSpace(status)); {
	case strings.Contains(s, "continuing"), strings.Contains(s, "returning"), strings.Contains(s, "running"):
		return models.StatusContinuing
	case strings.Contains(s, "cancel"):
		return models.StatusCanceled
	case strings.Contains(s, "ended"):
		return models.StatusEnded
	case strings.Contains(s, "upcoming"), strings.Contains(s, "in production"), strings.Contains(s, "planned"), strings.Contains(s, "in development"):
		return models.StatusUpcoming
	default:
		return models.StatusUnknown
	}
}

// ProviderHealth snapshots every provider's resilience state.
func (s *Service) ProviderHealth() map[string]models.ProviderHealth {
	out := make(map[string]models.ProviderHealth, len(s.providers))
	for _, ps := range s.providers {
		open, failures := ps.breaker.Snapshot()
		out[ps.provider.ID()] = models.ProviderHealth{
			CircuitOpen:         open,
			ConsecutiveFailures: failures,
			TokensAvailable:     float64(s.limiter.Tokens(ps.provider.ID())),
		}
	}
	return out
}

// InvalidateCache removes cached entries matching the pattern from both
// tiers; an empty pattern clears the whole cache.
func (s *Service) InvalidateCache(pattern string) int {
	removed := s.cache.InvalidatePattern(pattern)
	log.Printf("[resolver] invalidated %d cache entries (pattern=%q)", removed, pattern)
	return removed
}

// Flush persists all queued cache writes; called on graceful shutdown.
func (s *Service) Flush() {
	s.cache.Flush()
}

// Close flushes and stops the cache writer.
func (s *Service) Close() {
	s.cache.Close()
}

func (s *Service) ttlFor(providerID string) time.Duration {
	for _, ps := range s.providers {
		if ps.provider.ID() == providerID {
			return ps.ttl
		}
	}
	return DefaultTTL
}

func resolveKey(norm string, year int, preferred string) string {
	key := fmt.Sprintf("resolve:%s:%d", norm, year)
	if preferred != "" {
		key += ":" + preferred
	}
	return key
}

package services

import (
	"context"
	"strings"

	"github.com/epeers/exposure/internal/cache"
	"github.com/epeers/exposure/internal/community"
	"github.com/epeers/exposure/internal/lookup"
	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/repository"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ResolutionTier is one source of canonical identities in the cascade.
// Every tier returns a classifiable result: an identity or a miss (nil),
// never an unhandled fault — network and parse failures are logged inside
// the tier and reported as misses.
type ResolutionTier interface {
	Name() string
	// Networked reports whether lookups leave the process. Networked tiers
	// are skipped for tier-2 holdings and gated by the shared semaphore.
	Networked() bool
	Lookup(ctx context.Context, ticker, name string) *models.ResolvedIdentity
	BatchLookup(ctx context.Context, tickers []string) map[string]models.ResolvedIdentity
}

// Resolver maps raw ticker/name pairs to canonical identities by walking an
// ordered tier list, short-circuiting on the first hit. Hits from slower
// tiers are written through to the local cache and contributed back to the
// community store without blocking the caller.
type Resolver struct {
	tiers     []ResolutionTier
	memCache  *cache.MemoryCache
	cacheRepo *repository.ResolutionCacheRepository
	comm      *community.Client
}

// NewResolver builds the standard three-tier cascade: local cache, community
// store, external lookup services. gate bounds concurrent network-tier calls.
func NewResolver(
	memCache *cache.MemoryCache,
	cacheRepo *repository.ResolutionCacheRepository,
	comm *community.Client,
	external *lookup.ServiceList,
	gate *semaphore.Weighted,
) *Resolver {
	tiers := []ResolutionTier{
		&cacheTier{mem: memCache, repo: cacheRepo},
	}
	if comm != nil {
		tiers = append(tiers, &communityTier{client: comm, gate: gate})
	}
	if !external.Empty() {
		tiers = append(tiers, &externalTier{services: external, gate: gate})
	}
	return &Resolver{
		tiers:     tiers,
		memCache:  memCache,
		cacheRepo: cacheRepo,
		comm:      comm,
	}
}

// Resolve walks the cascade for one ticker/name pair. When fullCascade is
// false only non-networked tiers are consulted (tier-2 holdings trade
// completeness for latency). On a total miss the returned reason is
// ReasonNoTicker, ReasonTier2Skipped or ReasonAPIAllFailed.
func (r *Resolver) Resolve(ctx context.Context, ticker, name string, fullCascade bool) (*models.ResolvedIdentity, string) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" || strings.EqualFold(ticker, "n/a") {
		return nil, models.ReasonNoTicker
	}

	for i, tier := range r.tiers {
		if tier.Networked() && !fullCascade {
			continue
		}
		ri := tier.Lookup(ctx, ticker, name)
		if ri == nil {
			continue
		}
		if i > 0 {
			r.writeThrough(ticker, *ri)
		}
		return ri, ""
	}

	if !fullCascade {
		return nil, models.ReasonTier2Skipped
	}
	return nil, models.ReasonAPIAllFailed
}

// BatchCacheLookup resolves many tickers against the local cache only, used
// to prefetch before per-item cascades.
func (r *Resolver) BatchCacheLookup(ctx context.Context, tickers []string) map[string]models.ResolvedIdentity {
	if len(r.tiers) == 0 {
		return map[string]models.ResolvedIdentity{}
	}
	return r.tiers[0].BatchLookup(ctx, tickers)
}

// writeThrough persists a slower-tier hit into both cache layers and, for
// hits that did not come from the community store, contributes the mapping
// back. The contribution is fire-and-forget: it never blocks resolution and
// its failure is only logged.
func (r *Resolver) writeThrough(ticker string, ri models.ResolvedIdentity) {
	r.memCache.SetIdentity(ticker, ri)

	// Cache writes are idempotent upserts keyed by ticker, so concurrent
	// resolutions of the same symbol are harmless.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()
		if err := r.cacheRepo.PutIdentity(ctx, ticker, ri); err != nil {
			log.Errorf("failed to write identity %q to local cache: %v", ticker, err)
		}
	}()

	if r.comm != nil && ri.Source != models.SourceCommunityStore {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
			defer cancel()
			err := r.comm.Contribute(ctx, community.Contribution{
				Kind:       "identity",
				Ticker:     ticker,
				Identity:   ri.Identity,
				Name:       ri.Name,
				Confidence: ri.Confidence,
			})
			if err != nil {
				log.Errorf("community contribution for %q failed: %v", ticker, err)
			}
		}()
	}
}

// cacheTier consults the in-memory L1 and the Postgres resolution cache.
// It never leaves the process and is therefore unbounded.
type cacheTier struct {
	mem  *cache.MemoryCache
	repo *repository.ResolutionCacheRepository
}

func (t *cacheTier) Name() string    { return models.SourceLocalCache }
func (t *cacheTier) Networked() bool { return false }

func (t *cacheTier) Lookup(ctx context.Context, ticker, _ string) *models.ResolvedIdentity {
	if ri, ok := t.mem.GetIdentity(ticker); ok {
		return ri
	}

	for _, candidate := range symbolVariants(ticker) {
		ri, err := t.repo.GetIdentity(ctx, candidate)
		if err != nil {
			log.Errorf("resolution cache lookup for %q failed: %v", candidate, err)
			return nil
		}
		if ri != nil {
			t.mem.SetIdentity(ticker, *ri)
			return ri
		}
	}
	return nil
}

func (t *cacheTier) BatchLookup(ctx context.Context, tickers []string) map[string]models.ResolvedIdentity {
	result := make(map[string]models.ResolvedIdentity)
	var misses []string
	for _, ticker := range tickers {
		if ri, ok := t.mem.GetIdentity(ticker); ok {
			result[ticker] = *ri
		} else {
			misses = append(misses, ticker)
		}
	}
	if len(misses) == 0 {
		return result
	}

	cached, err := t.repo.BatchGetIdentities(ctx, misses)
	if err != nil {
		log.Errorf("batch resolution cache lookup failed: %v", err)
		return result
	}
	for ticker, ri := range cached {
		t.mem.SetIdentity(ticker, ri)
		result[ticker] = ri
	}
	return result
}

// symbolVariants returns the ticker plus punctuation variants: brokerage CSVs
// use "." as a share-class separator (BRK.B) while the cache may hold the
// same security as "BRK-B" or "BRKB", and vice versa.
func symbolVariants(ticker string) []string {
	variants := []string{ticker}
	if !strings.ContainsAny(ticker, ".-") {
		return variants
	}
	for _, candidate := range []string{
		strings.ReplaceAll(ticker, ".", "-"),
		strings.ReplaceAll(ticker, "-", "."),
		strings.NewReplacer(".", "", "-", "").Replace(ticker),
	} {
		if candidate != ticker {
			variants = append(variants, candidate)
		}
	}
	return variants
}

// communityTier consults the shared community store.
type communityTier struct {
	client *community.Client
	gate   *semaphore.Weighted
}

func (t *communityTier) Name() string    { return models.SourceCommunityStore }
func (t *communityTier) Networked() bool { return true }

func (t *communityTier) Lookup(ctx context.Context, ticker, _ string) *models.ResolvedIdentity {
	if err := t.gate.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer t.gate.Release(1)

	resp, err := t.client.ResolveIdentity(ctx, ticker)
	if err != nil {
		log.Warnf("community identity lookup for %q failed: %v", ticker, err)
		return nil
	}
	if resp == nil {
		return nil
	}
	return &models.ResolvedIdentity{
		Identity:   resp.Identity,
		Name:       resp.Name,
		Source:     models.SourceCommunityStore,
		Confidence: resp.Confidence,
	}
}

func (t *communityTier) BatchLookup(ctx context.Context, tickers []string) map[string]models.ResolvedIdentity {
	result := make(map[string]models.ResolvedIdentity)
	if len(tickers) == 0 {
		return result
	}
	if err := t.gate.Acquire(ctx, 1); err != nil {
		return result
	}
	defer t.gate.Release(1)

	resolutions, err := t.client.BatchResolve(ctx, tickers)
	if err != nil {
		log.Warnf("community batch resolve failed: %v", err)
		return result
	}
	for ticker, resp := range resolutions {
		result[ticker] = models.ResolvedIdentity{
			Identity:   resp.Identity,
			Name:       resp.Name,
			Source:     models.SourceCommunityStore,
			Confidence: resp.Confidence,
		}
	}
	return result
}

// externalTier consults external reference services, last resort.
type externalTier struct {
	services *lookup.ServiceList
	gate     *semaphore.Weighted
}

func (t *externalTier) Name() string    { return models.SourceExternalAPI }
func (t *externalTier) Networked() bool { return true }

func (t *externalTier) Lookup(ctx context.Context, ticker, name string) *models.ResolvedIdentity {
	if err := t.gate.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer t.gate.Release(1)

	parsed, _ := t.services.SearchIdentity(ctx, ticker, name)
	if parsed == nil {
		return nil
	}
	return &models.ResolvedIdentity{
		Identity:   parsed.Identity,
		Name:       parsed.Name,
		Source:     models.SourceExternalAPI,
		Confidence: lookup.ExternalConfidence,
	}
}

func (t *externalTier) BatchLookup(ctx context.Context, tickers []string) map[string]models.ResolvedIdentity {
	// External services have no batch endpoint; callers fan out per ticker.
	result := make(map[string]models.ResolvedIdentity)
	for _, ticker := range tickers {
		if ri := t.Lookup(ctx, ticker, ""); ri != nil {
			result[ticker] = *ri
		}
	}
	return result
}

package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epeers/exposure/internal/cache"
	"github.com/epeers/exposure/internal/community"
	"github.com/epeers/exposure/internal/lookup"
	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/repository"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// EnrichService attaches sector/geography/asset-class metadata to the union
// of all distinct identities found across decompositions and direct
// positions, batching each cache tier and falling back to external services
// one identity at a time under the shared network gate.
type EnrichService struct {
	memCache  *cache.MemoryCache
	cacheRepo *repository.ResolutionCacheRepository
	comm      *community.Client
	external  *lookup.ServiceList
	gate      *semaphore.Weighted
}

// NewEnrichService creates a new EnrichService.
func NewEnrichService(
	memCache *cache.MemoryCache,
	cacheRepo *repository.ResolutionCacheRepository,
	comm *community.Client,
	external *lookup.ServiceList,
	gate *semaphore.Weighted,
) *EnrichService {
	return &EnrichService{
		memCache:  memCache,
		cacheRepo: cacheRepo,
		comm:      comm,
		external:  external,
		gate:      gate,
	}
}

// Enrich resolves metadata for every identity referenced by the run and
// returns the identity → metadata map plus the enriched constituent list.
// Identities that miss every tier come back with "Unknown" fields so
// aggregation never handles absent metadata.
func (s *EnrichService) Enrich(ctx context.Context, positions []models.Position, decomps []models.Decomposition) (map[string]models.Metadata, []models.EnrichedConstituent) {
	defer TrackTime("Enrich", time.Now())

	identities := collectIdentities(positions, decomps)
	found := make(map[string]models.Metadata, len(identities))

	// L1: in-process cache.
	var misses []string
	for _, id := range identities {
		if m, ok := s.memCache.GetMetadata(id); ok {
			found[id] = *m
		} else {
			misses = append(misses, id)
		}
	}

	// L2: Postgres metadata cache, one batched query.
	if len(misses) > 0 {
		cached, err := s.cacheRepo.BatchGetMetadata(ctx, misses)
		if err != nil {
			log.Errorf("batch metadata cache lookup failed: %v", err)
		}
		misses = applyBatch(found, s.memCache, misses, cached)
	}

	// L3: community store, one batched network call.
	if len(misses) > 0 && s.comm != nil {
		if err := s.gate.Acquire(ctx, 1); err == nil {
			resp, err := s.comm.BatchMetadata(ctx, misses)
			s.gate.Release(1)
			if err != nil {
				log.Warnf("community batch metadata failed: %v", err)
			} else {
				communityHits := make(map[string]models.Metadata, len(resp))
				for id, m := range resp {
					communityHits[id] = models.Metadata{
						Sector:     m.Sector,
						Geography:  m.Geography,
						AssetClass: m.AssetClass,
						Source:     models.SourceCommunityStore,
						Confidence: m.Confidence,
					}
				}
				misses = applyBatch(found, s.memCache, misses, communityHits)
				s.writeThroughAsync(communityHits, false)
			}
		}
	}

	// L4: external enrichment services, per identity, bounded by the gate.
	if len(misses) > 0 && !s.external.Empty() {
		externalHits := s.enrichExternal(ctx, misses)
		misses = applyBatch(found, s.memCache, misses, externalHits)
		s.writeThroughAsync(externalHits, true)
	}

	// Everything still missing defaults to Unknown.
	for _, id := range misses {
		found[id] = models.Metadata{}.WithDefaults()
	}
	for id, m := range found {
		found[id] = m.WithDefaults()
	}

	return found, applyToConstituents(decomps, found)
}

func (s *EnrichService) enrichExternal(ctx context.Context, identities []string) map[string]models.Metadata {
	hits := make(map[string]models.Metadata)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range identities {
		g.Go(func() error {
			if err := s.gate.Acquire(gctx, 1); err != nil {
				return nil
			}
			parsed, svcName := s.external.GetMetadata(gctx, id)
			s.gate.Release(1)
			if parsed == nil {
				return nil
			}
			mu.Lock()
			hits[id] = models.Metadata{
				Sector:     parsed.Sector,
				Geography:  parsed.Geography,
				AssetClass: parsed.AssetClass,
				Source:     svcName,
				Confidence: lookup.ExternalConfidence,
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return hits
}

// writeThroughAsync persists newly discovered metadata to the Postgres cache
// and, for external finds, contributes it back to the community store.
// Detached from the pipeline; failures are logged only.
func (s *EnrichService) writeThroughAsync(hits map[string]models.Metadata, contribute bool) {
	if len(hits) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()
		for id, m := range hits {
			if err := s.cacheRepo.PutMetadata(ctx, id, m); err != nil {
				log.Errorf("failed to cache metadata for %s: %v", id, err)
			}
			if contribute && s.comm != nil {
				err := s.comm.Contribute(ctx, community.Contribution{
					Kind:     "metadata",
					Identity: id,
					Metadata: &community.MetadataResponse{
						Sector:     m.Sector,
						Geography:  m.Geography,
						AssetClass: m.AssetClass,
						Confidence: m.Confidence,
					},
				})
				if err != nil {
					log.Errorf("community metadata contribution for %s failed: %v", id, err)
				}
			}
		}
	}()
}

// collectIdentities returns the deduplicated, deterministic-order union of
// identities across direct positions and resolved constituents.
func collectIdentities(positions []models.Position, decomps []models.Decomposition) []string {
	seen := make(map[string]bool)
	var identities []string

	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			identities = append(identities, id)
		}
	}

	for _, p := range positions {
		if !p.Pooled() {
			add(p.Identity)
		}
	}
	for _, d := range decomps {
		for _, c := range d.Constituents {
			add(c.Identity)
		}
	}

	sort.Strings(identities)
	return identities
}

// applyBatch moves hits from a tier's result into found and returns the
// remaining misses.
func applyBatch(found map[string]models.Metadata, mem *cache.MemoryCache, misses []string, hits map[string]models.Metadata) []string {
	var remaining []string
	for _, id := range misses {
		if m, ok := hits[id]; ok {
			found[id] = m
			mem.SetMetadata(id, m)
		} else {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

func applyToConstituents(decomps []models.Decomposition, metadata map[string]models.Metadata) []models.EnrichedConstituent {
	var enriched []models.EnrichedConstituent
	for _, d := range decomps {
		for _, c := range d.Constituents {
			m := metadata[c.Identity].WithDefaults()
			enriched = append(enriched, models.EnrichedConstituent{
				ConstituentRecord: c,
				Sector:            m.Sector,
				Geography:         m.Geography,
				AssetClass:        m.AssetClass,
			})
		}
	}
	return enriched
}

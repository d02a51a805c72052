package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/epeers/exposure/internal/community"
	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/providers"
	"github.com/epeers/exposure/internal/quality"
	"github.com/epeers/exposure/internal/repository"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DecomposeService expands pooled-instrument positions into weighted
// constituent records: cached breakdown first, then the community store,
// then the instrument's provider adapter.
type DecomposeService struct {
	decompRepo *repository.DecompositionCacheRepository
	comm       *community.Client
	registry   *providers.Registry
	resolver   *Resolver
	gate       *semaphore.Weighted

	maxAge   time.Duration // freshness window for cached decompositions
	tier1Pct float64       // weight threshold for the full resolution cascade
}

// NewDecomposeService creates a new DecomposeService.
func NewDecomposeService(
	decompRepo *repository.DecompositionCacheRepository,
	comm *community.Client,
	registry *providers.Registry,
	resolver *Resolver,
	gate *semaphore.Weighted,
	maxAge time.Duration,
	tier1Pct float64,
) *DecomposeService {
	return &DecomposeService{
		decompRepo: decompRepo,
		comm:       comm,
		registry:   registry,
		resolver:   resolver,
		gate:       gate,
		maxAge:     maxAge,
		tier1Pct:   tier1Pct,
	}
}

// DecomposeAll expands every pooled position. Instruments are processed
// concurrently; the semaphore inside each tier bounds actual network calls.
// A failed instrument yields an empty Decomposition and a HIGH issue — never
// an error, the remaining instruments proceed.
func (s *DecomposeService) DecomposeAll(ctx context.Context, positions []models.Position, report *quality.Report) []models.Decomposition {
	defer TrackTime("DecomposeAll", time.Now())

	var pooled []models.Position
	for _, p := range positions {
		if p.Pooled() {
			pooled = append(pooled, p)
		}
	}
	if len(pooled) == 0 {
		return nil
	}

	results := make([]models.Decomposition, len(pooled))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range pooled {
		g.Go(func() error {
			d, err := s.decomposeOne(gctx, pos)
			if err != nil {
				log.Errorf("couldn't decompose instrument %s: %v", pos.Ticker, err)
				mu.Lock()
				report.Add("decompose", quality.NewIssue(
					quality.SeverityHigh, quality.CategoryResolution, quality.CodeDecompositionFailed,
					fmt.Sprintf("decomposition of %s failed: %v", pos.Ticker, err)).
					WithItem(pos.Ticker).
					WithRemediation("the instrument will be treated as a single opaque holding"))
				mu.Unlock()
				d = models.Decomposition{
					Identity:   instrumentKey(pos),
					Symbol:     pos.Ticker,
					TotalValue: pos.Value(),
				}
			}
			results[i] = d
			return nil
		})
	}
	// Workers never return errors; per-instrument failures become issues.
	_ = g.Wait()

	return results
}

func (s *DecomposeService) decomposeOne(ctx context.Context, pos models.Position) (models.Decomposition, error) {
	defer TrackTime("decomposeOne "+pos.Ticker, time.Now())

	key := instrumentKey(pos)

	// Fresh complete prior decomposition short-circuits everything.
	cached, err := s.decompRepo.Get(ctx, key)
	if err != nil {
		log.Errorf("decomposition cache read for %s failed: %v", pos.Ticker, err)
	}
	if cached != nil && len(cached.Constituents) > 0 && !repository.IsStale(cached.PulledAt, s.maxAge) {
		cached.TotalValue = pos.Value()
		return *cached, nil
	}

	raw, source, err := s.fetchBreakdown(ctx, key, pos)
	if err != nil {
		return models.Decomposition{}, err
	}

	constituents, _ := NormalizeWeightScale(rawToConstituents(raw))
	s.resolveConstituents(ctx, constituents)

	d := models.Decomposition{
		Identity:     key,
		Symbol:       pos.Ticker,
		TotalValue:   pos.Value(),
		Constituents: constituents,
		Source:       source,
		PulledAt:     time.Now(),
	}

	// Write-through happens after resolution so the cache stores resolved
	// holdings, and in the background so it never blocks the pipeline.
	s.persistAsync(d, source)

	return d, nil
}

// fetchBreakdown tries the community store, then the provider adapter.
func (s *DecomposeService) fetchBreakdown(ctx context.Context, key string, pos models.Position) ([]providers.RawHolding, string, error) {
	if s.comm != nil {
		if err := s.gate.Acquire(ctx, 1); err != nil {
			return nil, "", err
		}
		resp, err := s.comm.GetDecomposition(ctx, key)
		s.gate.Release(1)
		if err != nil {
			log.Warnf("community decomposition lookup for %s failed: %v", pos.Ticker, err)
		} else if resp != nil && len(resp.Holdings) > 0 {
			holdings := make([]providers.RawHolding, len(resp.Holdings))
			for i, h := range resp.Holdings {
				holdings[i] = providers.RawHolding{Ticker: h.Ticker, Name: h.Name, Weight: h.Weight}
			}
			return holdings, models.SourceCommunityStore, nil
		}
	}

	adapter := s.registry.ForInstrument(key)
	if adapter == nil {
		return nil, "", fmt.Errorf("no provider adapter registered for %s", key)
	}

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	raw, err := adapter.FetchDecomposition(ctx, key, pos.Ticker)
	s.gate.Release(1)
	if err != nil {
		return nil, "", fmt.Errorf("provider %s: %w", adapter.Name(), err)
	}
	if raw == nil || len(raw.Holdings) == 0 {
		return nil, models.SourceProvider, nil
	}
	return raw.Holdings, models.SourceProvider, nil
}

// resolveConstituents attaches identities in place, preserving source order.
// Holdings at or above the tier-1 weight threshold get the full cascade;
// the rest consult only the local cache.
func (s *DecomposeService) resolveConstituents(ctx context.Context, constituents []models.ConstituentRecord) {
	tickers := make([]string, 0, len(constituents))
	for _, c := range constituents {
		if c.Ticker != "" {
			tickers = append(tickers, c.Ticker)
		}
	}
	prefetched := s.resolver.BatchCacheLookup(ctx, tickers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range constituents {
		c := &constituents[i]
		if ri, ok := prefetched[c.Ticker]; ok {
			applyResolution(c, &ri, "")
			continue
		}

		fullCascade := c.Weight >= s.tier1Pct
		g.Go(func() error {
			ri, reason := s.resolver.Resolve(gctx, c.Ticker, c.Name, fullCascade)
			applyResolution(c, ri, reason)
			return nil
		})
	}
	_ = g.Wait()
}

func applyResolution(c *models.ConstituentRecord, ri *models.ResolvedIdentity, reason string) {
	if ri != nil {
		c.Identity = ri.Identity
		c.Status = models.ResolutionResolved
		c.Source = ri.Source
		c.Confidence = ri.Confidence
		if c.Name == "" {
			c.Name = ri.Name
		}
		return
	}
	c.Confidence = 0
	c.Reason = reason
	if reason == models.ReasonTier2Skipped {
		c.Status = models.ResolutionSkipped
	} else {
		c.Status = models.ResolutionUnresolved
	}
}

// persistAsync writes the resolved decomposition to the local cache and, for
// provider-fresh data, contributes it to the community store. Both writes
// are detached; failures are logged, never propagated.
func (s *DecomposeService) persistAsync(d models.Decomposition, source string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()
		if err := s.decompRepo.Put(ctx, d); err != nil {
			log.Errorf("failed to cache decomposition of %s: %v", d.Symbol, err)
		}
	}()

	if s.comm != nil && source == models.SourceProvider {
		holdings := make([]community.RawHolding, len(d.Constituents))
		for i, c := range d.Constituents {
			holdings[i] = community.RawHolding{Ticker: c.Ticker, Name: c.Name, Weight: c.Weight}
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
			defer cancel()
			err := s.comm.Contribute(ctx, community.Contribution{
				Kind:     "decomposition",
				Identity: d.Identity,
				Symbol:   d.Symbol,
				Holdings: holdings,
			})
			if err != nil {
				log.Errorf("community contribution of %s decomposition failed: %v", d.Symbol, err)
			}
		}()
	}
}

// NormalizeWeightScale rescales raw constituent weights to percentage points
// using the total-sum heuristic: a sum in [0.5,1.5] is a fraction scale and
// is multiplied by 100; a sum in [50,150] is already percentage points and
// passes through. Anything else is left untouched and reported as suspect —
// guessing a scale would silently corrupt exposure.
func NormalizeWeightScale(constituents []models.ConstituentRecord) (out []models.ConstituentRecord, suspect bool) {
	if len(constituents) == 0 {
		return constituents, false
	}

	var sum float64
	for _, c := range constituents {
		sum += c.Weight
	}

	switch {
	case sum >= 0.5 && sum <= 1.5:
		out = make([]models.ConstituentRecord, len(constituents))
		for i, c := range constituents {
			c.Weight *= 100
			out[i] = c
		}
		return out, false
	case sum >= 50 && sum <= 150:
		return constituents, false
	default:
		return constituents, true
	}
}

func rawToConstituents(raw []providers.RawHolding) []models.ConstituentRecord {
	constituents := make([]models.ConstituentRecord, len(raw))
	for i, h := range raw {
		constituents[i] = models.ConstituentRecord{
			Ticker: h.Ticker,
			Name:   h.Name,
			Weight: h.Weight,
		}
	}
	return constituents
}

func instrumentKey(pos models.Position) string {
	if pos.Identity != "" {
		return pos.Identity
	}
	return pos.Ticker
}

package services

import (
	"context"
	"testing"

	"github.com/epeers/exposure/internal/models"
)

// fakeTier is a scripted resolution tier for cascade tests.
type fakeTier struct {
	name      string
	networked bool
	hits      map[string]models.ResolvedIdentity
	calls     int
}

func (t *fakeTier) Name() string    { return t.name }
func (t *fakeTier) Networked() bool { return t.networked }

func (t *fakeTier) Lookup(_ context.Context, ticker, _ string) *models.ResolvedIdentity {
	t.calls++
	if ri, ok := t.hits[ticker]; ok {
		return &ri
	}
	return nil
}

func (t *fakeTier) BatchLookup(_ context.Context, tickers []string) map[string]models.ResolvedIdentity {
	t.calls++
	result := make(map[string]models.ResolvedIdentity)
	for _, ticker := range tickers {
		if ri, ok := t.hits[ticker]; ok {
			result[ticker] = ri
		}
	}
	return result
}

func TestResolver_FirstTierShortCircuits(t *testing.T) {
	first := &fakeTier{
		name: models.SourceLocalCache,
		hits: map[string]models.ResolvedIdentity{
			"AAPL": {Identity: "US0378331005", Source: models.SourceLocalCache, Confidence: 0.9},
		},
	}
	second := &fakeTier{name: models.SourceCommunityStore, networked: true}
	r := &Resolver{tiers: []ResolutionTier{first, second}}

	ri, reason := r.Resolve(context.Background(), "AAPL", "", true)
	if ri == nil {
		t.Fatal("expected a resolution from the first tier")
	}
	if ri.Identity != "US0378331005" {
		t.Errorf("unexpected identity %s", ri.Identity)
	}
	if reason != "" {
		t.Errorf("hit should carry no failure reason, got %q", reason)
	}
	if second.calls != 0 {
		t.Errorf("later tiers should not be consulted after a hit, got %d calls", second.calls)
	}
}

func TestResolver_EmptyTicker(t *testing.T) {
	tier := &fakeTier{name: models.SourceLocalCache}
	r := &Resolver{tiers: []ResolutionTier{tier}}

	for _, ticker := range []string{"", "  ", "n/a", "N/A"} {
		ri, reason := r.Resolve(context.Background(), ticker, "", true)
		if ri != nil {
			t.Errorf("%q should never resolve", ticker)
		}
		if reason != models.ReasonNoTicker {
			t.Errorf("%q: expected reason %s, got %s", ticker, models.ReasonNoTicker, reason)
		}
	}
	if tier.calls != 0 {
		t.Errorf("unusable tickers should not reach any tier, got %d calls", tier.calls)
	}
}

func TestResolver_Tier2SkipsNetworkedTiers(t *testing.T) {
	local := &fakeTier{name: models.SourceLocalCache}
	networked := &fakeTier{
		name:      models.SourceCommunityStore,
		networked: true,
		hits: map[string]models.ResolvedIdentity{
			"GHOST": {Identity: "XX", Source: models.SourceCommunityStore},
		},
	}
	r := &Resolver{tiers: []ResolutionTier{local, networked}}

	ri, reason := r.Resolve(context.Background(), "GHOST", "", false)
	if ri != nil {
		t.Error("tier-2 holding must not reach networked tiers even when they would hit")
	}
	if reason != models.ReasonTier2Skipped {
		t.Errorf("expected reason %s, got %s", models.ReasonTier2Skipped, reason)
	}
	if networked.calls != 0 {
		t.Errorf("networked tier consulted %d times for a tier-2 holding", networked.calls)
	}
	if local.calls != 1 {
		t.Errorf("local tier should still be consulted, got %d calls", local.calls)
	}
}

func TestResolver_AllTiersMiss(t *testing.T) {
	r := &Resolver{tiers: []ResolutionTier{
		&fakeTier{name: models.SourceLocalCache},
		&fakeTier{name: models.SourceCommunityStore, networked: true},
		&fakeTier{name: models.SourceExternalAPI, networked: true},
	}}

	ri, reason := r.Resolve(context.Background(), "NOWHERE", "", true)
	if ri != nil {
		t.Error("expected a total miss")
	}
	if reason != models.ReasonAPIAllFailed {
		t.Errorf("expected reason %s, got %s", models.ReasonAPIAllFailed, reason)
	}
}

func TestResolver_TrimsTicker(t *testing.T) {
	tier := &fakeTier{
		name: models.SourceLocalCache,
		hits: map[string]models.ResolvedIdentity{
			"AAPL": {Identity: "US0378331005"},
		},
	}
	r := &Resolver{tiers: []ResolutionTier{tier}}

	ri, _ := r.Resolve(context.Background(), "  AAPL ", "", true)
	if ri == nil {
		t.Fatal("whitespace-padded ticker should still resolve")
	}
}

func TestResolver_BatchCacheLookupUsesFirstTierOnly(t *testing.T) {
	local := &fakeTier{
		name: models.SourceLocalCache,
		hits: map[string]models.ResolvedIdentity{
			"AAPL": {Identity: "US0378331005"},
		},
	}
	networked := &fakeTier{
		name:      models.SourceCommunityStore,
		networked: true,
		hits: map[string]models.ResolvedIdentity{
			"MSFT": {Identity: "US5949181045"},
		},
	}
	r := &Resolver{tiers: []ResolutionTier{local, networked}}

	result := r.BatchCacheLookup(context.Background(), []string{"AAPL", "MSFT"})
	if len(result) != 1 {
		t.Fatalf("expected only the local-cache hit, got %d", len(result))
	}
	if _, ok := result["AAPL"]; !ok {
		t.Error("expected AAPL in batch result")
	}
	if networked.calls != 0 {
		t.Errorf("batch prefetch must never go to the network, got %d calls", networked.calls)
	}
}

func TestSymbolVariants(t *testing.T) {
	variants := symbolVariants("BRK.B")
	want := map[string]bool{"BRK.B": false, "BRK-B": false, "BRKB": false}
	for _, v := range variants {
		if _, ok := want[v]; !ok {
			t.Errorf("unexpected variant %q", v)
			continue
		}
		want[v] = true
	}
	for v, seen := range want {
		if !seen {
			t.Errorf("missing variant %q", v)
		}
	}

	plain := symbolVariants("AAPL")
	if len(plain) != 1 || plain[0] != "AAPL" {
		t.Errorf("plain ticker should have no variants, got %v", plain)
	}
}

package models

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// ResolutionStatus records the outcome of identity resolution for one holding.
type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionSkipped    ResolutionStatus = "skipped" // below the significance threshold, network tiers not consulted
)

// Resolution source names, recorded as provenance on each resolved holding.
const (
	SourceLocalCache     = "local_cache"
	SourceCommunityStore = "community_store"
	SourceExternalAPI    = "external_api"
	SourceProvider       = "provider"
)

// Failure reasons for unresolved holdings, surfaced in the unresolved-items report.
const (
	ReasonNoTicker     = "no_ticker"
	ReasonAPIAllFailed = "api_all_failed"
	ReasonTier2Skipped = "tier2_cache_miss"
)

// ResolvedIdentity is the result of a successful lookup in any resolution tier.
type ResolvedIdentity struct {
	Identity   string  `json:"identity"`
	Name       string  `json:"name,omitempty"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// UnresolvedPlaceholder derives a stable synthetic identity for a holding that
// could not be resolved, so repeated occurrences of the same unresolved line
// merge to the same exposure row while staying traceable to their origin.
func UnresolvedPlaceholder(ticker, parent string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(ticker))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(parent))))
	return fmt.Sprintf("UNRESOLVED:%08x", h.Sum32())
}

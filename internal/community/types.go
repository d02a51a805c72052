package community

// Wire types for the community store API. The store keeps resolutions,
// decompositions and metadata contributed by every user of the system;
// conflict reconciliation between contributions is the store's own policy.

// IdentityResponse is the store's answer to an identity lookup.
type IdentityResponse struct {
	Identity   string  `json:"identity"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // the store's own reported confidence
}

// BatchIdentityRequest asks for several tickers at once.
type BatchIdentityRequest struct {
	Tickers []string `json:"tickers"`
}

// BatchIdentityResponse maps ticker → resolution for every known ticker.
type BatchIdentityResponse struct {
	Resolutions map[string]IdentityResponse `json:"resolutions"`
}

// DecompositionResponse is a previously-contributed instrument breakdown.
type DecompositionResponse struct {
	Symbol   string       `json:"symbol"`
	Holdings []RawHolding `json:"holdings"`
}

// RawHolding is one constituent line as stored, weight in whatever scale the
// original contributor's source used.
type RawHolding struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// BatchMetadataRequest asks for metadata on several identities at once.
type BatchMetadataRequest struct {
	Identities []string `json:"identities"`
}

// MetadataResponse is the descriptive metadata stored for one identity.
type MetadataResponse struct {
	Sector     string  `json:"sector"`
	Geography  string  `json:"geography"`
	AssetClass string  `json:"asset_class"`
	Confidence float64 `json:"confidence"`
}

// BatchMetadataResponse maps identity → metadata for every known identity.
type BatchMetadataResponse struct {
	Metadata map[string]MetadataResponse `json:"metadata"`
}

// Contribution is a best-effort write back to the store. Kind selects the
// payload: "identity", "decomposition" or "metadata".
type Contribution struct {
	Kind       string                 `json:"kind"`
	Ticker     string                 `json:"ticker,omitempty"`
	Identity   string                 `json:"identity,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Symbol     string                 `json:"symbol,omitempty"`
	Holdings   []RawHolding           `json:"holdings,omitempty"`
	Metadata   *MetadataResponse      `json:"metadata,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

package models

// ExposureRecord is the final output unit: one deduplicated row of the
// exposure table, keyed by canonical identity (or an UNRESOLVED: placeholder).
type ExposureRecord struct {
	Identity            string  `json:"identity"`
	Name                string  `json:"name"`
	Sector              string  `json:"sector"`
	Geography           string  `json:"geography"`
	AssetClass          string  `json:"asset_class"`
	TotalExposure       float64 `json:"total_exposure"`
	DirectExposure      float64 `json:"direct_exposure"`
	IndirectExposure    float64 `json:"indirect_exposure"`
	PortfolioPercentage float64 `json:"portfolio_percentage"`
	SourceCount         int     `json:"source_count"` // distinct positions or decompositions that contributed
	Confidence          float64 `json:"confidence"`   // resolution confidence, used as descriptive tie-break
}

// HoldingBreakdownRow is one resolved constituent together with its parent
// instrument, for the holdings-breakdown export.
type HoldingBreakdownRow struct {
	ParentIdentity string  `json:"parent_identity"`
	ParentSymbol   string  `json:"parent_symbol"`
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Identity       string  `json:"identity,omitempty"`
	Weight         float64 `json:"weight"`
	Exposure       float64 `json:"exposure"`
	Sector         string  `json:"sector"`
	Geography      string  `json:"geography"`
	Confidence     float64 `json:"confidence"`
}

// UnresolvedItem is one holding that no resolution tier could identify,
// surfaced for the UI and community-contribution prompts.
type UnresolvedItem struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	ParentSymbol string  `json:"parent_symbol,omitempty"`
	Reason       string  `json:"reason"`
}

package models

import "time"

// ConstituentRecord is one line inside a decomposed pooled instrument.
// Weight is always in percentage points (0–150, leveraged products allowed),
// never a fraction; the decomposer normalizes whichever scale the source used.
type ConstituentRecord struct {
	Ticker     string           `json:"ticker"`
	Name       string           `json:"name"`
	Weight     float64          `json:"weight"`
	Identity   string           `json:"identity,omitempty"`
	Status     ResolutionStatus `json:"status"`
	Source     string           `json:"source,omitempty"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason,omitempty"` // failure reason when unresolved
}

// Decomposition is one pooled instrument's full breakdown.
type Decomposition struct {
	Identity     string              `json:"identity"`
	Symbol       string              `json:"symbol"`
	TotalValue   float64             `json:"total_value"`
	Constituents []ConstituentRecord `json:"constituents"`
	Source       string              `json:"source,omitempty"`
	PulledAt     time.Time           `json:"pulled_at,omitzero"`
}

// WeightSum returns the sum of constituent weights. Should be close to 100;
// deviation is a quality signal, not an error.
func (d Decomposition) WeightSum() float64 {
	var sum float64
	for _, c := range d.Constituents {
		sum += c.Weight
	}
	return sum
}

// HoldingsCount returns the number of constituents.
func (d Decomposition) HoldingsCount() int { return len(d.Constituents) }

// ResolvedCount returns how many constituents carry a resolved identity.
func (d Decomposition) ResolvedCount() int {
	n := 0
	for _, c := range d.Constituents {
		if c.Status == ResolutionResolved {
			n++
		}
	}
	return n
}

// UnresolvedCount returns how many constituents failed or skipped resolution.
func (d Decomposition) UnresolvedCount() int {
	return len(d.Constituents) - d.ResolvedCount()
}

// EnrichedConstituent is a ConstituentRecord with descriptive metadata applied.
// Fields default to "Unknown" rather than absent so aggregation never handles nulls.
type EnrichedConstituent struct {
	ConstituentRecord
	Sector     string `json:"sector"`
	Geography  string `json:"geography"`
	AssetClass string `json:"asset_class"`
}

// Metadata is the sector/geography/asset-class triple attached to an identity
// during enrichment.
type Metadata struct {
	Sector     string  `json:"sector"`
	Geography  string  `json:"geography"`
	AssetClass string  `json:"asset_class"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// WithDefaults fills empty metadata fields with "Unknown".
func (m Metadata) WithDefaults() Metadata {
	if m.Sector == "" {
		m.Sector = "Unknown"
	}
	if m.Geography == "" {
		m.Geography = "Unknown"
	}
	if m.AssetClass == "" {
		m.AssetClass = "Unknown"
	}
	return m
}

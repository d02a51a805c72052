package services

import (
	"time"

	"github.com/epeers/exposure/internal/models"
)

// exposureBuilder accumulates one exposure row while rows are merged.
// Descriptive fields follow the highest-confidence contributor; ties keep
// the earliest encounter. Monetary values are always summed.
type exposureBuilder struct {
	record models.ExposureRecord
}

// TotalPortfolioValue sums every position's value up front, independent of
// resolution success, so percentages stay stable even when constituents
// cannot be resolved.
func TotalPortfolioValue(positions []models.Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.Value()
	}
	return total
}

// Aggregate merges direct positions and decomposed constituents into one
// deduplicated exposure table keyed by canonical identity. Pooled positions
// whose decomposition came back empty contribute a single direct row so
// their value is never lost. directConfidence carries the resolver's
// confidence for identities filled in at run time; identities already present
// in the position store stay at 1.0.
func Aggregate(positions []models.Position, decomps []models.Decomposition, metadata map[string]models.Metadata, directConfidence map[string]float64) []models.ExposureRecord {
	defer TrackTime("Aggregate", time.Now())

	decompByKey := make(map[string]models.Decomposition, len(decomps))
	for _, d := range decomps {
		decompByKey[decompositionKey(d)] = d
	}

	builders := make(map[string]*exposureBuilder)
	var order []string

	addRow := func(identity, name string, direct, indirect, confidence float64, m models.Metadata) {
		m = m.WithDefaults()
		b, exists := builders[identity]
		if !exists {
			b = &exposureBuilder{record: models.ExposureRecord{
				Identity:   identity,
				Name:       name,
				Sector:     m.Sector,
				Geography:  m.Geography,
				AssetClass: m.AssetClass,
				Confidence: confidence,
			}}
			builders[identity] = b
			order = append(order, identity)
		} else if confidence > b.record.Confidence {
			// Higher-confidence contributor wins the descriptive fields.
			if name != "" {
				b.record.Name = name
			}
			if m.Sector != "Unknown" {
				b.record.Sector = m.Sector
			}
			if m.Geography != "Unknown" {
				b.record.Geography = m.Geography
			}
			if m.AssetClass != "Unknown" {
				b.record.AssetClass = m.AssetClass
			}
			b.record.Confidence = confidence
		}
		b.record.DirectExposure += direct
		b.record.IndirectExposure += indirect
		b.record.TotalExposure += direct + indirect
		b.record.SourceCount++
	}

	for _, p := range positions {
		key := instrumentKey(p)
		d, decomposed := decompByKey[key]

		if p.Pooled() && decomposed && len(d.Constituents) > 0 {
			for _, c := range d.Constituents {
				identity := c.Identity
				if identity == "" {
					identity = models.UnresolvedPlaceholder(c.Ticker, d.Symbol)
				}
				name := c.Name
				if name == "" {
					name = c.Ticker
				}
				// Weights apply to this position's own value. Two lots of the
				// same instrument share one breakdown but each prices its own
				// stake, so conservation holds across duplicate positions.
				exposure := p.Value() * c.Weight / 100
				addRow(identity, name, 0, exposure, c.Confidence, metadata[c.Identity])
			}
			continue
		}

		// Direct position, or a pooled instrument that couldn't be expanded.
		identity := p.Identity
		confidence := 1.0
		if identity == "" {
			identity = models.UnresolvedPlaceholder(p.Ticker, "")
			confidence = 0
		} else if cf, ok := directConfidence[identity]; ok {
			confidence = cf
		}
		addRow(identity, p.Name, p.Value(), 0, confidence, metadata[p.Identity])
	}

	total := TotalPortfolioValue(positions)
	records := make([]models.ExposureRecord, 0, len(order))
	for _, identity := range order {
		rec := builders[identity].record
		if total > 0 {
			rec.PortfolioPercentage = rec.TotalExposure / total * 100
		}
		records = append(records, rec)
	}
	return records
}

// BuildHoldingsBreakdown lists every constituent with its parent instrument
// and monetary exposure, for the holdings-breakdown export.
func BuildHoldingsBreakdown(decomps []models.Decomposition, metadata map[string]models.Metadata) []models.HoldingBreakdownRow {
	var rows []models.HoldingBreakdownRow
	for _, d := range decomps {
		for _, c := range d.Constituents {
			m := metadata[c.Identity].WithDefaults()
			rows = append(rows, models.HoldingBreakdownRow{
				ParentIdentity: d.Identity,
				ParentSymbol:   d.Symbol,
				Ticker:         c.Ticker,
				Name:           c.Name,
				Identity:       c.Identity,
				Weight:         c.Weight,
				Exposure:       d.TotalValue * c.Weight / 100,
				Sector:         m.Sector,
				Geography:      m.Geography,
				Confidence:     c.Confidence,
			})
		}
	}
	return rows
}

// CollectUnresolved lists every holding no tier could identify, for UI
// surfacing and community-contribution prompts.
func CollectUnresolved(positions []models.Position, decomps []models.Decomposition) []models.UnresolvedItem {
	var items []models.UnresolvedItem

	for _, p := range positions {
		if !p.Pooled() && p.Identity == "" {
			reason := models.ReasonAPIAllFailed
			if p.Ticker == "" {
				reason = models.ReasonNoTicker
			}
			items = append(items, models.UnresolvedItem{
				Ticker: p.Ticker,
				Name:   p.Name,
				Reason: reason,
			})
		}
	}

	for _, d := range decomps {
		for _, c := range d.Constituents {
			if c.Status == models.ResolutionResolved {
				continue
			}
			reason := c.Reason
			if reason == "" {
				reason = models.ReasonAPIAllFailed
			}
			items = append(items, models.UnresolvedItem{
				Ticker:       c.Ticker,
				Name:         c.Name,
				Weight:       c.Weight,
				ParentSymbol: d.Symbol,
				Reason:       reason,
			})
		}
	}
	return items
}

func decompositionKey(d models.Decomposition) string {
	if d.Identity != "" {
		return d.Identity
	}
	return d.Symbol
}

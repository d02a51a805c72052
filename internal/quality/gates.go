package quality

import (
	"fmt"
	"math"

	"github.com/epeers/exposure/internal/models"
)

// GateStatus is the validation state of a phase boundary.
type GateStatus string

const (
	GateNotRun GateStatus = "not_run"
	GatePassed GateStatus = "passed"
	GateFailed GateStatus = "failed" // at least one critical issue; the run still proceeds
)

// GateResult is the outcome of validating one phase. A failed gate never
// halts the pipeline; it only degrades the accumulated score and marks the
// run as not auto-trustworthy.
type GateResult struct {
	Phase  string     `json:"phase"`
	Status GateStatus `json:"status"`
	Report *Report    `json:"-"`
}

func gateFrom(phase string, report *Report) GateResult {
	status := GatePassed
	if report.HasCritical() {
		status = GateFailed
	}
	return GateResult{Phase: phase, Status: status, Report: report}
}

// CheckPositions validates the load phase output.
func CheckPositions(positions []models.Position) GateResult {
	const phase = "load"
	r := NewReport()

	if len(positions) == 0 {
		r.Add(phase, NewIssue(SeverityHigh, CategorySchema, CodePositionsEmpty,
			"no positions loaded for portfolio").
			WithRemediation("verify the portfolio has synced holdings"))
		return gateFrom(phase, r)
	}

	currencies := make(map[string]bool)
	for _, p := range positions {
		if p.Value() == 0 {
			r.Add(phase, NewIssue(SeverityMedium, CategoryValue, CodePositionZeroValue,
				fmt.Sprintf("position %s has no price or cost basis, valued at zero", p.Ticker)).
				WithItem(p.Ticker).
				WithRemediation("refresh pricing data for this position"))
		}
		if p.Currency != "" {
			currencies[p.Currency] = true
		}
	}

	// No FX conversion happens downstream, so mixed currencies skew percentages.
	if len(currencies) > 1 {
		r.Add(phase, NewIssue(SeverityMedium, CategoryCurrency, CodeCurrencyMix,
			fmt.Sprintf("positions span %d currencies; values are aggregated without conversion", len(currencies))))
	}

	return gateFrom(phase, r)
}

// CheckDecompositions validates the decompose phase output. Weight sums are
// judged post-normalization: a sum still in [0.5,1.5] here means a fraction-
// scaled source slipped through unconverted, which is critical.
func CheckDecompositions(decomps []models.Decomposition) GateResult {
	const phase = "decompose"
	r := NewReport()

	var holdings, resolved int
	for _, d := range decomps {
		if len(d.Constituents) == 0 {
			r.Add(phase, NewIssue(SeverityHigh, CategorySchema, CodeDecompositionEmpty,
				fmt.Sprintf("instrument %s produced no constituents", d.Symbol)).
				WithItem(d.Symbol).
				WithRemediation("check provider adapter coverage for this instrument"))
			continue
		}

		sum := d.WeightSum()
		switch {
		case sum >= 0.5 && sum <= 1.5:
			r.Add(phase, NewIssue(SeverityCritical, CategoryWeight, CodeWeightSumFraction,
				fmt.Sprintf("instrument %s weights sum to %.4f, likely an unconverted fraction scale", d.Symbol, sum)).
				WithItem(d.Symbol))
		case sum < 50:
			r.Add(phase, NewIssue(SeverityHigh, CategoryWeight, CodeWeightSumVeryLow,
				fmt.Sprintf("instrument %s weights sum to %.2f%%, well below 100%%", d.Symbol, sum)).
				WithItem(d.Symbol))
		case sum > 150:
			r.Add(phase, NewIssue(SeverityHigh, CategoryWeight, CodeWeightSumSuspect,
				fmt.Sprintf("instrument %s weights sum to %.2f%%, above the leveraged-product ceiling", d.Symbol, sum)).
				WithItem(d.Symbol))
		}

		holdings += d.HoldingsCount()
		resolved += d.ResolvedCount()
	}

	if holdings > 0 {
		rate := float64(resolved) / float64(holdings)
		if rate < 0.5 {
			r.Add(phase, NewIssue(SeverityHigh, CategoryResolution, CodeResolutionRateLow,
				fmt.Sprintf("only %.0f%% of constituents resolved to a canonical identity", rate*100)).
				WithRemediation("review the unresolved-items list and contribute mappings"))
		} else if rate < 0.8 {
			r.Add(phase, NewIssue(SeverityMedium, CategoryResolution, CodeResolutionRateLow,
				fmt.Sprintf("%.0f%% of constituents resolved to a canonical identity", rate*100)))
		}
	}

	return gateFrom(phase, r)
}

// CheckEnrichment validates metadata coverage after the enrich phase.
func CheckEnrichment(holdings []models.EnrichedConstituent) GateResult {
	const phase = "enrich"
	r := NewReport()

	if len(holdings) == 0 {
		return gateFrom(phase, r)
	}

	var sectorKnown, geoKnown int
	for _, h := range holdings {
		if h.Sector != "Unknown" && h.Sector != "" {
			sectorKnown++
		}
		if h.Geography != "Unknown" && h.Geography != "" {
			geoKnown++
		}
	}

	total := float64(len(holdings))
	if float64(sectorKnown)/total < 0.5 {
		r.Add(phase, NewIssue(SeverityMedium, CategoryEnrichment, CodeCoverageLow,
			fmt.Sprintf("sector known for only %d of %d holdings", sectorKnown, len(holdings))))
	}
	if float64(geoKnown)/total < 0.5 {
		r.Add(phase, NewIssue(SeverityMedium, CategoryEnrichment, CodeCoverageLow,
			fmt.Sprintf("geography known for only %d of %d holdings", geoKnown, len(holdings))))
	}

	return gateFrom(phase, r)
}

// CheckExposures validates the aggregated output against the up-front
// portfolio total.
func CheckExposures(records []models.ExposureRecord, portfolioTotal float64) GateResult {
	const phase = "aggregate"
	r := NewReport()

	if portfolioTotal <= 0 {
		r.Add(phase, NewIssue(SeverityCritical, CategoryValue, CodeTotalValueNotPositive,
			fmt.Sprintf("total portfolio value is %.2f; percentages are meaningless", portfolioTotal)).
			WithRemediation("check position quantities and prices"))
		return gateFrom(phase, r)
	}

	var exposureSum, pctSum float64
	for _, rec := range records {
		exposureSum += rec.TotalExposure
		pctSum += rec.PortfolioPercentage
	}

	// Conservation: aggregated exposure should match the input total.
	deviation := math.Abs(exposureSum-portfolioTotal) / portfolioTotal
	if deviation > 0.005 {
		sev := SeverityHigh
		if deviation > 0.10 {
			sev = SeverityCritical
		}
		r.Add(phase, NewIssue(sev, CategoryValue, CodeTotalValueMismatch,
			fmt.Sprintf("aggregated exposure %.2f deviates %.1f%% from portfolio total %.2f",
				exposureSum, deviation*100, portfolioTotal)))
	}

	if len(records) > 0 && (pctSum < 95 || pctSum > 105) {
		sev := SeverityMedium
		if pctSum < 90 || pctSum > 110 {
			sev = SeverityHigh
		}
		r.Add(phase, NewIssue(sev, CategoryValue, CodePercentageSumDrift,
			fmt.Sprintf("portfolio percentages sum to %.2f%%", pctSum)))
	}

	return gateFrom(phase, r)
}

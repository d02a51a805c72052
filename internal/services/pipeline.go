package services

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/quality"
	log "github.com/sirupsen/logrus"
)

// The pipeline depends on its collaborators through narrow interfaces so the
// orchestration (gate sequencing, cancellation, partial reports) is testable
// without a database or network.

type positionSource interface {
	LoadPositions(ctx context.Context, portfolioID int64) ([]models.Position, error)
}

type decomposer interface {
	DecomposeAll(ctx context.Context, positions []models.Position, report *quality.Report) []models.Decomposition
}

type enricher interface {
	Enrich(ctx context.Context, positions []models.Position, decomps []models.Decomposition) (map[string]models.Metadata, []models.EnrichedConstituent)
}

type directResolver interface {
	Resolve(ctx context.Context, ticker, name string, fullCascade bool) (*models.ResolvedIdentity, string)
}

// PhaseTiming records how long one phase took and how its gate resolved.
type PhaseTiming struct {
	Phase      string             `json:"phase"`
	Millis     int64              `json:"millis"`
	GateStatus quality.GateStatus `json:"gate_status"`
}

// QualitySummary is the machine-readable health report for one run.
type QualitySummary struct {
	Score       float64                  `json:"score"`
	Trustworthy bool                     `json:"trustworthy"`
	BySeverity  map[quality.Severity]int `json:"by_severity"`
	ByCategory  map[quality.Category]int `json:"by_category"`
	Issues      []quality.Issue          `json:"issues"`
	Phases      []PhaseTiming            `json:"phases"`
}

// ExposureReport is the full output of one pipeline run.
type ExposureReport struct {
	PortfolioID int64                        `json:"portfolio_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	TotalValue  float64                      `json:"total_value"`
	Exposures   []models.ExposureRecord      `json:"exposures"`
	Holdings    []models.HoldingBreakdownRow `json:"holdings"`
	Unresolved  []models.UnresolvedItem      `json:"unresolved"`
	Quality     QualitySummary               `json:"quality"`
}

// PipelineService sequences Load → Decompose → Enrich → Aggregate → Report,
// evaluating a validation gate after each phase and accumulating the
// run-scoped quality report. Gates never halt the run; only structural
// failures (position store unreachable) are fatal. Cancellation is
// cooperative and checked at phase boundaries only.
type PipelineService struct {
	positionRepo positionSource
	decomposeSvc decomposer
	enrichSvc    enricher
	resolver     directResolver
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(
	positionRepo positionSource,
	decomposeSvc decomposer,
	enrichSvc enricher,
	resolver directResolver,
) *PipelineService {
	return &PipelineService{
		positionRepo: positionRepo,
		decomposeSvc: decomposeSvc,
		enrichSvc:    enrichSvc,
		resolver:     resolver,
	}
}

// Run generates the exposure report for a portfolio. The run always
// completes and always produces a report unless the position store itself
// cannot be read; data problems surface as quality issues, not errors.
func (s *PipelineService) Run(ctx context.Context, portfolioID int64) (*ExposureReport, error) {
	defer TrackTime("PipelineRun", time.Now())

	run := quality.NewReport()
	var timings []PhaseTiming

	gate := func(start time.Time, result quality.GateResult) {
		run.Merge(result.Report)
		timings = append(timings, PhaseTiming{
			Phase:      result.Phase,
			Millis:     time.Since(start).Milliseconds(),
			GateStatus: result.Status,
		})
		if result.Status == quality.GateFailed {
			log.Warnf("phase %s gate failed, continuing with degraded quality", result.Phase)
		}
	}

	report := &ExposureReport{PortfolioID: portfolioID, GeneratedAt: time.Now()}

	// Load.
	start := time.Now()
	positions, err := s.positionRepo.LoadPositions(ctx, portfolioID)
	if err != nil {
		// Structural failure: without positions there is nothing to report on.
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	positions, directConfidence := s.resolveDirectPositions(ctx, positions)
	gate(start, quality.CheckPositions(positions))

	if cancelled(ctx, run) {
		return s.finish(report, nil, nil, nil, run, timings), nil
	}

	// Decompose.
	start = time.Now()
	phaseReport := quality.NewReport()
	decomps := s.decomposeSvc.DecomposeAll(ctx, positions, phaseReport)
	run.Merge(phaseReport)
	gate(start, quality.CheckDecompositions(decomps))

	if cancelled(ctx, run) {
		return s.finish(report, positions, decomps, nil, run, timings), nil
	}

	// Enrich.
	start = time.Now()
	metadata, enriched := s.enrichSvc.Enrich(ctx, positions, decomps)
	gate(start, quality.CheckEnrichment(enriched))

	if cancelled(ctx, run) {
		return s.finish(report, positions, decomps, metadata, run, timings), nil
	}

	// Aggregate.
	start = time.Now()
	report.TotalValue = TotalPortfolioValue(positions)
	report.Exposures = Aggregate(positions, decomps, metadata, directConfidence)
	gate(start, quality.CheckExposures(report.Exposures, report.TotalValue))

	return s.finish(report, positions, decomps, metadata, run, timings), nil
}

// resolveDirectPositions fills missing canonical identities on non-pooled
// positions through the full cascade. The loaded positions stay untouched;
// the run works on an annotated copy. The returned map records the resolver's
// confidence per filled-in identity so aggregation does not report a runtime
// resolution as brokerage-grade.
func (s *PipelineService) resolveDirectPositions(ctx context.Context, positions []models.Position) ([]models.Position, map[string]float64) {
	out := make([]models.Position, len(positions))
	copy(out, positions)
	confidence := make(map[string]float64)
	for i := range out {
		if out[i].Pooled() || out[i].Identity != "" {
			continue
		}
		if ri, _ := s.resolver.Resolve(ctx, out[i].Ticker, out[i].Name, true); ri != nil {
			out[i].Identity = ri.Identity
			confidence[ri.Identity] = ri.Confidence
		}
	}
	return out, confidence
}

func (s *PipelineService) finish(
	report *ExposureReport,
	positions []models.Position,
	decomps []models.Decomposition,
	metadata map[string]models.Metadata,
	run *quality.Report,
	timings []PhaseTiming,
) *ExposureReport {
	report.Holdings = BuildHoldingsBreakdown(decomps, metadata)
	report.Unresolved = CollectUnresolved(positions, decomps)
	report.Quality = QualitySummary{
		Score:       run.Score(),
		Trustworthy: run.Trustworthy(),
		BySeverity:  run.CountBySeverity(),
		ByCategory:  run.CountByCategory(),
		Issues:      run.Issues(),
		Phases:      timings,
	}
	return report
}

// cancelled checks for cooperative cancellation at a phase boundary. A
// cancelled run still reports whatever accumulated so far.
func cancelled(ctx context.Context, run *quality.Report) bool {
	if ctx.Err() == nil {
		return false
	}
	run.Add("pipeline", quality.NewIssue(
		quality.SeverityHigh, quality.CategorySchema, quality.CodeRunCancelled,
		"run cancelled before completion; report is partial"))
	return true
}

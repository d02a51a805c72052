package services

import (
	"context"
	"errors"
	"testing"

	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/quality"
)

type fakePositionSource struct {
	positions []models.Position
	err       error
}

func (f *fakePositionSource) LoadPositions(context.Context, int64) ([]models.Position, error) {
	return f.positions, f.err
}

type fakeDecomposer struct {
	decomps []models.Decomposition
	issues  []quality.Issue
}

func (f *fakeDecomposer) DecomposeAll(_ context.Context, _ []models.Position, report *quality.Report) []models.Decomposition {
	for _, issue := range f.issues {
		report.Add("decompose", issue)
	}
	return f.decomps
}

type fakeEnricher struct {
	metadata map[string]models.Metadata
}

func (f *fakeEnricher) Enrich(context.Context, []models.Position, []models.Decomposition) (map[string]models.Metadata, []models.EnrichedConstituent) {
	return f.metadata, nil
}

type fakeDirectResolver struct {
	hits map[string]models.ResolvedIdentity
}

func (f *fakeDirectResolver) Resolve(_ context.Context, ticker, _ string, _ bool) (*models.ResolvedIdentity, string) {
	if ri, ok := f.hits[ticker]; ok {
		return &ri, ""
	}
	return nil, models.ReasonAPIAllFailed
}

func hasIssueCode(report *ExposureReport, code string) bool {
	for _, issue := range report.Quality.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func TestPipeline_DegradedRunStillReports(t *testing.T) {
	// Zero-value position, a pooled instrument nothing could expand and every
	// resolution service down: the run must still produce a full report with
	// the problems recorded as issues.
	positions := []models.Position{
		{Ticker: "GHOST", Quantity: 5, AssetClass: models.AssetClassStock, Currency: "USD"},
		{Ticker: "VTI", Identity: "F1", Quantity: 1, LastPrice: 1000,
			AssetClass: models.AssetClassETF, Currency: "USD"},
	}
	svc := NewPipelineService(
		&fakePositionSource{positions: positions},
		&fakeDecomposer{
			decomps: []models.Decomposition{{Identity: "F1", Symbol: "VTI", TotalValue: 1000}},
			issues: []quality.Issue{
				quality.NewIssue(quality.SeverityHigh, quality.CategoryResolution,
					quality.CodeDecompositionFailed, "decomposition of VTI failed: provider unreachable"),
			},
		},
		&fakeEnricher{},
		&fakeDirectResolver{},
	)

	report, err := svc.Run(context.Background(), 7)
	if err != nil {
		t.Fatalf("degraded run must not error: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}

	for _, code := range []string{
		quality.CodePositionZeroValue,
		quality.CodeDecompositionFailed,
		quality.CodeDecompositionEmpty,
	} {
		if !hasIssueCode(report, code) {
			t.Errorf("expected issue %s in the quality report", code)
		}
	}
	if report.Quality.Trustworthy {
		t.Error("a run this degraded must not be auto-trusted")
	}

	// The opaque fund falls back to a direct row; value is conserved.
	assertClose(t, "total value", report.TotalValue, 1000, 1e-6)
	var sum float64
	for _, rec := range report.Exposures {
		sum += rec.TotalExposure
	}
	assertClose(t, "exposure sum", sum, 1000, 1e-6)

	if len(report.Quality.Phases) != 4 {
		t.Errorf("expected 4 phase timings, got %d", len(report.Quality.Phases))
	}
}

func TestPipeline_CancelledRunIsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewPipelineService(
		&fakePositionSource{positions: []models.Position{
			{Ticker: "AAPL", Identity: "US0378331005", Quantity: 1, LastPrice: 100,
				AssetClass: models.AssetClassStock},
		}},
		&fakeDecomposer{},
		&fakeEnricher{},
		&fakeDirectResolver{},
	)

	report, err := svc.Run(ctx, 7)
	if err != nil {
		t.Fatalf("cancelled run must still return a report: %v", err)
	}
	if !hasIssueCode(report, quality.CodeRunCancelled) {
		t.Error("expected RUN_CANCELLED issue on the partial report")
	}
	if len(report.Exposures) != 0 {
		t.Errorf("cancellation before decompose should leave no exposures, got %d", len(report.Exposures))
	}
	if len(report.Quality.Phases) != 1 {
		t.Errorf("expected only the load phase to have run, got %d", len(report.Quality.Phases))
	}
}

func TestPipeline_LoadFailureIsFatal(t *testing.T) {
	svc := NewPipelineService(
		&fakePositionSource{err: errors.New("connection refused")},
		&fakeDecomposer{},
		&fakeEnricher{},
		&fakeDirectResolver{},
	)

	report, err := svc.Run(context.Background(), 7)
	if err == nil {
		t.Fatal("unreachable position store must be fatal")
	}
	if report != nil {
		t.Error("no report on a structural failure")
	}
}

func TestPipeline_DirectResolutionConfidenceCarried(t *testing.T) {
	svc := NewPipelineService(
		&fakePositionSource{positions: []models.Position{
			{Ticker: "ODD", Name: "Odd Security", Quantity: 1, LastPrice: 100,
				AssetClass: models.AssetClassStock},
		}},
		&fakeDecomposer{},
		&fakeEnricher{},
		&fakeDirectResolver{hits: map[string]models.ResolvedIdentity{
			"ODD": {Identity: "X1", Name: "Odd Security Inc",
				Source: models.SourceExternalAPI, Confidence: 0.85},
		}},
	)

	report, err := svc.Run(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Exposures) != 1 {
		t.Fatalf("expected 1 exposure record, got %d", len(report.Exposures))
	}
	rec := report.Exposures[0]
	if rec.Identity != "X1" {
		t.Errorf("expected the resolved identity, got %s", rec.Identity)
	}
	// External-tier resolution must not be reported as brokerage-grade.
	assertClose(t, "confidence", rec.Confidence, 0.85, 1e-9)
	if len(report.Unresolved) != 0 {
		t.Errorf("resolved position should not appear unresolved: %+v", report.Unresolved)
	}
}

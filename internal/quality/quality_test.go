package quality

import (
	"sync"
	"testing"
)

func TestReport_StartsPerfect(t *testing.T) {
	r := NewReport()
	if r.Score() != 1.0 {
		t.Errorf("expected fresh report score 1.0, got %f", r.Score())
	}
	if !r.Trustworthy() {
		t.Error("fresh report should be trustworthy")
	}
	if len(r.Issues()) != 0 {
		t.Errorf("fresh report should have no issues, got %d", len(r.Issues()))
	}
}

func TestReport_SeverityPenalties(t *testing.T) {
	cases := []struct {
		severity Severity
		want     float64
	}{
		{SeverityCritical, 0.75},
		{SeverityHigh, 0.90},
		{SeverityMedium, 0.97},
		{SeverityLow, 0.99},
	}

	for _, tc := range cases {
		r := NewReport()
		r.Add("test", NewIssue(tc.severity, CategorySchema, "TEST_CODE", "test"))
		assertClose(t, string(tc.severity), r.Score(), tc.want, 1e-9)
	}
}

func TestReport_ScoreNeverNegative(t *testing.T) {
	r := NewReport()
	for i := 0; i < 10; i++ {
		r.Add("test", NewIssue(SeverityCritical, CategoryValue, "TEST_CODE", "test"))
	}
	if r.Score() != 0 {
		t.Errorf("score should clamp at 0, got %f", r.Score())
	}
}

func TestReport_TrustworthyThreshold(t *testing.T) {
	r := NewReport()
	r.Add("test", NewIssue(SeverityMedium, CategoryWeight, "TEST_CODE", "test"))
	// 0.97 >= 0.95
	if !r.Trustworthy() {
		t.Errorf("score %f should be trustworthy", r.Score())
	}

	r.Add("test", NewIssue(SeverityMedium, CategoryWeight, "TEST_CODE", "test"))
	// 0.94 < 0.95
	if r.Trustworthy() {
		t.Errorf("score %f should not be trustworthy", r.Score())
	}
}

func TestReport_MergeNoDoublePenalty(t *testing.T) {
	// Merging a phase report into the run report must yield the same score
	// as adding the issues directly.
	phase := NewReport()
	phase.Add("decompose", NewIssue(SeverityHigh, CategoryResolution, "TEST_CODE", "a"))
	phase.Add("decompose", NewIssue(SeverityMedium, CategoryWeight, "TEST_CODE", "b"))

	run := NewReport()
	run.Add("load", NewIssue(SeverityLow, CategoryValue, "TEST_CODE", "c"))
	run.Merge(phase)

	direct := NewReport()
	direct.Add("load", NewIssue(SeverityLow, CategoryValue, "TEST_CODE", "c"))
	direct.Add("decompose", NewIssue(SeverityHigh, CategoryResolution, "TEST_CODE", "a"))
	direct.Add("decompose", NewIssue(SeverityMedium, CategoryWeight, "TEST_CODE", "b"))

	assertClose(t, "merged score", run.Score(), direct.Score(), 1e-9)
	if len(run.Issues()) != 3 {
		t.Errorf("expected 3 issues after merge, got %d", len(run.Issues()))
	}
}

func TestReport_MergeNil(t *testing.T) {
	r := NewReport()
	r.Merge(nil)
	if r.Score() != 1.0 {
		t.Errorf("merging nil should not change the score, got %f", r.Score())
	}
}

func TestReport_AddTagsPhase(t *testing.T) {
	r := NewReport()
	r.Add("enrich", NewIssue(SeverityLow, CategoryEnrichment, "TEST_CODE", "test"))

	issues := r.Issues()
	if issues[0].Phase != "enrich" {
		t.Errorf("expected phase tag %q, got %q", "enrich", issues[0].Phase)
	}
}

func TestReport_HasCritical(t *testing.T) {
	r := NewReport()
	r.Add("test", NewIssue(SeverityHigh, CategoryValue, "TEST_CODE", "test"))
	if r.HasCritical() {
		t.Error("high issue should not count as critical")
	}
	r.Add("test", NewIssue(SeverityCritical, CategoryValue, "TEST_CODE", "test"))
	if !r.HasCritical() {
		t.Error("expected HasCritical after adding a critical issue")
	}
}

func TestReport_Counts(t *testing.T) {
	r := NewReport()
	r.Add("test", NewIssue(SeverityHigh, CategoryWeight, "TEST_CODE", "a"))
	r.Add("test", NewIssue(SeverityHigh, CategoryResolution, "TEST_CODE", "b"))
	r.Add("test", NewIssue(SeverityLow, CategoryResolution, "TEST_CODE", "c"))

	bySev := r.CountBySeverity()
	if bySev[SeverityHigh] != 2 || bySev[SeverityLow] != 1 {
		t.Errorf("unexpected severity counts: %v", bySev)
	}
	byCat := r.CountByCategory()
	if byCat[CategoryResolution] != 2 || byCat[CategoryWeight] != 1 {
		t.Errorf("unexpected category counts: %v", byCat)
	}
}

func TestReport_ConcurrentAdd(t *testing.T) {
	r := NewReport()
	var wg sync.WaitGroup
	n := 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.Add("test", NewIssue(SeverityLow, CategoryValue, "TEST_CODE", "concurrent"))
		}()
	}
	wg.Wait()

	if len(r.Issues()) != n {
		t.Errorf("expected %d issues, got %d", n, len(r.Issues()))
	}
}

func TestIssue_WithHelpers(t *testing.T) {
	base := NewIssue(SeverityMedium, CategoryWeight, "TEST_CODE", "msg")
	tagged := base.WithItem("SPY").WithRemediation("do the thing")

	if tagged.ItemID != "SPY" || tagged.Remediation != "do the thing" {
		t.Errorf("unexpected tagged issue: %+v", tagged)
	}
	// Original must be unchanged.
	if base.ItemID != "" || base.Remediation != "" {
		t.Errorf("WithItem/WithRemediation should not mutate the original: %+v", base)
	}
}

func assertClose(t *testing.T, name string, got, want, epsilon float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > epsilon {
		t.Errorf("%s: got %f, want %f", name, got, want)
	}
}

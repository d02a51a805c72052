package quality

import "sync"

// Severity penalties applied to the score. The score is always recomputed
// from the full issue set, so merging reports never double-penalizes.
var penalties = map[Severity]float64{
	SeverityCritical: 0.25,
	SeverityHigh:     0.10,
	SeverityMedium:   0.03,
	SeverityLow:      0.01,
}

// TrustworthyThreshold is the minimum score for a run to be auto-trusted.
const TrustworthyThreshold = 0.95

// Report accumulates data-quality issues and derives a trust score in [0,1].
// One run-scoped instance is owned by the pipeline; phases build their own
// and hand them over via Merge.
type Report struct {
	mu     sync.Mutex
	issues []Issue
	score  float64
}

// NewReport returns an empty report with a perfect score.
func NewReport() *Report {
	return &Report{score: 1.0}
}

// Add appends an issue, tagging it with the phase name, and recomputes the score.
func (r *Report) Add(phase string, issue Issue) {
	issue.Phase = phase
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, issue)
	r.score = scoreFor(r.issues)
}

// Merge unions another report's issues into this one and recomputes the
// score from the combined issue set.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	incoming := other.Issues()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, incoming...)
	r.score = scoreFor(r.issues)
}

// Score returns the current trust score in [0,1].
func (r *Report) Score() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.score
}

// Trustworthy reports whether the score meets the auto-trust threshold.
func (r *Report) Trustworthy() bool {
	return r.Score() >= TrustworthyThreshold
}

// Issues returns a copy of the accumulated issues.
func (r *Report) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// HasCritical reports whether any accumulated issue is critical.
func (r *Report) HasCritical() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.issues {
		if i.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CountBySeverity returns issue counts keyed by severity.
func (r *Report) CountBySeverity() map[Severity]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Severity]int)
	for _, i := range r.issues {
		counts[i.Severity]++
	}
	return counts
}

// CountByCategory returns issue counts keyed by category.
func (r *Report) CountByCategory() map[Category]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Category]int)
	for _, i := range r.issues {
		counts[i.Category]++
	}
	return counts
}

func scoreFor(issues []Issue) float64 {
	score := 1.0
	for _, i := range issues {
		score -= penalties[i.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}

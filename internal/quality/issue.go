package quality

import "time"

// Severity ranks an issue's impact on output trust.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Category groups issues by subsystem for the quality report.
type Category string

const (
	CategorySchema     Category = "schema"
	CategoryWeight     Category = "weight"
	CategoryResolution Category = "resolution"
	CategoryEnrichment Category = "enrichment"
	CategoryCurrency   Category = "currency"
	CategoryValue      Category = "value"
)

// Machine codes. Codes are stable identifiers consumed by the UI layer;
// messages are free-form and may change.
const (
	CodePositionsEmpty        = "POSITIONS_EMPTY"
	CodePositionZeroValue     = "POSITION_ZERO_VALUE"
	CodeCurrencyMix           = "CURRENCY_MIX"
	CodeDecompositionFailed   = "DECOMPOSITION_FAILED"
	CodeDecompositionEmpty    = "DECOMPOSITION_EMPTY"
	CodeWeightSumVeryLow      = "WEIGHT_SUM_VERY_LOW"
	CodeWeightSumFraction     = "WEIGHT_SUM_FRACTION_SCALE"
	CodeWeightSumSuspect      = "WEIGHT_SUM_SUSPECT"
	CodeResolutionRateLow     = "RESOLUTION_RATE_LOW"
	CodeUnresolvedHolding     = "UNRESOLVED_HOLDING"
	CodeCoverageLow           = "ENRICHMENT_COVERAGE_LOW"
	CodeTotalValueMismatch    = "TOTAL_VALUE_MISMATCH"
	CodeTotalValueNotPositive = "TOTAL_VALUE_NOT_POSITIVE"
	CodePercentageSumDrift    = "PERCENTAGE_SUM_DRIFT"
	CodeContributionFailed    = "CONTRIBUTION_FAILED"
	CodeRunCancelled          = "RUN_CANCELLED"
)

// Issue is an immutable record of one data-quality problem. Issues are never
// raised as errors; they are appended to a Report and degrade its score.
type Issue struct {
	Severity    Severity  `json:"severity"`
	Category    Category  `json:"category"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Remediation string    `json:"remediation,omitempty"`
	ItemID      string    `json:"item_id,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewIssue stamps an issue with the current time.
func NewIssue(sev Severity, cat Category, code, message string) Issue {
	return Issue{
		Severity:  sev,
		Category:  cat,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithItem returns a copy of the issue tagged with the offending item identifier.
func (i Issue) WithItem(itemID string) Issue {
	i.ItemID = itemID
	return i
}

// WithRemediation returns a copy of the issue carrying a remediation hint.
func (i Issue) WithRemediation(hint string) Issue {
	i.Remediation = hint
	return i
}

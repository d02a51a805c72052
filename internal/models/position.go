package models

// AssetClass tags a position with its broad instrument category as reported
// by the brokerage.
type AssetClass string

const (
	AssetClassStock      AssetClass = "Stock"
	AssetClassETF        AssetClass = "ETF"
	AssetClassMutualFund AssetClass = "Mutual Fund"
	AssetClassBond       AssetClass = "Bond"
	AssetClassCash       AssetClass = "Cash"
	AssetClassUnknown    AssetClass = "Unknown"
)

// Position is a single brokerage holding as loaded from the position store.
// Immutable within a run.
type Position struct {
	PortfolioID int64      `json:"portfolio_id"`
	Identity    string     `json:"identity,omitempty"` // canonical identity when known, "" otherwise
	Ticker      string     `json:"ticker"`
	Name        string     `json:"name"`
	Quantity    float64    `json:"quantity"`
	LastPrice   float64    `json:"last_price"`
	CostBasis   float64    `json:"cost_basis"` // per-share cost, used as price fallback
	AssetClass  AssetClass `json:"asset_class"`
	Currency    string     `json:"currency"`
}

// Value returns the monetary value of the position: quantity × last price,
// falling back to quantity × cost basis, then to zero.
func (p Position) Value() float64 {
	if p.LastPrice > 0 {
		return p.Quantity * p.LastPrice
	}
	if p.CostBasis > 0 {
		return p.Quantity * p.CostBasis
	}
	return 0
}

// Pooled reports whether the position represents a pooled instrument whose
// value is an interest in many underlying securities.
func (p Position) Pooled() bool {
	return p.AssetClass == AssetClassETF || p.AssetClass == AssetClassMutualFund
}

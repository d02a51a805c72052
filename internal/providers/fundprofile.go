package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FundProfileAdapter fetches fund breakdowns from a profile-style HTTP API
// (one request per instrument, JSON holdings list with string-typed weights).
// Requests go through the credential proxy when baseURL points at it, so the
// provider key never reaches the client device.
type FundProfileAdapter struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewFundProfileAdapter creates an adapter for one provider family.
func NewFundProfileAdapter(name, apiKey, baseURL string) *FundProfileAdapter {
	return &FundProfileAdapter{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the provider family in provenance records.
func (a *FundProfileAdapter) Name() string { return a.name }

type fundProfileResponse struct {
	Symbol   string `json:"symbol"`
	Holdings []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"description"`
		Weight string `json:"weight"`
	} `json:"holdings"`
}

// FetchDecomposition fetches the current breakdown for an instrument.
func (a *FundProfileAdapter) FetchDecomposition(ctx context.Context, instrumentID, symbol string) (*RawDecomposition, error) {
	params := url.Values{}
	params.Set("function", "FUND_PROFILE")
	params.Set("symbol", symbol)
	params.Set("instrument", instrumentID)
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", a.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var profile fundProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fund profile: %w", err)
	}

	raw := &RawDecomposition{Symbol: profile.Symbol}
	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	for _, h := range profile.Holdings {
		weight, _ := strconv.ParseFloat(h.Weight, 64)
		raw.Holdings = append(raw.Holdings, RawHolding{
			Ticker: h.Symbol,
			Name:   h.Name,
			Weight: weight,
		})
	}

	return raw, nil
}

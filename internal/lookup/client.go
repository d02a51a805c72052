package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ExternalConfidence is the fixed confidence assigned to identities coming
// from external lookup services. Direct provider data is 1.0 and community
// data carries the store's own value; external APIs sit in between.
const ExternalConfidence = 0.85

// Client is an HTTP client for one external securities-reference service.
// It is the last resort of the resolution cascade: rate-limited, allowed to
// fail per-item without failing the batch.
type Client struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new lookup client.
func NewClient(name, apiKey, baseURL string) *Client {
	return &Client{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a lookup client pointed at a custom base URL (for testing).
func NewClientWithBaseURL(name, apiKey, baseURL string) *Client {
	return NewClient(name, apiKey, baseURL)
}

// Name identifies the service in provenance records and logs.
func (c *Client) Name() string { return c.name }

// ParsedIdentity is the best identity match returned by the service.
type ParsedIdentity struct {
	Identity string
	Name     string
}

// ParsedMetadata is the descriptive metadata returned by the service.
type ParsedMetadata struct {
	Sector     string
	Geography  string
	AssetClass string
}

type identitySearchResponse struct {
	Matches []struct {
		Identity string `json:"identity"`
		Name     string `json:"name"`
		Score    string `json:"score"`
	} `json:"matches"`
}

type overviewResponse struct {
	Sector    string `json:"sector"`
	Country   string `json:"country"`
	AssetType string `json:"asset_type"`
}

// SearchIdentity finds the canonical identity for a ticker/name pair.
// Returns nil when the service has no match.
func (c *Client) SearchIdentity(ctx context.Context, ticker, name string) (*ParsedIdentity, error) {
	params := url.Values{}
	params.Set("function", "IDENTITY_SEARCH")
	params.Set("ticker", ticker)
	if name != "" {
		params.Set("name", name)
	}
	params.Set("apikey", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp identitySearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	if len(resp.Matches) == 0 {
		return nil, nil
	}

	// Matches come back ranked; take the first.
	best := resp.Matches[0]
	return &ParsedIdentity{Identity: best.Identity, Name: best.Name}, nil
}

// GetMetadata fetches sector/geography/asset-class for an identity.
// Returns nil when the service has no record.
func (c *Client) GetMetadata(ctx context.Context, identity string) (*ParsedMetadata, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("identity", identity)
	params.Set("apikey", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp overviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overview response: %w", err)
	}
	if resp.Sector == "" && resp.Country == "" && resp.AssetType == "" {
		return nil, nil
	}

	return &ParsedMetadata{
		Sector:     resp.Sector,
		Geography:  resp.Country,
		AssetClass: resp.AssetType,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

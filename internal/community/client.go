package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the shared community store: a network-accessible repository
// of previously-resolved identities, decompositions and metadata. Reads are
// synchronous; writes are best-effort and issued by callers on detached
// goroutines so they never block the pipeline.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new community store client.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client pointed at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return NewClient(apiKey, baseURL)
}

// ResolveIdentity looks up the canonical identity for a ticker.
// Returns nil on a miss (store answered 404).
func (c *Client) ResolveIdentity(ctx context.Context, ticker string) (*IdentityResponse, error) {
	params := url.Values{}
	params.Set("ticker", ticker)

	body, found, err := c.get(ctx, "/identity", params)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var resp IdentityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity response: %w", err)
	}
	return &resp, nil
}

// BatchResolve looks up canonical identities for several tickers at once.
// Unknown tickers are absent from the result map.
func (c *Client) BatchResolve(ctx context.Context, tickers []string) (map[string]IdentityResponse, error) {
	if len(tickers) == 0 {
		return map[string]IdentityResponse{}, nil
	}

	body, err := c.post(ctx, "/identity/batch", BatchIdentityRequest{Tickers: tickers})
	if err != nil {
		return nil, err
	}

	var resp BatchIdentityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch identity response: %w", err)
	}
	return resp.Resolutions, nil
}

// GetDecomposition fetches a previously-contributed breakdown for an
// instrument identity. Returns nil on a miss.
func (c *Client) GetDecomposition(ctx context.Context, instrumentID string) (*DecompositionResponse, error) {
	params := url.Values{}
	params.Set("instrument", instrumentID)

	body, found, err := c.get(ctx, "/decomposition", params)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var resp DecompositionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decomposition response: %w", err)
	}
	return &resp, nil
}

// BatchMetadata fetches stored metadata for several identities at once.
func (c *Client) BatchMetadata(ctx context.Context, identities []string) (map[string]MetadataResponse, error) {
	if len(identities) == 0 {
		return map[string]MetadataResponse{}, nil
	}

	body, err := c.post(ctx, "/metadata/batch", BatchMetadataRequest{Identities: identities})
	if err != nil {
		return nil, err
	}

	var resp BatchMetadataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch metadata response: %w", err)
	}
	return resp.Metadata, nil
}

// Contribute submits a record back to the store. The store deduplicates by
// content, so submitting identical data twice is observably the same as once.
func (c *Client) Contribute(ctx context.Context, contribution Contribution) error {
	_, err := c.post(ctx, "/contributions", contribution)
	return err
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (body []byte, found bool, err error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("community store returned status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	return body, true, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("community store returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

// Package memoryctx fetches a player's stored memories from the memory
// service. Memories are auxiliary context for escalated requests; callers
// treat fetch failures as an empty result, never as a request failure.
package memoryctx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// Config wires a Client.
type Config struct {
	// BaseURL of the memory service, e.g. http://memory:8003.
	BaseURL string
	// Limit caps the number of memories fetched per request. Defaults to 5.
	Limit int
	// Timeout bounds each HTTP call. Defaults to 5s.
	Timeout time.Duration
}

// Client calls the memory service's context endpoint.
type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
}

// NewClient builds a memory service client.
func NewClient(cfg Config) *Client {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		limit:      cfg.Limit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type contextQuery struct {
	CurrentEvent string `json:"currentEvent"`
	Limit        int    `json:"limit"`
}

// FetchContext returns the memories most relevant to the current event.
// currentEvent is a short free-text description such as
// "player.victory with happy".
func (c *Client) FetchContext(ctx context.Context, playerID, currentEvent string) ([]gateway.ContextRecord, error) {
	body, err := json.Marshal(contextQuery{CurrentEvent: currentEvent, Limit: c.limit})
	if err != nil {
		return nil, fmt.Errorf("encode context query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/players/%s/context", c.baseURL, url.PathEscape(playerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build context request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memory service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory service returned %d", resp.StatusCode)
	}

	var records []gateway.ContextRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	return records, nil
}

// Health reports whether the memory service answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

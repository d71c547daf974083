package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"edopro-pics/internal/domain"
)

// Client fetches the card catalog from the remote API. There is no retry at
// this layer; a failed fetch is fatal to the run that requested it.
type Client struct {
	http      *http.Client
	url       string
	userAgent string
}

func NewClient(url, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		url:       url,
		userAgent: userAgent,
	}
}

type catalogPayload struct {
	Data []domain.CatalogEntry `json:"data"`
}

// Fetch downloads and decodes the full catalog.
func (c *Client) Fetch(ctx context.Context) ([]domain.CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog request failed: %s", resp.Status)
	}

	var payload catalogPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	return payload.Data, nil
}

package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var httpClient = &http.Client{
	Timeout: time.Second * 30,
}

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: httpClient}
}

func (c *Client) Entries(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("error fetching prices StatusCode: %d", resp.StatusCode)
	}

	entries := []Entry{}
	err = json.NewDecoder(resp.Body).Decode(&entries)
	if err != nil {
		return nil, fmt.Errorf("error decoding prices: %w", err)
	}
	return entries, nil
}

// Sample fetches url and returns the rounded mean of the newest entries.
func (c *Client) Sample(ctx context.Context, url string) (Sample, error) {
	entries, err := c.Entries(ctx, url)
	if err != nil {
		return Sample{}, err
	}
	return Mean(entries)
}

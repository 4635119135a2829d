package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/version"
)

const (
	contentsPath        = "/api/contents"
	defaultFetchTimeout = 10 * time.Second
	maxListBytes        = 4 << 20
)

// HTTPFetcher pulls the ordered playlist from the public list endpoint.
type HTTPFetcher struct {
	client *http.Client
	url    string
}

// NewHTTPFetcher uses client, or a client with a 10s timeout when nil.
func NewHTTPFetcher(serverURL string, client *http.Client) (*HTTPFetcher, error) {
	u, err := endpoint(serverURL, contentsPath)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPFetcher{client: client, url: u.String()}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]domain.PlaylistItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build playlist request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("display"))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxListBytes))
		return nil, fmt.Errorf("failed to fetch playlist: unexpected status %d", resp.StatusCode)
	}

	var items []domain.PlaylistItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListBytes)).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if items == nil {
		items = []domain.PlaylistItem{}
	}
	return items, nil
}

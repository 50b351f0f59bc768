package sound

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxAssetSize bounds the alert sound download.
const maxAssetSize = 32 << 20

// Fetcher loads the alert sound from an http(s) URL or a local path.
// Nothing is cached: every call reads the asset again.
type Fetcher struct {
	location string
	client   *http.Client
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(location string, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{location: location, client: client}
}

// Location returns the configured asset location.
func (f *Fetcher) Location() string {
	return f.location
}

// Fetch returns the asset bytes.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(f.location, "http://") || strings.HasPrefix(f.location, "https://") {
		return f.fetchHTTP(ctx)
	}

	data, err := os.ReadFile(f.location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.location, err)
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", f.location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", f.location, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.location, err)
	}
	return data, nil
}

package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPFetcher GETs schema documents from `<baseURL>/<minorVersion>.json`.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

var _ Fetcher = &HTTPFetcher{}

func (f *HTTPFetcher) Fetch(ctx context.Context, minorVersion string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(f.BaseURL, "/") + "/" + minorVersion + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schema endpoint answered %s for %s", resp.Status, url)
	}
	return io.ReadAll(resp.Body)
}

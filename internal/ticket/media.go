package ticket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	mediaFetchTimeout = 30 * time.Second
	maxMediaBytes     = 16 << 20 // WhatsApp caps image payloads well below this
)

// HTTPFetcher fetches media bytes over plain HTTP GET. A bearer token is
// attached when set (the WhatsApp Cloud API requires one for media URLs).
type HTTPFetcher struct {
	client *http.Client
	token  string
}

func NewHTTPFetcher(token string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: mediaFetchTimeout},
		token:  token,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return data, nil
}

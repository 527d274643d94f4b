package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

// Client talks to the external movie API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/movies", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("movie API returned %d", resp.StatusCode)
	}

	var movies []domain.Movie
	if err := json.NewDecoder(resp.Body).Decode(&movies); err != nil {
		return nil, fmt.Errorf("decode movie list: %w", err)
	}
	return movies, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/immxrtalbeast/jamroom/internal/domain"
)

// Client is a read-only view of the external song catalog. The catalog
// owns search ranking and metadata; this client only fetches snapshots.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SongByID fetches a single song snapshot.
func (c *Client) SongByID(ctx context.Context, id string) (*domain.Song, error) {
	var song domain.Song
	if err := c.get(ctx, "/songs/"+url.PathEscape(id), &song); err != nil {
		return nil, err
	}
	return &song, nil
}

// Suggestions fetches follow-up recommendations for a song. Used to
// refill the session queue after a song change.
func (c *Client) Suggestions(ctx context.Context, songID string, limit int) ([]domain.Song, error) {
	path := "/songs/" + url.PathEscape(songID) + "/suggestions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var songs []domain.Song
	if err := c.get(ctx, path, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// Search runs a free-text query against the catalog.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Song, error) {
	var songs []domain.Song
	if err := c.get(ctx, "/search?query="+url.QueryEscape(query), &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

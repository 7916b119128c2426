package apiclient

import (
	"context"
	"net/http"
	"time"
)

type MediaItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	MediaType string    `json:"mediaType"`
	Status    string    `json:"status"`
	Link      string    `json:"link,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) ListMedia(ctx context.Context) ([]MediaItem, error) {
	var body struct {
		Items []MediaItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/media", nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

func (c *Client) GetMedia(ctx context.Context, id string) (MediaItem, error) {
	var item MediaItem
	if err := c.do(ctx, http.MethodGet, "/api/media/"+id, nil, &item); err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func (c *Client) CreateMedia(ctx context.Context, item MediaItem) (MediaItem, error) {
	var created MediaItem
	if err := c.do(ctx, http.MethodPost, "/api/media", item, &created); err != nil {
		return MediaItem{}, err
	}
	return created, nil
}

func (c *Client) UpdateMedia(ctx context.Context, item MediaItem) (MediaItem, error) {
	var updated MediaItem
	if err := c.do(ctx, http.MethodPut, "/api/media/"+item.ID, item, &updated); err != nil {
		return MediaItem{}, err
	}
	return updated, nil
}

func (c *Client) DeleteMedia(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/media/"+id, nil, nil)
}

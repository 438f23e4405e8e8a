package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rideops/fleet-backoffice/pkg/domain"
)

// ListParams filters a list request. Zero fields are not sent.
type ListParams struct {
	Page   int
	Limit  int
	Status string
	Search string
	From   time.Time
	To     time.Time

	// Filters holds resource-specific equality filters, e.g. "type": "moto".
	Filters map[string]string
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if !p.From.IsZero() {
		q.Set("from", p.From.UTC().Format(time.RFC3339))
	}
	if !p.To.IsZero() {
		q.Set("to", p.To.UTC().Format(time.RFC3339))
	}
	for k, v := range p.Filters {
		q.Set(k, v)
	}
	return q
}

// resource maps the five CRUD endpoints of one collection.
type resource[T any] struct {
	c    *Client
	path string
	name string
}

func (r resource[T]) itemPath(id domain.ID) string {
	return r.path + "/" + url.PathEscape(id.String())
}

// List returns one page of the collection.
func (r resource[T]) List(ctx context.Context, p ListParams) (*domain.Page[T], error) {
	var page domain.Page[T]
	if err := r.c.get(ctx, r.path, p.values(), &page); err != nil {
		return nil, fmt.Errorf("client.%s.List: %w", r.name, err)
	}
	return &page, nil
}

// Get returns one entity.
func (r resource[T]) Get(ctx context.Context, id domain.ID) (*T, error) {
	var v T
	if err := r.c.get(ctx, r.itemPath(id), nil, &v); err != nil {
		return nil, fmt.Errorf("client.%s.Get: %w", r.name, err)
	}
	return &v, nil
}

// Create posts v and returns the entity as stored.
func (r resource[T]) Create(ctx context.Context, v *T) (*T, error) {
	var out T
	if err := r.c.post(ctx, r.path, v, &out); err != nil {
		return nil, fmt.Errorf("client.%s.Create: %w", r.name, err)
	}
	return &out, nil
}

// Update sends a partial or full update. patch is encoded as-is, so a map
// can be used to send only some fields.
func (r resource[T]) Update(ctx context.Context, id domain.ID, patch any) (*T, error) {
	var out T
	if err := r.c.put(ctx, r.itemPath(id), patch, &out); err != nil {
		return nil, fmt.Errorf("client.%s.Update: %w", r.name, err)
	}
	return &out, nil
}

// Delete removes one entity.
func (r resource[T]) Delete(ctx context.Context, id domain.ID) error {
	if err := r.c.delete(ctx, r.itemPath(id)); err != nil {
		return fmt.Errorf("client.%s.Delete: %w", r.name, err)
	}
	return nil
}

// upload posts files as multipart under field, with extra form fields.
func (c *Client) upload(ctx context.Context, path, field string, fields map[string]string, files []File) (*UploadResult, error) {
	form, err := newMultipart(field, fields, files)
	if err != nil {
		return nil, err
	}

	res := &UploadResult{}
	r := request{method: http.MethodPost, path: path, form: form, raw: &res.Raw, status: &res.StatusCode}
	if err := c.do(ctx, r); err != nil {
		return nil, err
	}
	return res, nil
}

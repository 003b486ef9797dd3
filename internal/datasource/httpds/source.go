package httpds

import (
	"context"
	"io"
	"net/http"

	"taxiprep/internal/datasource"
)

// URLSource is a datasource.Source reading the body of a GET request.
type URLSource struct {
	client *Client
	url    string
}

var _ datasource.Source = (*URLSource)(nil)

// NewURLSource returns a source for url fetched through c.
func NewURLSource(c *Client, url string) *URLSource {
	return &URLSource{client: c, url: url}
}

// URL returns the source address.
func (s *URLSource) URL() string { return s.url }

// Open performs the request. Any status other than 200 is a *StatusError.
// The caller must close the returned body.
func (s *URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Method: http.MethodGet, URL: s.url}
	}
	return resp.Body, nil
}

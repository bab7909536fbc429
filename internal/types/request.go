package types

import (
	"fmt"
	"net/url"
	"time"
)

// Request is a page fetch issued by the crawl engine.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Raw is the URL exactly as it was queued. Frontier bookkeeping and
	// storage keys use this form, never the re-serialized URL.
	Raw string

	// Depth is the BFS distance from the root URL.
	Depth int

	// ParentURL tracks which page this request was discovered on.
	ParentURL string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a new Request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}

	return &Request{
		URL:       u,
		Raw:       rawURL,
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the URL as it was queued.
func (r *Request) URLString() string {
	if r.Raw != "" {
		return r.Raw
	}
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

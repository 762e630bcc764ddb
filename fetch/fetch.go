// Package fetch retrieves remote resources such as font files, font stylesheets and emoji images.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher returns the content behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// StatusError is returned for HTTP responses other than 200.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// DefaultMaxSize bounds the size of a single response.
const DefaultMaxSize = 32 << 20

// HTTPFetcher fetches http(s) URLs and decodes data: URIs in place.
type HTTPFetcher struct {
	Client  *http.Client // nil means http.DefaultClient
	MaxSize int64        // zero means DefaultMaxSize
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return DecodeDataURI(rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	limit := f.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("fetch %s: response exceeds %d bytes", rawURL, limit)
	}
	return data, nil
}

// DecodeDataURI returns the payload of a data: URI, base64 or percent encoded.
func DecodeDataURI(uri string) ([]byte, error) {
	meta, data, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return nil, fmt.Errorf("not a data URI: %.40q", uri)
	}
	if strings.HasSuffix(meta, ";base64") {
		res, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(data), ""))
		if err != nil {
			return nil, fmt.Errorf("data URI: %w", err)
		}
		return res, nil
	}
	res, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("data URI: %w", err)
	}
	return []byte(res), nil
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/font.ttf":
			_, _ = w.Write([]byte("glyphs"))
		case "/big":
			_, _ = w.Write(make([]byte, 100))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	f := &HTTPFetcher{}

	data, err := f.Fetch(ctx, srv.URL+"/font.ttf")
	require.NoError(t, err)
	assert.Equal(t, "glyphs", string(data))

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.True(t, IsNotFound(err))

	_, err = (&HTTPFetcher{MaxSize: 10}).Fetch(ctx, srv.URL+"/big")
	assert.Error(t, err)

	data, err = f.Fetch(ctx, "data:text/plain;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
		err  bool
	}{
		{uri: "data:,a%20b", want: "a b"},
		{uri: "data:image/svg+xml;utf8,<svg/>", want: "<svg/>"},
		{uri: "data:image/png;base64,AQID\n", want: "\x01\x02\x03"},
		{uri: "data:image/png;base64,***", err: true},
		{uri: "http://example.com", err: true},
	}
	for _, tt := range tests {
		got, err := DecodeDataURI(tt.uri)
		if tt.err {
			assert.Error(t, err, tt.uri)
			continue
		}
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.want, string(got), tt.uri)
	}
}

func TestCacheDedup(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	f := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(url), nil
	})
	c, err := NewCache(f, 0, nil)
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Fetch(ctx, "u")
			assert.NoError(t, err)
			results[i] = string(data)
		}()
	}
	// Let the goroutines pile up on the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "u", r)
	}
	data, err := c.Fetch(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "u", string(data))
	assert.LessOrEqual(t, calls.Load(), int32(8))
	before := calls.Load()
	_, _ = c.Fetch(ctx, "u")
	assert.Equal(t, before, calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCacheErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	f := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, &StatusError{URL: url, Code: http.StatusBadGateway}
		}
		return []byte("ok"), nil
	})
	c, err := NewCache(f, 4, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Fetch(ctx, "u")
	assert.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, 0, c.Len())

	data, err := c.Fetch(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c, err := NewCache(FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		<-block
		return nil, nil
	}), 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher obtains a named engine blob from the remote origin.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DownloadProgress is invoked while a blob downloads. total is -1 when
// the origin does not advertise a length.
type DownloadProgress func(name string, received, total int64)

// HTTPFetcher downloads engine blobs from one fixed base URL per engine
// version.
type HTTPFetcher struct {
	baseURL  string
	client   *http.Client
	progress DownloadProgress

	// Progress callbacks are throttled so a fast download does not
	// flood the UI event loop.
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher rooted at baseURL.
func NewHTTPFetcher(baseURL string, progress DownloadProgress) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:  baseURL,
		client:   &http.Client{},
		progress: progress,
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// Fetch downloads the named blob and returns its bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	blobURL, err := url.JoinPath(f.baseURL, name)
	if err != nil {
		return nil, fmt.Errorf("%w: bad blob url for %q: %v", ErrFetchFailed, name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: HTTP status %d", ErrFetchFailed, name, resp.StatusCode)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}

	chunk := make([]byte, 64*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			f.reportProgress(name, int64(buf.Len()), resp.ContentLength)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, name, readErr)
		}
	}

	// Always emit the final position so the bar completes.
	if f.progress != nil {
		f.progress(name, int64(buf.Len()), resp.ContentLength)
	}

	return buf.Bytes(), nil
}

func (f *HTTPFetcher) reportProgress(name string, received, total int64) {
	if f.progress == nil || !f.limiter.Allow() {
		return
	}
	f.progress(name, received, total)
}

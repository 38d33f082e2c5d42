package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// maxExportBytes bounds a single downloaded export.
const maxExportBytes = 64 << 20

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("non-2xx: %d body=%s", e.code, e.body) }

func getBody(ctx context.Context, c HTTPClient, url string) ([]byte, http.Header, error) {
	if url == "" {
		return nil, nil, errors.New("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, &statusError{code: resp.StatusCode, body: string(b)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return nil, nil, err
	}
	return b, resp.Header, nil
}

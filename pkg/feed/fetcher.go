package feed

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
)

// FetchCause classifies why a feed fetch failed
type FetchCause string

const (
	CauseNetwork    FetchCause = "network"
	CauseHTTPStatus FetchCause = "http-status"
	CauseTimeout    FetchCause = "timeout"
)

// FetchError is returned for any non-2xx response or transport failure
type FetchError struct {
	Cause      FetchCause
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Cause == CauseHTTPStatus {
		return fmt.Sprintf("feed fetch failed (%s): %s returned status %d", e.Cause, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed fetch failed (%s): %s: %v", e.Cause, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads feed bodies. It performs a single GET with a bounded
// timeout and never retries; retry policy belongs to the orchestrator.
type Fetcher struct {
	client *httpclient.Client
	logger ectologger.Logger
}

// NewFetcher creates a Fetcher over the shared HTTP client
func NewFetcher(client *httpclient.Client, logger ectologger.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// Fetch retrieves the raw calendar text at the given URL
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		cause := CauseNetwork
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			cause = CauseTimeout
		} else if errors.Is(err, context.DeadlineExceeded) {
			cause = CauseTimeout
		}

		f.logger.WithContext(ctx).WithError(err).Warnf("Feed fetch failed (%s): %s", cause, url)
		return nil, &FetchError{Cause: cause, URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.WithContext(ctx).Warnf("Feed fetch returned status %d: %s", resp.StatusCode, url)
		return nil, &FetchError{Cause: CauseHTTPStatus, StatusCode: resp.StatusCode, URL: url}
	}

	f.logger.WithContext(ctx).Debugf("Fetched feed %s (%d bytes in %v)", url, resp.ContentLength, resp.Duration)
	return resp.Body, nil
}

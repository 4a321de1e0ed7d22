package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/feed"
	"github.com/Ramsey-B/clover/pkg/httpclient"
)

func newTestFetcher(timeout time.Duration) *feed.Fetcher {
	logger := getTestLogger()
	client := httpclient.NewClient(httpclient.Config{
		Timeout:         timeout,
		MaxResponseSize: 1 << 20,
	}, logger)
	return feed.NewFetcher(client, logger)
}

func TestFetcher_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the response body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
		}))
		defer server.Close()

		body, err := newTestFetcher(5*time.Second).Fetch(ctx, server.URL)
		require.NoError(t, err)
		assert.Contains(t, string(body), "BEGIN:VCALENDAR")
	})

	t.Run("non-2xx status is an http-status failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestFetcher(5*time.Second).Fetch(ctx, server.URL)
		require.Error(t, err)

		var fetchErr *feed.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, feed.CauseHTTPStatus, fetchErr.Cause)
		assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	})

	t.Run("slow server is a timeout failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		_, err := newTestFetcher(50*time.Millisecond).Fetch(ctx, server.URL)
		require.Error(t, err)

		var fetchErr *feed.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, feed.CauseTimeout, fetchErr.Cause)
	})

	t.Run("unreachable host is a network failure", func(t *testing.T) {
		// Grab a port nothing listens on.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := newTestFetcher(5*time.Second).Fetch(ctx, url)
		require.Error(t, err)

		var fetchErr *feed.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, feed.CauseNetwork, fetchErr.Cause)
	})
}

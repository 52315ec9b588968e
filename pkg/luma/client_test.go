package luma

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEventsPagination(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-luma-api-key"))
		assert.Equal(t, "cal-1", r.URL.Query().Get("calendar_api_id"))

		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("pagination_cursor"))
			fmt.Fprint(w, `{"entries":[{"event":{"api_id":"evt-1","name":"Demo Night","start_at":"2025-03-01T18:00:00Z"}}],"has_more":true,"next_cursor":"c2"}`)
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("pagination_cursor"))
		fmt.Fprint(w, `{"entries":[{"event":{"api_id":"evt-2","name":"Social","geo_address_json":{"full_address":"1 Oxford St"}}}],"has_more":false}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	events, err := c.ListEvents(context.Background(), "cal-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].APIID)
	require.NotNil(t, events[0].StartAt)
	assert.Equal(t, "1 Oxford St", events[1].Location())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListEventsRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"entries":[],"has_more":false}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.ListEvents(context.Background(), "cal-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListEventsSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid api key"}`)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.ListEvents(context.Background(), "cal-1", time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDownloadExport(t *testing.T) {
	const csvBody = "First Name,Last Name,Email\nJane,Doe,jane@mit.edu\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "evt-1", r.URL.Query().Get("event_api_id"))
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, csvBody)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	var buf bytes.Buffer
	require.NoError(t, c.DownloadExport(context.Background(), "evt-1", &buf))
	assert.Equal(t, csvBody, buf.String())
}

package dvids

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, log logger.Logger) *Client {
	t.Helper()
	if log == nil {
		log = logger.NewNopLogger()
	}
	return NewClient(Options{
		APIKey: "secret",
		Endpoints: Endpoints{
			Search: srv.URL + "/search",
			Asset:  srv.URL + "/asset",
			CDN:    srv.URL + "/media/photos",
		},
		Timeout: 5 * time.Second,
		Logger:  log,
	})
}

func TestSearchDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "image", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"page_info":{"total_results":2,"results_per_page":50},
			"results":[{"id":"image:1","height":10,"width":20,"country":"US"},{"id":"image:2","height":30,"width":40}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	from := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	page, err := c.Search(context.Background(), from, from.Add(24*time.Hour), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, page.PageInfo.TotalResults)
	assert.Equal(t, 50, page.PageInfo.ResultsPerPage)
	require.Len(t, page.Results, 2)
	require.NotNil(t, page.Results[0].Country)
	assert.Equal(t, "US", *page.Results[0].Country)
	assert.Nil(t, page.Results[1].Country)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"page_info":{"total_results":0,"results_per_page":50},"results":[]}`)
	}))
	defer srv.Close()

	log := logger.NewTestLogger()
	c := newTestClient(t, srv, log)
	_, err := c.Search(context.Background(), time.Now(), time.Now(), 1)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, log.CountContaining("Requesting url"))
	assert.Equal(t, 2, log.CountContaining("retrying"))
}

func TestFetchExhaustionIsFetchFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Search(context.Background(), time.Now(), time.Now(), 1)
	require.Error(t, err)

	assert.True(t, errs.IsType(err, errs.ErrorTypeFetch))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.NotContains(t, err.Error(), "secret", "api key must be redacted")
	assert.Contains(t, err.Error(), "REDACTED")
}

func TestAssetValidatesImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image:42", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"results":{"image":"https://cdn.example/media/photos/2006/01/42.jpg","dimensions":{"height":"100","width":200}}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	asset, err := c.Asset(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, FlexInt(100), asset.Dimensions.Height)
	assert.Equal(t, FlexInt(200), asset.Dimensions.Width)

	_, err = c.Asset(context.Background(), "43")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeMalformedInput))
}

func TestFetchToStreamsBody(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	var got bytes.Buffer
	err := c.FetchTo(context.Background(), srv.URL+"/a.jpg", func(r io.Reader) error {
		got.Reset()
		_, err := io.Copy(&got, r)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got.Bytes())
}

func TestFetchToRejectsNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	written := false
	err := c.FetchTo(context.Background(), srv.URL+"/missing.jpg", func(io.Reader) error {
		written = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, written)
	// unconditional retry: even a 404 is attempted three times
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, strings.Contains(err.Error(), "404"))
}

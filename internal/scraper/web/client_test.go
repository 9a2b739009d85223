package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"AfricaScraper/internal/pipeline"
	"AfricaScraper/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *Client {
	cfg := config.Default().Scraper
	cfg.MaxRetries = retries
	cfg.RequestTimeout = 500 * time.Millisecond
	c := NewClient(cfg)
	c.r.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	return c
}

func TestGetMapsStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()
	c := testClient(1)
	ctx := context.Background()

	body, _, err := c.Get(ctx, srv.URL+"/fine", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	_, _, err = c.Get(ctx, srv.URL+"/missing", nil)
	assert.True(t, errors.Is(err, pipeline.ErrNotFound))

	_, _, err = c.Get(ctx, srv.URL+"/down", nil)
	assert.True(t, errors.Is(err, pipeline.ErrSourceUnavailable))
	var se *pipeline.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)

	_, _, err = c.Get(ctx, srv.URL+"/forbidden", nil)
	assert.True(t, errors.Is(err, pipeline.ErrSourceUnavailable))
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	body, _, err := testClient(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetTimeoutIsPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	_, _, err := testClient(0).Get(context.Background(), srv.URL, nil)
	assert.True(t, errors.Is(err, pipeline.ErrPageTimeout), "got %v", err)
}

func TestJSONSendsQueryAndBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("pageNumber"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":49}],"nextPage":null}`))
	}))
	defer srv.Close()

	var out struct {
		Data     []map[string]any `json:"data"`
		NextPage *string          `json:"nextPage"`
	}
	err := testClient(0).SetBearer("tok").JSON(context.Background(), srv.URL, map[string]string{"pageNumber": "2"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "49", out.Data[0]["id"].(interface{ String() string }).String())
	assert.Nil(t, out.NextPage)
}

func TestParseCSV(t *testing.T) {
	cols, rows, err := ParseCSV(strings.NewReader("\xef\xbb\xbfGeographic area,OBS_VALUE\nKenya,41\nGhana,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Geographic area", "OBS_VALUE"}, cols)
	require.Len(t, rows, 2)
	assert.Equal(t, "41", rows[0]["OBS_VALUE"])
	assert.Nil(t, rows[1]["OBS_VALUE"])
}

func TestDocumentLookup(t *testing.T) {
	html := `<html><body>
		<ul id="list">
			<li><h3><a href="/dataset/census">Census 2019</a></h3><p class="org">KNBS</p></li>
			<li><h3><a href="https://other.org/x">Trade</a></h3></li>
		</ul></body></html>`
	doc, err := ParseDocument(strings.NewReader(html), "text/html; charset=utf-8", "https://open.africa/dataset/")
	require.NoError(t, err)
	ctx := context.Background()

	v, ok, err := doc.Lookup(ctx, "#list li h3 a", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Census 2019", v)

	items, err := doc.Items(ctx, "#list > li")
	require.NoError(t, err)
	require.Len(t, items, 2)

	href, ok, _ := items[0].Lookup(ctx, "h3 a", "href")
	assert.True(t, ok)
	assert.Equal(t, "/dataset/census", href)
	assert.Equal(t, "https://open.africa/dataset/", items[0].BaseURL())

	_, ok, _ = items[1].Lookup(ctx, "p.org", "")
	assert.False(t, ok)
	_, ok, _ = items[1].Lookup(ctx, "h3 a", "title")
	assert.False(t, ok)
}

func TestDocumentDecodesLatin1(t *testing.T) {
	body := []byte("<html><body><p>C\xf4te d'Ivoire</p></body></html>")
	doc, err := ParseDocument(strings.NewReader(string(body)), "text/html; charset=iso-8859-1", "")
	require.NoError(t, err)
	v, ok, _ := doc.Lookup(context.Background(), "p", "")
	assert.True(t, ok)
	assert.Equal(t, "Côte d'Ivoire", v)
}

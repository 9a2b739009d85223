package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"AfricaScraper/internal/app"
	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countrySource struct{}

func (countrySource) Info() scraper.Info {
	return scraper.Info{
		Name:          "rows",
		Title:         "country rows",
		Kind:          scraper.KindAPI,
		CountryFields: []string{"Country"},
		NewSchema:     func() *models.Schema { return models.NewOpenSchema("rows") },
	}
}

func (countrySource) Open(context.Context, scraper.Env) (*scraper.Pipeline, error) {
	nav := &pipeline.PositionalNavigator{Load: func(_ context.Context, n int) (*pipeline.Page, error) {
		if n > 1 {
			return nil, nil
		}
		return &pipeline.Page{
			Columns: []string{"Country", "Value"},
			Rows: []map[string]any{
				{"Country": "Senegal", "Value": "1"},
				{"Country": "Peru", "Value": "2"},
			},
		}, nil
	}}
	return &scraper.Pipeline{Navigator: nav, Extractor: pipeline.TabularExtractor{}}, nil
}

func newTestServer(t *testing.T, apiKey string) (*Server, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "africa.db")
	cfg.Scraper.MinDelay = 0
	cfg.Server.ApiKey = apiKey

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	reg, err := scraper.NewRegistry(countrySource{})
	require.NoError(t, err)
	a.Sources = reg
	return New(a), a
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListSources(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/sources", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var infos []scraper.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "rows", infos[0].Name)
	assert.Equal(t, scraper.KindAPI, infos[0].Kind)
}

func TestRunLifecycle(t *testing.T) {
	s, a := newTestServer(t, "")

	w := do(s, postJSON("/api/runs", `{"source":"rows","format":"csv","confirm":true,"out":"../../escape"}`))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode(t, w)
	id, _ := started["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, true, started["paused"])

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id, http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["finished"])

	w = do(s, postJSON("/api/runs/"+id+"/resume", ""))
	require.Equal(t, http.StatusOK, w.Code)

	run, err := a.Runs.Get(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := run.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, filepath.Join(a.Config.Output.Dir, "escape_africa.csv"), res.Files[1])

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/runs", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["active"], 1)
	assert.Len(t, body["history"], 1)

	w = do(s, httptest.NewRequest(http.MethodGet, "/downloads/escape_africa.csv", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Country,Value\nSenegal,1\n", w.Body.String())

	w = do(s, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "country rows")
	assert.Contains(t, w.Body.String(), "/downloads/escape_africa.csv")
}

func TestRunErrors(t *testing.T) {
	s, _ := newTestServer(t, "")

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"missing source field", postJSON("/api/runs", `{}`), http.StatusBadRequest},
		{"unknown source", postJSON("/api/runs", `{"source":"nope"}`), http.StatusNotFound},
		{"bad format", postJSON("/api/runs", `{"source":"rows","format":"xlsx"}`), http.StatusBadRequest},
		{"unknown run", httptest.NewRequest(http.MethodGet, "/api/runs/missing", http.NoBody), http.StatusNotFound},
		{"control unknown run", postJSON("/api/runs/missing/pause", ""), http.StatusNotFound},
		{"bulk bad format", postJSON("/api/unicef", `{"format":"xml"}`), http.StatusBadRequest},
		{"missing download", httptest.NewRequest(http.MethodGet, "/downloads/none.csv", http.NoBody), http.StatusNotFound},
		{"hidden download", httptest.NewRequest(http.MethodGet, "/downloads/.env", http.NoBody), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, tt.req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAPIKeyGuardsMutatingRoutes(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	w := do(s, postJSON("/api/runs", `{"source":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := postJSON("/api/runs", `{"source":"nope"}`)
	req.Header.Set(apiKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(s, req).Code)

	req = postJSON("/api/runs", `{"source":"nope"}`)
	req.Header.Set(apiKeyHeader, "secret")
	assert.Equal(t, http.StatusNotFound, do(s, req).Code)

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/sources", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
}

func uploadCSV(t *testing.T, content, field string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "survey.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if field != "" {
		require.NoError(t, mw.WriteField("field", field))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/filter", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFilterUpload(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := do(s, uploadCSV(t, "Reference area,Value\nCongo,1\nChile,2\nDR Congo,3\n", ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Reference area", w.Header().Get("X-Country-Field"))
	assert.Equal(t, "3", w.Header().Get("X-Rows-Input"))
	assert.Equal(t, "2", w.Header().Get("X-Rows-Kept"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="survey_africa.csv"`)
	assert.Equal(t, "Reference area,Value\nCongo,1\nDR Congo,3\n", w.Body.String())

	w = do(s, uploadCSV(t, "Region,Value\nEast,1\n", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(s, httptest.NewRequest(http.MethodPost, "/api/filter", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadServesOutputFiles(t *testing.T) {
	s, a := newTestServer(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(a.Config.Output.Dir, "kept.json"), []byte(`[]`), 0o644))

	w := do(s, httptest.NewRequest(http.MethodGet, "/downloads/kept.json", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "kept.json")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := do(s, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scraper_active_runs")
}

func TestStartBulkDedupesFlowsAndDrainsOnShutdown(t *testing.T) {
	unicef := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "Geographic area,OBS_VALUE\nKenya,1\n")
	}))
	defer unicef.Close()

	s, a := newTestServer(t, "")
	a.Config.Sources["unicef-pt"] = config.SourceConfig{BaseURL: unicef.URL}

	w := do(s, postJSON("/api/unicef", `{"flows":["pt","PT"," pt "],"format":"csv"}`))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["datasets"])
	assert.Equal(t, []any{"PT"}, body["flows"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	w = do(s, postJSON("/api/unicef", `{"flows":["pt"]}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	w = do(s, postJSON("/api/runs", `{"source":"rows","format":"csv"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}

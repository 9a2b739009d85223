package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"AfricaScraper/internal/app"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/internal/sink"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templates embed.FS

const (
	shutdownTimeout = 15 * time.Second
	defaultHistory  = 50
	maxUploadBytes  = 64 << 20
)

// Server is the dashboard: it starts scrapes, reports their progress and serves the artifacts.
type Server struct {
	app    *app.App
	router *gin.Engine
	http   *http.Server
	log    zerolog.Logger
}

func New(a *app.App) *Server {
	logger := log.With().Str("component", "server").Logger()

	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes
	router.Use(gin.Recovery(), requestLogger(logger))
	router.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	s := &Server{
		app:    a,
		router: router,
		log:    logger,
		http: &http.Server{
			Addr:              a.Config.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.GET("/", s.index)
	r.GET("/downloads/:name", s.download)
	if s.app.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.app.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/sources", s.listSources)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)

	write := api.Group("", requireAPIKey(s.app.Config.Server.ApiKey))
	write.POST("/runs", s.startRun)
	write.POST("/runs/:id/pause", s.controlRun((*app.Run).Pause))
	write.POST("/runs/:id/resume", s.controlRun((*app.Run).Resume))
	write.POST("/runs/:id/cancel", s.controlRun((*app.Run).Cancel))
	write.POST("/unicef", s.startBulk)
	write.POST("/filter", s.filter)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("starting dashboard")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Sources": s.app.Sources.List(),
		"Runs":    s.app.Runs.List(),
		"Files":   s.artifacts(),
	})
}

// artifacts lists the files in the output directory, newest first.
func (s *Server) artifacts() []string {
	entries, err := os.ReadDir(s.app.Config.Output.Dir)
	if err != nil {
		return nil
	}
	type file struct {
		name string
		mod  time.Time
	}
	var files []file
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{e.Name(), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Sources.List())
}

type startRequest struct {
	Source   string `json:"source" binding:"required"`
	Format   string `json:"format"`
	MaxPages int    `json:"max_pages"`
	PageSize int    `json:"page_size"`
	Confirm  *bool  `json:"confirm"`
	Out      string `json:"out"`
}

func (s *Server) startRun(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	out := ""
	if req.Out != "" {
		out = filepath.Base(req.Out)
	}
	run, err := s.app.Start(req.Source, app.RunOptions{
		Format:   req.Format,
		MaxPages: req.MaxPages,
		PageSize: req.PageSize,
		Confirm:  req.Confirm,
		Output:   out,
	})
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusAccepted, run.Status())
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistory)))
	if err != nil || limit <= 0 {
		limit = defaultHistory
	}
	history, err := s.app.History(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":  s.app.Runs.List(),
		"history": history,
	})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.app.Runs.Get(c.Param("id"))
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, run.Status())
}

func (s *Server) controlRun(action func(*app.Run)) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := s.app.Runs.Get(c.Param("id"))
		if err != nil {
			abort(c, statusFor(err), err)
			return
		}
		action(run)
		c.JSON(http.StatusOK, run.Status())
	}
}

type bulkRequest struct {
	Flows   []string `json:"flows"`
	Format  string   `json:"format"`
	Workers int      `json:"workers"`
}

// startBulk launches a UNICEF bulk download in the background. Each dataset shows up
// in the run list as it starts.
func (s *Server) startBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.Format != "" {
		if _, err := sink.ParseFormat(req.Format); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	flows := s.app.BulkFlows(req.Flows)
	err := s.app.Go(func(ctx context.Context) {
		outcomes, err := s.app.RunUnicefBulk(ctx, flows, req.Format, req.Workers)
		ev := s.log.Info()
		if err != nil {
			ev = s.log.Warn().Err(err)
		}
		ev.Int("datasets", len(outcomes)).Msg("unicef bulk download finished")
	})
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"datasets": len(flows), "flows": flows})
}

// filter re-filters an uploaded CSV and returns the African rows as a download.
func (s *Server) filter(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	f, err := header.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	stats, err := s.app.FilterCSV(c.Request.Context(), f, header.Filename, c.PostForm("field"), &buf)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, app.ErrNoCountryField) {
			status = http.StatusUnprocessableEntity
		}
		abort(c, status, err)
		return
	}

	name := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename)) + sink.AfricaSuffix + ".csv"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Country-Field", stats.Field)
	c.Header("X-Rows-Input", strconv.Itoa(stats.Input))
	c.Header("X-Rows-Kept", strconv.Itoa(stats.Kept))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) download(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		c.Status(http.StatusNotFound)
		return
	}
	path := filepath.Join(s.app.Config.Output.Dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		c.Status(http.StatusNotFound)
		return
	}
	c.FileAttachment(path, name)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scraper.ErrUnknownSource), errors.Is(err, app.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrClosing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

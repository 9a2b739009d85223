package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"AfricaScraper/internal/countries"
	"AfricaScraper/internal/database"
	"AfricaScraper/internal/metrics"
	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/internal/scraper/africa"
	"AfricaScraper/internal/scraper/browser"
	"AfricaScraper/internal/scraper/web"
	"AfricaScraper/internal/sink"
	"AfricaScraper/internal/storage"
	"AfricaScraper/pkg/config"
	"AfricaScraper/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Uploader copies a persisted artifact somewhere else and returns its key.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// ErrClosing is returned when background work is requested after Shutdown.
var ErrClosing = errors.New("application is shutting down")

// App is the main application structure holding all dependencies.
type App struct {
	Config   *config.Config
	Store    *database.Store
	Metrics  *metrics.Metrics
	Sources  *scraper.Registry
	Runs     *Runs
	Uploader Uploader

	allow *countries.AllowList
	log   zerolog.Logger

	// ctx bounds background work; stop cancels it on Shutdown.
	ctx     context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New opens the relational store, registers the built-in sources and, when
// enabled, connects the S3 uploader.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	reg, err := africa.NewRegistry()
	if err != nil {
		store.Close()
		return nil, err
	}

	rootCtx, stop := context.WithCancel(context.Background())
	a := &App{
		ctx:     rootCtx,
		stop:    stop,
		Config:  cfg,
		Store:   store,
		Metrics: metrics.New(),
		Sources: reg,
		Runs:    NewRuns(),
		allow:   countries.Africa(cfg.Countries.Aliases),
		log:     log.With().Str("component", "app").Logger(),
	}
	if cfg.S3.Enabled {
		up, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			stop()
			store.Close()
			return nil, err
		}
		a.Uploader = up
	}
	return a, nil
}

// Go runs fn in the background for the lifetime of the app. fn's context is
// cancelled by Shutdown, which then waits for fn to return.
func (a *App) Go(fn func(ctx context.Context)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closing {
		return ErrClosing
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
	return nil
}

// Shutdown cancels background runs and waits until they have persisted what they
// collected, or until ctx ends. The store stays open.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
	a.stop()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background runs: %w", ctx.Err())
	}
}

// Close stops background work, waits for it, then closes the store.
func (a *App) Close() error {
	_ = a.Shutdown(context.Background())
	return a.Store.Close()
}

// AllowList is the country allow-list used for every filter.
func (a *App) AllowList() *countries.AllowList {
	if a.allow == nil {
		a.allow = countries.Africa(a.Config.Countries.Aliases)
	}
	return a.allow
}

// RunOptions override the configured settings for one run.
type RunOptions struct {
	Format   string
	MaxPages int
	PageSize int
	// Confirm, when set, overrides whether the run starts paused.
	Confirm *bool
	// Output is the artifact base name without extension.
	Output string
}

// Result is what a finished run produced.
type Result struct {
	Report     pipeline.Report
	Format     sink.Format
	Files      []string
	Table      string
	AfricaRows int
	Uploaded   []string
}

// Prepare builds the pipeline and controller of a run and registers it, without starting it.
func (a *App) Prepare(ctx context.Context, name string, opts RunOptions) (*Run, error) {
	src, err := a.Sources.Get(name)
	if err != nil {
		return nil, err
	}
	info := src.Info()

	format := sink.Format(a.Config.Output.Format)
	if opts.Format != "" {
		if format, err = sink.ParseFormat(opts.Format); err != nil {
			return nil, err
		}
	}

	settings := a.Config.Source(name)
	if opts.MaxPages > 0 {
		settings.MaxPages = opts.MaxPages
	}
	if opts.PageSize > 0 {
		settings.PageSize = opts.PageSize
	}
	if opts.Confirm != nil {
		settings.ConfirmStart = opts.Confirm
	}
	maxPages := info.MaxPages
	if settings.MaxPages > 0 {
		maxPages = settings.MaxPages
	}
	dedupe := info.DedupeKey
	if settings.DedupeKey != "" {
		dedupe = settings.DedupeKey
	}
	paused := info.ConfirmStart
	if settings.ConfirmStart != nil {
		paused = *settings.ConfirmStart
	}

	schema := info.NewSchema()
	env := scraper.Env{
		HTTP: web.NewClient(a.Config.Scraper),
		Browser: browser.Options{
			Headless:    a.Config.Scraper.Headless,
			PageTimeout: a.Config.Scraper.PageTimeout,
			UserAgent:   a.Config.Scraper.UserAgent,
		},
		Settings: settings,
		Schema:   schema,
		Log:      a.log.With().Str("source", name).Logger(),
	}
	pipe, err := src.Open(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", name, err)
	}

	var obs pipeline.Observer
	if a.Metrics != nil {
		obs = a.Metrics
	}
	ctrl := pipeline.NewController(name, schema, pipe.Navigator, pipe.Extractor, pipeline.Options{
		MaxPages:    maxPages,
		MinDelay:    a.Config.Scraper.MinDelay,
		DedupeKey:   dedupe,
		StartPaused: paused,
		Observer:    obs,
	})

	base := opts.Output
	if base == "" {
		if format == sink.Table {
			base = name
		} else {
			base = strings.TrimSuffix(utils.TimestampedName(name, format.Ext(), time.Now()), "."+format.Ext())
		}
	}

	run := newRun(ctrl, info, pipe, format, base)
	a.Runs.add(run)
	a.log.Info().Str("run_id", run.ID).Str("source", name).Str("format", string(format)).
		Int("max_pages", maxPages).Bool("paused", paused).Msg("run prepared")
	return run, nil
}

// Execute runs a prepared run to completion, then persists whatever was accumulated,
// records the run in the manifest and uploads the artifacts.
func (a *App) Execute(ctx context.Context, run *Run) (*Result, error) {
	defer run.finish()
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	run.setCancel(stop)

	if a.Metrics != nil {
		a.Metrics.ActiveRuns.Inc()
		defer a.Metrics.ActiveRuns.Dec()
	}

	rs, runErr := run.ctrl.Run(ctx)
	if err := run.pipe.Shutdown(); err != nil {
		a.log.Warn().Err(err).Str("run_id", run.ID).Msg("error releasing source")
	}

	// Persist even when the run was cancelled.
	pctx := context.WithoutCancel(ctx)
	res := &Result{Format: run.Format}
	var persistErr error
	if rs != nil && (rs.Len() > 0 || runErr == nil) {
		persistErr = a.persist(pctx, run, rs, res)
	}
	res.Report = run.ctrl.Report()

	if persistErr == nil && a.Uploader != nil {
		for _, f := range res.Files {
			key, err := a.Uploader.Upload(pctx, f)
			if err != nil {
				a.log.Error().Err(err).Str("file", f).Msg("upload failed")
				if a.Metrics != nil {
					a.Metrics.UploadErrors.WithLabelValues("s3").Inc()
				}
				continue
			}
			res.Uploaded = append(res.Uploaded, key)
		}
	}

	if err := a.Store.RecordRun(pctx, manifestEntry(res)); err != nil {
		a.log.Warn().Err(err).Str("run_id", run.ID).Msg("could not record run")
	}
	if a.Metrics != nil {
		a.Metrics.RunFinished(run.Source.Name, res.Report.State, res.Report.FinishedAt.Sub(res.Report.StartedAt))
	}

	err := errors.Join(runErr, persistErr)
	run.setResult(res, err)
	return res, err
}

// RunSource prepares and executes a run in the caller's goroutine.
func (a *App) RunSource(ctx context.Context, name string, opts RunOptions) (*Result, error) {
	run, err := a.Prepare(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, run)
}

// Start prepares a run and executes it in the background. Shutdown cancels it;
// whatever it accumulated is still persisted.
func (a *App) Start(name string, opts RunOptions) (*Run, error) {
	if a.ctx.Err() != nil {
		return nil, ErrClosing
	}
	run, err := a.Prepare(a.ctx, name, opts)
	if err != nil {
		return nil, err
	}
	err = a.Go(func(ctx context.Context) {
		if _, err := a.Execute(ctx, run); err != nil {
			a.log.Error().Err(err).Str("run_id", run.ID).Msg("background run failed")
		}
	})
	if err != nil {
		if serr := run.pipe.Shutdown(); serr != nil {
			a.log.Warn().Err(serr).Str("run_id", run.ID).Msg("error releasing source")
		}
		run.setResult(nil, err)
		run.finish()
		return nil, err
	}
	return run, nil
}

// History returns the most recent runs from the manifest.
func (a *App) History(ctx context.Context, limit int) ([]database.RunEntry, error) {
	return a.Store.ListRuns(ctx, limit)
}

// countryField picks the column the Africa filter applies to, if any.
func (a *App) countryField(info scraper.Info, schema *models.Schema) string {
	if !a.Config.Countries.Enabled || len(info.CountryFields) == 0 {
		return ""
	}
	field, _ := schema.FirstOf(info.CountryFields...)
	return field
}

func (a *App) persist(ctx context.Context, run *Run, rs *models.ResultSet, res *Result) error {
	field := a.countryField(run.Source, rs.Schema)

	if run.Format == sink.Table {
		ts := &sink.TableSink{
			Store:        a.Store,
			CountryField: field,
			Spellings:    a.AllowList().Spellings(),
			Aliases:      a.AllowList().Aliases(),
		}
		table, err := ts.Persist(ctx, rs, run.base)
		if errors.Is(err, sink.ErrNoColumns) {
			a.nothingWritten(run)
			return nil
		}
		res.Table = table
		if err != nil {
			return err
		}
		a.artifactWritten(run.Format)
		if field != "" {
			n, err := a.Store.CountRows(ctx, table+sink.AfricaSuffix)
			if err != nil {
				return err
			}
			res.AfricaRows = int(n)
		}
		return nil
	}

	s, err := a.fileSink(run.Format)
	if err != nil {
		return err
	}
	dir := a.Config.Output.Dir
	path, err := s.Persist(ctx, rs, filepath.Join(dir, run.base+"."+run.Format.Ext()))
	if errors.Is(err, sink.ErrNoColumns) {
		a.nothingWritten(run)
		return nil
	}
	if err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	a.artifactWritten(run.Format)

	if field == "" {
		return nil
	}
	filtered := countries.Filter(rs, a.AllowList(), field)
	res.AfricaRows = filtered.Len()
	path, err = s.Persist(ctx, filtered, filepath.Join(dir, run.base+sink.AfricaSuffix+"."+run.Format.Ext()))
	if err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	a.artifactWritten(run.Format)
	a.log.Info().Str("run_id", run.ID).Str("field", field).Int("rows", rs.Len()).Int("africa_rows", filtered.Len()).
		Msg("africa subset written")
	return nil
}

func (a *App) nothingWritten(run *Run) {
	a.log.Warn().Str("run_id", run.ID).Str("source", run.Source.Name).Msg("result set has no columns, no artifact written")
}

func (a *App) fileSink(f sink.Format) (sink.Sink, error) {
	switch f {
	case sink.CSV:
		return &sink.CSVSink{MissingValue: a.Config.Output.MissingValue}, nil
	case sink.JSON:
		return &sink.JSONSink{}, nil
	case sink.Parquet:
		return &sink.ParquetSink{}, nil
	}
	return nil, fmt.Errorf("no file sink for format %q", f)
}

func (a *App) artifactWritten(f sink.Format) {
	if a.Metrics != nil {
		a.Metrics.ArtifactsWritten.WithLabelValues(string(f)).Inc()
	}
}

func manifestEntry(res *Result) database.RunEntry {
	rep := res.Report
	artifact := res.Table
	if len(res.Files) > 0 {
		artifact = res.Files[0]
	}
	return database.RunEntry{
		ID:         rep.ID,
		Source:     rep.Source,
		State:      rep.State,
		Pages:      rep.PagesVisited,
		Records:    rep.Accepted,
		Rejected:   rep.Rejected,
		Artifact:   artifact,
		Error:      rep.Error,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
}

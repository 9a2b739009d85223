package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AfricaScraper/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a run.
type State int

const (
	Idle State = iota
	Paginating
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Paginating:
		return "paginating"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Observer receives run progress. Implementations must be safe for concurrent use.
type Observer interface {
	PageVisited(source string, skipped bool)
	RecordsProcessed(source string, accepted, rejected, duplicates int)
}

type noopObserver struct{}

func (noopObserver) PageVisited(string, bool)                {}
func (noopObserver) RecordsProcessed(string, int, int, int) {}

// Options tune a single run.
type Options struct {
	// MaxPages is the page ceiling; <= 0 means no ceiling.
	MaxPages int
	// MinDelay is the minimum time between two page requests.
	MinDelay time.Duration
	// DedupeKey, when set, drops records whose value for this field was already accepted.
	DedupeKey string
	// StartPaused holds the run before its first page until Resume is called.
	StartPaused bool
	Observer    Observer
}

// Report summarises a run so far.
type Report struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	State        string    `json:"state"`
	Paused       bool      `json:"paused"`
	PagesVisited int       `json:"pages_visited"`
	PagesSkipped int       `json:"pages_skipped"`
	Extracted    int       `json:"extracted"`
	Accepted     int       `json:"accepted"`
	Rejected     int       `json:"rejected"`
	Duplicates   int       `json:"duplicates"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Controller drives one run of Navigator, Extractor and Validator into an Accumulator.
type Controller struct {
	ID     string
	Source string

	nav       Navigator
	extractor Extractor
	validator *Validator
	schema    *models.Schema
	opts      Options
	gate      *Gate
	limiter   *rate.Limiter
	observer  Observer
	log       zerolog.Logger

	mu     sync.RWMutex
	state  State
	report Report
}

// NewController wires a run. The schema is owned by the run: open schemas grow as pages are read.
func NewController(source string, schema *models.Schema, nav Navigator, ext Extractor, opts Options) *Controller {
	limit := rate.Inf
	if opts.MinDelay > 0 {
		limit = rate.Every(opts.MinDelay)
	}
	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	id := uuid.NewString()
	return &Controller{
		ID:        id,
		Source:    source,
		nav:       WithPageLimit(nav, opts.MaxPages),
		extractor: ext,
		validator: NewValidator(schema),
		schema:    schema,
		opts:      opts,
		gate:      NewGate(opts.StartPaused),
		limiter:   rate.NewLimiter(limit, 1),
		observer:  obs,
		log:       log.With().Str("component", "controller").Str("run_id", id).Str("source", source).Logger(),
		report:    Report{ID: id, Source: source},
	}
}

func (c *Controller) Pause() {
	c.gate.Pause()
	c.log.Info().Msg("run paused")
}

func (c *Controller) Resume() {
	c.gate.Resume()
	c.log.Info().Msg("run resumed")
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Report returns a snapshot of the run counters.
func (c *Controller) Report() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r := c.report
	r.State = c.state.String()
	r.Paused = c.gate.Paused()
	return r
}

func (c *Controller) Schema() *models.Schema { return c.schema }

// Run paginates until the navigator is exhausted or the page ceiling is hit.
// The records accumulated so far are always returned; on abort the error says why.
func (c *Controller) Run(ctx context.Context) (*models.ResultSet, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, fmt.Errorf("run %s already started", c.ID)
	}
	c.state = Paginating
	c.report.StartedAt = time.Now()
	c.mu.Unlock()

	acc := models.NewAccumulator(c.schema, c.opts.DedupeKey)
	c.log.Info().Int("max_pages", c.opts.MaxPages).Msg("run started")

	if err := c.gate.Wait(ctx); err != nil {
		return c.abort(acc, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return c.abort(acc, err)
	}
	page, err := c.nav.Start(ctx)
	if err != nil && !errors.Is(err, ErrPageTimeout) {
		return c.abort(acc, fmt.Errorf("starting navigation: %w", err))
	}

	for page != nil {
		if err != nil {
			c.log.Warn().Err(err).Int("page", page.Number).Msg("page timed out, skipping")
			c.pageDone(true)
		} else if perr := c.process(ctx, page, acc); perr != nil {
			if errors.Is(perr, ErrSourceUnavailable) || ctx.Err() != nil {
				c.pageDone(true)
				return c.abort(acc, perr)
			}
			c.log.Warn().Err(perr).Int("page", page.Number).Msg("extraction failed, skipping page")
			c.pageDone(true)
		} else {
			c.pageDone(false)
		}

		if err := c.gate.Wait(ctx); err != nil {
			return c.abort(acc, err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return c.abort(acc, err)
		}

		next, aerr := c.nav.Advance(ctx, page)
		if aerr != nil && !errors.Is(aerr, ErrPageTimeout) {
			return c.abort(acc, fmt.Errorf("advancing past page %d: %w", page.Number, aerr))
		}
		if next == nil && aerr != nil {
			c.log.Warn().Err(aerr).Msg("next page timed out without a position, stopping")
		}
		page, err = next, aerr
	}

	c.finish(Done, nil)
	rep := c.Report()
	c.log.Info().Int("pages", rep.PagesVisited).Int("accepted", rep.Accepted).Int("rejected", rep.Rejected).Msg("run finished")
	return acc.Result(), nil
}

// process extracts, validates and accumulates one page.
func (c *Controller) process(ctx context.Context, page *Page, acc *models.Accumulator) error {
	raws, err := c.extractor.Extract(ctx, page)
	// Items read before a failure are still kept.
	accepted, rejected, dups := 0, 0, 0
	for _, raw := range raws {
		c.schema.Extend(raw.Names()...)
		rec, verr := c.validator.Validate(raw)
		if verr != nil {
			rejected++
			c.log.Debug().Int("page", raw.Page).Int("item", raw.Position).Err(verr).Msg("record rejected")
			continue
		}
		if acc.Append(rec) {
			accepted++
		} else {
			dups++
		}
	}

	c.mu.Lock()
	c.report.Extracted += len(raws)
	c.report.Accepted += accepted
	c.report.Rejected += rejected
	c.report.Duplicates += dups
	c.mu.Unlock()
	c.observer.RecordsProcessed(c.Source, accepted, rejected, dups)

	c.log.Debug().Int("page", page.Number).Int("records", len(raws)).Int("accepted", accepted).Msg("page processed")
	return err
}

func (c *Controller) pageDone(skipped bool) {
	c.mu.Lock()
	c.report.PagesVisited++
	if skipped {
		c.report.PagesSkipped++
	}
	c.mu.Unlock()
	c.observer.PageVisited(c.Source, skipped)
}

func (c *Controller) abort(acc *models.Accumulator, cause error) (*models.ResultSet, error) {
	c.finish(Aborted, cause)
	c.log.Error().Err(cause).Int("accepted", acc.Len()).Msg("run aborted, keeping partial results")
	return acc.Result(), fmt.Errorf("run %s aborted: %w", c.ID, cause)
}

func (c *Controller) finish(s State, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.report.FinishedAt = time.Now()
	if cause != nil {
		c.report.Error = cause.Error()
	}
}

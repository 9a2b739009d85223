package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/internal/sink"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one prepared or running scrape.
type Run struct {
	ID     string
	Source scraper.Info
	Format sink.Format

	ctrl *pipeline.Controller
	pipe *scraper.Pipeline
	base string
	done chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
	result    *Result
	err       error
}

func newRun(ctrl *pipeline.Controller, info scraper.Info, pipe *scraper.Pipeline, format sink.Format, base string) *Run {
	return &Run{
		ID:     ctrl.ID,
		Source: info,
		Format: format,
		ctrl:   ctrl,
		pipe:   pipe,
		base:   base,
		done:   make(chan struct{}),
	}
}

func (r *Run) Pause()  { r.ctrl.Pause() }
func (r *Run) Resume() { r.ctrl.Resume() }

// Cancel stops the run between pages. What was accumulated is still persisted.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Run) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	already := r.cancelled
	r.mu.Unlock()
	if already {
		cancel()
	}
}

func (r *Run) setResult(res *Result, err error) {
	r.mu.Lock()
	r.result, r.err = res, err
	r.mu.Unlock()
}

func (r *Run) finish() { close(r.done) }

// Done is closed once the run has been persisted.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run is over or ctx ends.
func (r *Run) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Status is the JSON view of a run.
type Status struct {
	pipeline.Report
	Format     string   `json:"format"`
	Finished   bool     `json:"finished"`
	Files      []string `json:"files,omitempty"`
	Table      string   `json:"table,omitempty"`
	AfricaRows int      `json:"africa_rows"`
}

func (r *Run) Status() Status {
	st := Status{Report: r.ctrl.Report(), Format: string(r.Format)}
	select {
	case <-r.done:
		st.Finished = true
	default:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		st.Files = r.result.Files
		st.Table = r.result.Table
		st.AfricaRows = r.result.AfricaRows
	}
	if r.err != nil && st.Error == "" {
		st.Error = r.err.Error()
	}
	return st
}

// Runs keeps the runs started by this process.
type Runs struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRuns() *Runs {
	return &Runs{runs: make(map[string]*Run)}
}

func (rs *Runs) add(r *Run) {
	rs.mu.Lock()
	rs.runs[r.ID] = r
	rs.mu.Unlock()
}

func (rs *Runs) Get(id string) (*Run, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

// List returns the status of every run, most recently started first.
func (rs *Runs) List() []Status {
	rs.mu.RLock()
	out := make([]Status, 0, len(rs.runs))
	for _, r := range rs.runs {
		out = append(out, r.Status())
	}
	rs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper/browser"
	"AfricaScraper/internal/scraper/web"
	"AfricaScraper/pkg/config"

	"github.com/rs/zerolog"
)

// Kind says how a source is reached.
type Kind string

const (
	KindAPI     Kind = "api"
	KindStatic  Kind = "static"
	KindBrowser Kind = "browser"
)

// ErrUnknownSource is returned when a source name is not registered.
var ErrUnknownSource = errors.New("unknown source")

// Info describes a source and its run defaults.
type Info struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Kind  Kind   `json:"kind"`
	// CountryFields are tried in order when filtering results to Africa.
	CountryFields []string `json:"country_fields,omitempty"`
	MaxPages      int      `json:"max_pages"`
	// ConfirmStart holds the run until an operator confirms the page is ready.
	ConfirmStart bool   `json:"confirm_start"`
	DedupeKey    string `json:"dedupe_key,omitempty"`

	// NewSchema returns a fresh schema for one run.
	NewSchema func() *models.Schema `json:"-"`
}

// Env is what a source gets to build its pipeline for one run.
type Env struct {
	HTTP     *web.Client
	Browser  browser.Options
	Settings config.SourceConfig
	Schema   *models.Schema
	Log      zerolog.Logger
}

// Pipeline is the navigator and extractor pair for one run.
// Close releases whatever the source opened; it may be nil.
type Pipeline struct {
	Navigator pipeline.Navigator
	Extractor pipeline.Extractor
	Close     func() error
}

// Shutdown calls Close if set.
func (p *Pipeline) Shutdown() error {
	if p == nil || p.Close == nil {
		return nil
	}
	return p.Close()
}

// Source is one scrapeable origin.
type Source interface {
	Info() Info
	Open(ctx context.Context, env Env) (*Pipeline, error)
}

// Registry holds the available sources by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(s Source) error {
	info := s.Info()
	if info.Name == "" {
		return errors.New("source has no name")
	}
	if info.NewSchema == nil {
		return fmt.Errorf("source %s has no schema", info.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[info.Name]; dup {
		return fmt.Errorf("source %s registered twice", info.Name)
	}
	r.sources[info.Name] = s
	return nil
}

func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return s, nil
}

// List returns source descriptions sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

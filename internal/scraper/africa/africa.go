// Package africa defines the data catalogues and APIs scraped for African datasets.
// Each source is a field table plus a pagination strategy; the run loop itself
// lives in the pipeline package.
package africa

import (
	"context"
	"fmt"
	"strings"

	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/internal/scraper/browser"
)

// All returns every built-in source.
func All() []scraper.Source {
	sources := []scraper.Source{
		OpenAfrica(),
		NBS(),
		WorldBank(),
		Kaggle(),
		UNInfo(),
		UNWomen(),
		PopulationDataPortal(),
		UNData(),
		UNPopulation(),
		UnicefDataflows(),
	}
	for _, flow := range UnicefFlows {
		sources = append(sources, UnicefDataset(flow))
	}
	return sources
}

// NewRegistry registers All.
func NewRegistry() (*scraper.Registry, error) {
	return scraper.NewRegistry(All()...)
}

// pageSite scrapes an HTML page sequence with a field table. Static sites are
// fetched over plain HTTP; the rest are rendered in a browser.
type pageSite struct {
	info   scraper.Info
	origin string
	ready  string
	// next, when set, paginates by clicking instead of by URL.
	next  func(n int) string
	table pipeline.FieldTable
}

func (s *pageSite) Info() scraper.Info { return s.info }

func (s *pageSite) Open(ctx context.Context, env scraper.Env) (*scraper.Pipeline, error) {
	origin := s.origin
	if env.Settings.BaseURL != "" {
		origin = env.Settings.BaseURL
	}
	ext := &pipeline.SelectorExtractor{Table: s.table, Schema: env.Schema, Log: env.Log}

	if s.info.Kind == scraper.KindStatic {
		return &scraper.Pipeline{Navigator: s.staticNavigator(env, origin), Extractor: ext}, nil
	}

	sess, err := browser.Open(ctx, env.Browser)
	if err != nil {
		return nil, &pipeline.SourceError{URL: origin, Err: err}
	}
	p := &scraper.Pipeline{Extractor: ext, Close: sess.Close}
	if s.next == nil {
		p.Navigator = browser.NewURLNavigator(sess, origin, s.ready)
		return p, nil
	}

	nav := &browser.ClickNavigator{Session: sess, Origin: origin, Ready: s.ready, Next: s.next}
	if confirm(s.info, env) {
		// Load now so the operator can prepare the page before the run is resumed.
		if err := sess.Navigate(ctx, origin); err != nil {
			sess.Close()
			return nil, &pipeline.SourceError{URL: origin, Err: err}
		}
		nav.Origin = ""
	}
	p.Navigator = nav
	return p, nil
}

// staticNavigator fetches fmt.Sprintf(origin, n) until a page is missing or lists no items.
func (s *pageSite) staticNavigator(env scraper.Env, origin string) pipeline.Navigator {
	return &pipeline.PositionalNavigator{Load: func(ctx context.Context, n int) (*pipeline.Page, error) {
		url := fmt.Sprintf(origin, n)
		doc, err := env.HTTP.Document(ctx, url)
		if err != nil {
			return &pipeline.Page{URL: url}, err
		}
		if n > 1 && s.table.Items != "" {
			items, _ := doc.Items(ctx, s.table.Items)
			if len(items) == 0 {
				return nil, fmt.Errorf("%s lists no items: %w", url, pipeline.ErrNotFound)
			}
		}
		return &pipeline.Page{URL: url, Document: doc}, nil
	}}
}

func confirm(info scraper.Info, env scraper.Env) bool {
	if env.Settings.ConfirmStart != nil {
		return *env.Settings.ConfirmStart
	}
	return info.ConfirmStart
}

func text(name string, required bool) models.Field {
	return models.Field{Name: name, Type: models.Text, Required: required}
}

func link(name string, required bool) models.Field {
	return models.Field{Name: name, Type: models.URL, Required: required}
}

func date(name string) models.Field {
	return models.Field{Name: name, Type: models.Date}
}

func schemaOf(name string, fields ...models.Field) func() *models.Schema {
	return func() *models.Schema { return models.NewSchema(name, fields...) }
}

// rules builds a rule list from field, selector, attr triples.
func rules(triples ...string) []pipeline.FieldRule {
	out := make([]pipeline.FieldRule, 0, len(triples)/3)
	for i := 0; i+2 < len(triples); i += 3 {
		out = append(out, pipeline.FieldRule{Field: triples[i], Selector: triples[i+1], Attr: triples[i+2]})
	}
	return out
}

// under joins base in front of every relative selector in rs.
func under(base string, rs []pipeline.FieldRule) []pipeline.FieldRule {
	for i := range rs {
		if !strings.HasPrefix(rs[i].Selector, "/") {
			rs[i].Selector = base + "/" + rs[i].Selector
		}
	}
	return rs
}

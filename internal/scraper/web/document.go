package web

import (
	"context"
	"strings"

	"AfricaScraper/internal/pipeline"

	"github.com/PuerkitoBio/goquery"
)

// Document is a goquery selection answering CSS selectors.
type Document struct {
	sel  *goquery.Selection
	base string
}

func (d *Document) BaseURL() string { return d.base }

func (d *Document) Lookup(_ context.Context, selector, attr string) (string, bool, error) {
	sel := d.sel
	if selector != "" {
		sel = d.sel.Find(selector)
	}
	if sel.Length() == 0 {
		return "", false, nil
	}
	sel = sel.First()
	if attr == "" {
		return strings.TrimSpace(sel.Text()), true, nil
	}
	v, ok := sel.Attr(attr)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (d *Document) Items(_ context.Context, selector string) ([]pipeline.Document, error) {
	var out []pipeline.Document
	d.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Document{sel: s, base: d.base})
	})
	return out, nil
}

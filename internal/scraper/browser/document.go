package browser

import (
	"context"
	"strings"

	"AfricaScraper/internal/pipeline"

	"github.com/go-rod/rod"
)

// isXPath tells XPath expressions apart from CSS selectors.
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "./") || strings.HasPrefix(selector, "(")
}

// Document answers CSS and XPath selectors against the rendered page, or
// against one element when scoped by Items. Lookups never wait: the navigator
// has already waited for the page to be ready.
type Document struct {
	page *rod.Page
	el   *rod.Element
}

func (d *Document) BaseURL() string {
	info, err := d.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (d *Document) find(ctx context.Context, selector string) (*rod.Element, bool, error) {
	if selector == "" {
		return d.el, d.el != nil, nil
	}
	var (
		ok  bool
		el  *rod.Element
		err error
	)
	switch {
	case d.el != nil && isXPath(selector):
		ok, el, err = d.el.Context(ctx).HasX(selector)
	case d.el != nil:
		ok, el, err = d.el.Context(ctx).Has(selector)
	case isXPath(selector):
		ok, el, err = d.page.Context(ctx).HasX(selector)
	default:
		ok, el, err = d.page.Context(ctx).Has(selector)
	}
	return el, ok, err
}

func (d *Document) Lookup(ctx context.Context, selector, attr string) (string, bool, error) {
	el, ok, err := d.find(ctx, selector)
	if err != nil || !ok {
		return "", false, err
	}
	if attr == "" {
		text, err := el.Text()
		if err != nil {
			return "", false, err
		}
		return strings.TrimSpace(text), true, nil
	}
	v, err := el.Attribute(attr)
	if err != nil {
		return "", false, err
	}
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", false, nil
	}
	return *v, true, nil
}

func (d *Document) Items(ctx context.Context, selector string) ([]pipeline.Document, error) {
	var (
		els rod.Elements
		err error
	)
	switch {
	case d.el != nil && isXPath(selector):
		els, err = d.el.Context(ctx).ElementsX(selector)
	case d.el != nil:
		els, err = d.el.Context(ctx).Elements(selector)
	case isXPath(selector):
		els, err = d.page.Context(ctx).ElementsX(selector)
	default:
		els, err = d.page.Context(ctx).Elements(selector)
	}
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Document, len(els))
	for i, el := range els {
		out[i] = &Document{page: d.page, el: el}
	}
	return out, nil
}

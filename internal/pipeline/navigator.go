package pipeline

import (
	"context"
	"errors"
)

// Page is the navigator's handle on the current page. It carries either a
// queryable Document or a tabular payload, never both.
type Page struct {
	Number int
	URL    string
	// Next is the server-provided reference to the following page, if any.
	Next string

	Document Document
	Columns  []string
	Rows     []map[string]any
}

// Navigator walks a source page by page. Advance returns (nil, nil) once the
// sequence is exhausted. A page that timed out is returned together with an
// error wrapping ErrPageTimeout so that navigation can continue past it.
type Navigator interface {
	Start(ctx context.Context) (*Page, error)
	Advance(ctx context.Context, current *Page) (*Page, error)
}

// FetchFunc loads the page behind a URL.
type FetchFunc func(ctx context.Context, url string) (*Page, error)

// TokenNavigator follows the next-page reference each response carries.
type TokenNavigator struct {
	Origin string
	Fetch  FetchFunc
}

func (n *TokenNavigator) Start(ctx context.Context) (*Page, error) {
	p, err := n.Fetch(ctx, n.Origin)
	if p != nil {
		p.Number = 1
	}
	return p, err
}

func (n *TokenNavigator) Advance(ctx context.Context, current *Page) (*Page, error) {
	if current == nil || current.Next == "" {
		return nil, nil
	}
	p, err := n.Fetch(ctx, current.Next)
	if p != nil {
		p.Number = current.Number + 1
	}
	return p, err
}

// LoadFunc loads page n (1-based). It returns (nil, nil) or ErrNotFound when page n does not exist.
type LoadFunc func(ctx context.Context, n int) (*Page, error)

// PositionalNavigator addresses pages by index.
type PositionalNavigator struct {
	Load LoadFunc
}

func (n *PositionalNavigator) Start(ctx context.Context) (*Page, error) {
	return n.load(ctx, 1)
}

func (n *PositionalNavigator) Advance(ctx context.Context, current *Page) (*Page, error) {
	if current == nil {
		return nil, nil
	}
	return n.load(ctx, current.Number+1)
}

func (n *PositionalNavigator) load(ctx context.Context, num int) (*Page, error) {
	p, err := n.Load(ctx, num)
	if errors.Is(err, ErrNotFound) {
		if num == 1 {
			return nil, &SourceError{Err: err}
		}
		return nil, nil
	}
	if p != nil {
		p.Number = num
	}
	return p, err
}

// SinglePage serves exactly one page.
func SinglePage(load func(ctx context.Context) (*Page, error)) Navigator {
	return &PositionalNavigator{Load: func(ctx context.Context, n int) (*Page, error) {
		if n > 1 {
			return nil, nil
		}
		return load(ctx)
	}}
}

type limitedNavigator struct {
	Navigator
	max int
}

// WithPageLimit stops nav after max pages. max <= 0 means no limit.
func WithPageLimit(nav Navigator, max int) Navigator {
	if max <= 0 {
		return nav
	}
	return &limitedNavigator{Navigator: nav, max: max}
}

func (l *limitedNavigator) Advance(ctx context.Context, current *Page) (*Page, error) {
	if current != nil && current.Number >= l.max {
		return nil, nil
	}
	return l.Navigator.Advance(ctx, current)
}

package browser

import (
	"context"
	"fmt"
	"strings"

	"AfricaScraper/internal/pipeline"
)

// NewURLNavigator visits fmt.Sprintf(pattern, n) for page n and waits for ready.
// A pattern without a %d verb yields a single page.
func NewURLNavigator(s *Session, pattern, ready string) pipeline.Navigator {
	return &pipeline.PositionalNavigator{Load: func(ctx context.Context, n int) (*pipeline.Page, error) {
		url := strings.ReplaceAll(pattern, "%%", "%")
		if hasVerb(pattern) {
			url = fmt.Sprintf(pattern, n)
		} else if n > 1 {
			return nil, nil
		}
		if err := s.Navigate(ctx, url); err != nil {
			if n == 1 {
				return nil, &pipeline.SourceError{URL: url, Err: err}
			}
			return nil, fmt.Errorf("%s: %w", url, pipeline.ErrNotFound)
		}
		page := &pipeline.Page{URL: url, Document: s.Document()}
		if ready != "" {
			if err := s.WaitFor(ctx, ready); err != nil {
				return page, pipeline.PageTimeout(url, err)
			}
		}
		return page, nil
	}}
}

// ClickNavigator loads Origin once and then advances by clicking a "next" control.
// Next returns the control's selector for leaving page n, so numbered page links can
// be followed as well as a plain "next" button. A missing or unclickable control ends
// the sequence. An empty Origin starts from whatever the session already shows.
type ClickNavigator struct {
	Session *Session
	Origin  string
	Ready   string
	Next    func(n int) string
}

func (c *ClickNavigator) Start(ctx context.Context) (*pipeline.Page, error) {
	if c.Origin != "" {
		if err := c.Session.Navigate(ctx, c.Origin); err != nil {
			return nil, &pipeline.SourceError{URL: c.Origin, Err: err}
		}
	}
	return c.ready(ctx, 1)
}

func (c *ClickNavigator) Advance(ctx context.Context, current *pipeline.Page) (*pipeline.Page, error) {
	if current == nil {
		return nil, nil
	}
	clicked, err := c.Session.Click(ctx, c.Next(current.Number))
	if err != nil {
		return nil, err
	}
	if !clicked {
		return nil, nil
	}
	return c.ready(ctx, current.Number+1)
}

func (c *ClickNavigator) ready(ctx context.Context, n int) (*pipeline.Page, error) {
	page := &pipeline.Page{Number: n, URL: c.Session.CurrentURL(), Document: c.Session.Document()}
	if c.Ready != "" {
		if err := c.Session.WaitFor(ctx, c.Ready); err != nil {
			return page, pipeline.PageTimeout(page.URL, err)
		}
	}
	return page, nil
}

// NextButton always clicks the same control.
func NextButton(selector string) func(int) string {
	return func(int) string { return selector }
}

func hasVerb(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '%' {
			if pattern[i+1] == 'd' {
				return true
			}
			i++
		}
	}
	return false
}

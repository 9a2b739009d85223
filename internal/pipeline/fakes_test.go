package pipeline

import (
	"context"
	"strings"
	"sync"
)

// mapDocument resolves selectors from a fixed map; "sel@attr" keys hold attributes.
type mapDocument struct {
	base   string
	values map[string]string
	items  map[string][]Document
	calls  int
	mu     sync.Mutex
}

func (d *mapDocument) BaseURL() string { return d.base }

func (d *mapDocument) Lookup(_ context.Context, selector, attr string) (string, bool, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	key := selector
	if attr != "" {
		key += "@" + attr
	}
	v, ok := d.values[key]
	return v, ok, nil
}

func (d *mapDocument) Items(_ context.Context, selector string) ([]Document, error) {
	return d.items[selector], nil
}

// countingNavigator serves pages 1..total, or forever when total < 0.
type countingNavigator struct {
	total   int
	pageFor func(n int) *Page
	errFor  func(n int) error
	starts  int
	visited []int
}

func (n *countingNavigator) page(num int) (*Page, error) {
	n.visited = append(n.visited, num)
	p := &Page{Number: num, URL: "https://example.org/p/" + strings.Repeat("x", num)}
	if n.pageFor != nil {
		p = n.pageFor(num)
		p.Number = num
	}
	var err error
	if n.errFor != nil {
		err = n.errFor(num)
	}
	return p, err
}

func (n *countingNavigator) Start(context.Context) (*Page, error) {
	n.starts++
	return n.page(1)
}

func (n *countingNavigator) Advance(_ context.Context, cur *Page) (*Page, error) {
	if n.total >= 0 && cur.Number >= n.total {
		return nil, nil
	}
	return n.page(cur.Number + 1)
}

// rowsPerPage returns tabular pages with one row each.
func rowsPerPage(n int) *Page {
	return &Page{
		Columns: []string{"name", "link"},
		Rows: []map[string]any{
			{"name": "dataset " + strings.Repeat("i", n), "link": "https://example.org/d/" + strings.Repeat("i", n)},
		},
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	pages    int
	skipped  int
	accepted int
}

func (o *recordingObserver) PageVisited(_ string, skipped bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages++
	if skipped {
		o.skipped++
	}
}

func (o *recordingObserver) RecordsProcessed(_ string, accepted, _, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted += accepted
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"AfricaScraper/internal/models"
	"AfricaScraper/utils"

	"github.com/rs/zerolog"
)

// Document is a queryable page or a fragment of one.
type Document interface {
	// BaseURL is used to resolve relative links found in the document.
	BaseURL() string
	// Lookup returns the text of the first node matching selector, or its attribute
	// attr when attr is non-empty. An empty selector addresses the document itself.
	Lookup(ctx context.Context, selector, attr string) (string, bool, error)
	// Items returns one scoped document per node matching selector.
	Items(ctx context.Context, selector string) ([]Document, error)
}

// Extractor turns a page into raw records.
type Extractor interface {
	Extract(ctx context.Context, page *Page) ([]models.RawRecord, error)
}

// FieldRule maps one output field to a selector.
type FieldRule struct {
	Field string
	// Selector may contain one %d verb, replaced with the item index in positional mode.
	Selector string
	// Attr reads an attribute instead of text. href and src are resolved to absolute URLs.
	Attr string
}

// FieldTable describes where the items of a page are and how to read their fields.
// With Items set every matching node is one item; otherwise items are addressed
// by index from First to Last inclusive.
type FieldTable struct {
	Items       string
	First, Last int
	Rules       []FieldRule
}

// SelectorExtractor applies a FieldTable to document pages.
type SelectorExtractor struct {
	Table  FieldTable
	Schema *models.Schema
	Log    zerolog.Logger
}

func (e *SelectorExtractor) Extract(ctx context.Context, page *Page) ([]models.RawRecord, error) {
	if page.Document == nil {
		return nil, fmt.Errorf("page %d has no document", page.Number)
	}

	if e.Table.Items != "" {
		items, err := page.Document.Items(ctx, e.Table.Items)
		if err != nil {
			return nil, fmt.Errorf("listing items on page %d: %w", page.Number, err)
		}
		var out []models.RawRecord
		for i, item := range items {
			rec, ok, err := e.extractItem(ctx, item, page.Number, i+1, -1)
			if err != nil {
				return out, err
			}
			if ok {
				out = append(out, rec)
			}
		}
		return out, nil
	}

	var out []models.RawRecord
	for i := e.Table.First; i <= e.Table.Last; i++ {
		rec, ok, err := e.extractItem(ctx, page.Document, page.Number, i, i)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// extractItem reads every rule for one item. index < 0 means selectors are used verbatim.
func (e *SelectorExtractor) extractItem(ctx context.Context, doc Document, pageNum, position, index int) (models.RawRecord, bool, error) {
	rec := models.NewRawRecord(pageNum, position)
	found := 0
	var missingRequired string

	for _, rule := range e.Table.Rules {
		sel := rule.Selector
		if index >= 0 && strings.Contains(sel, "%d") {
			sel = fmt.Sprintf(sel, index)
		}
		v, ok, err := doc.Lookup(ctx, sel, rule.Attr)
		if err != nil {
			return rec, false, fmt.Errorf("field %s of item %d: %w", rule.Field, position, err)
		}
		if !ok {
			if f, _ := e.Schema.Field(rule.Field); f.Required && missingRequired == "" {
				missingRequired = rule.Field
			}
			rec.SetMissing(rule.Field)
			continue
		}
		found++
		if rule.Attr == "href" || rule.Attr == "src" {
			v = utils.ResolveURL(doc.BaseURL(), v)
		} else {
			v = utils.CleanText(v)
		}
		rec.Set(rule.Field, v)
	}

	if found == 0 {
		e.Log.Debug().Int("page", pageNum).Int("item", position).Msg("no fields found, past end of list")
		return rec, false, nil
	}
	if missingRequired != "" {
		e.Log.Warn().Int("page", pageNum).Int("item", position).Str("field", missingRequired).
			Msg("required field missing, skipping item")
		return rec, false, nil
	}
	return rec, true, nil
}

// TabularExtractor converts decoded JSON or CSV rows into raw records.
// Nested objects are flattened with dotted keys; arrays are kept as JSON text.
type TabularExtractor struct{}

func (TabularExtractor) Extract(_ context.Context, page *Page) ([]models.RawRecord, error) {
	if page.Rows == nil && page.Document != nil {
		return nil, errors.New("tabular extractor given a document page")
	}
	out := make([]models.RawRecord, 0, len(page.Rows))
	for i, row := range page.Rows {
		rec := models.NewRawRecord(page.Number, i+1)
		if len(page.Columns) > 0 {
			for _, col := range page.Columns {
				setFlat(&rec, col, row[col])
			}
		} else {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				setFlat(&rec, k, row[k])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func setFlat(rec *models.RawRecord, key string, v any) {
	switch x := v.(type) {
	case nil:
		rec.SetMissing(key)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			setFlat(rec, key+"."+k, x[k])
		}
	case string:
		rec.Set(key, x)
	case json.Number:
		rec.Set(key, x.String())
	case bool:
		if x {
			rec.Set(key, "true")
		} else {
			rec.Set(key, "false")
		}
	case float64:
		rec.Set(key, fmt.Sprint(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			rec.Set(key, fmt.Sprint(x))
			return
		}
		rec.Set(key, string(b))
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"AfricaScraper/internal/countries"
	"AfricaScraper/internal/sink"
)

// ErrNoCountryField is returned when a file has none of the country columns.
var ErrNoCountryField = errors.New("no country column")

// FilterStats summarises a filter pass.
type FilterStats struct {
	Field string `json:"field"`
	Input int    `json:"input"`
	Kept  int    `json:"kept"`
}

// FilterCSV keeps the rows of a CSV whose country column names an African country.
// An empty field means the first configured country column present in the header.
func (a *App) FilterCSV(ctx context.Context, r io.Reader, name, field string, w io.Writer) (FilterStats, error) {
	missing := a.Config.Output.MissingValue
	rs, err := sink.DecodeCSV(r, name, missing)
	if err != nil {
		return FilterStats{}, err
	}

	if field == "" {
		f, ok := rs.Schema.FirstOf(a.Config.Countries.Fields...)
		if !ok {
			return FilterStats{}, fmt.Errorf("%w in %s (tried %s)", ErrNoCountryField, name, strings.Join(a.Config.Countries.Fields, ", "))
		}
		field = f
	} else if !rs.Schema.Has(field) {
		return FilterStats{}, fmt.Errorf("%w %q in %s", ErrNoCountryField, field, name)
	}

	filtered := countries.Filter(rs, a.AllowList(), field)
	out := &sink.CSVSink{MissingValue: missing}
	if err := out.Encode(ctx, w, filtered); err != nil {
		return FilterStats{}, err
	}
	return FilterStats{Field: field, Input: rs.Len(), Kept: filtered.Len()}, nil
}

// FilterFile filters the CSV at in into out. An empty out writes "<in>_africa.csv" next to in.
func (a *App) FilterFile(ctx context.Context, in, field, out string) (string, FilterStats, error) {
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + sink.AfricaSuffix + ".csv"
	}
	src, err := os.Open(in)
	if err != nil {
		return "", FilterStats{}, err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return "", FilterStats{}, err
	}
	stats, err := a.FilterCSV(ctx, src, filepath.Base(in), field, dst)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return "", stats, err
	}
	a.log.Info().Str("in", in).Str("out", out).Str("field", stats.Field).Int("rows", stats.Input).Int("kept", stats.Kept).
		Msg("file filtered")
	return out, stats, nil
}

package sink

import (
	"context"
	"fmt"

	"AfricaScraper/internal/database"
	"AfricaScraper/internal/models"
	"AfricaScraper/utils"

	"github.com/rs/zerolog/log"
)

// AfricaSuffix names the filtered sibling table.
const AfricaSuffix = "_africa"

// TableSink replaces a relational table with the result set. When CountryField
// is set it also materializes "<table>_africa" holding only rows whose country
// is one of Spellings, with Aliases (alias -> canonical) rewritten to the canonical name.
type TableSink struct {
	Store        *database.Store
	CountryField string
	Spellings    []string
	Aliases      map[string]string
}

func (s *TableSink) Persist(ctx context.Context, rs *models.ResultSet, dest string) (string, error) {
	if err := checkColumns(rs); err != nil {
		return "", err
	}
	table := utils.TableName(dest)
	if err := s.Store.ReplaceTable(ctx, table, rs); err != nil {
		return "", err
	}
	if s.CountryField == "" || !rs.Schema.Has(s.CountryField) {
		return table, nil
	}

	target := table + AfricaSuffix
	n, err := s.Store.MaterializeFiltered(ctx, table, target, s.CountryField, s.Spellings)
	if err != nil {
		return table, fmt.Errorf("materializing %s: %w", target, err)
	}
	if _, err := s.Store.RewriteValues(ctx, target, s.CountryField, s.Aliases); err != nil {
		return table, err
	}
	log.Info().Str("component", "sink").Str("table", target).Int64("rows", n).Msg("africa table materialized")
	return table, nil
}

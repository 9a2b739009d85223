// Package sink persists result sets as files or relational tables.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"AfricaScraper/internal/models"
)

// Format names an output format.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
	Table   Format = "table"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case CSV, JSON, Parquet, Table:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Ext is the file extension of a file format.
func (f Format) Ext() string {
	return string(f)
}

// ErrNoColumns is returned by every sink for a result set whose schema has no
// fields, such as an empty open-schema download. Nothing is written.
var ErrNoColumns = errors.New("result set has no columns")

func checkColumns(rs *models.ResultSet) error {
	if len(rs.Schema.Fields()) == 0 {
		return fmt.Errorf("%s: %w", rs.Schema.Name, ErrNoColumns)
	}
	return nil
}

// Sink persists a result set to dest and returns where the data ended up.
type Sink interface {
	Persist(ctx context.Context, rs *models.ResultSet, dest string) (string, error)
}

// createFile creates path and its parent directories.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	return os.Create(path)
}

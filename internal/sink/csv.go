package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"AfricaScraper/internal/models"

	"github.com/rs/zerolog/log"
)

// CSVSink writes a header row in schema order followed by one row per record.
type CSVSink struct {
	// MissingValue is written for absent fields.
	MissingValue string
}

func (s *CSVSink) Persist(ctx context.Context, rs *models.ResultSet, dest string) (string, error) {
	if err := checkColumns(rs); err != nil {
		return "", err
	}
	f, err := createFile(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := s.Encode(ctx, f, rs); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	log.Info().Str("component", "sink").Str("path", dest).Int("rows", rs.Len()).Msg("csv written")
	return dest, nil
}

// Encode writes rs as CSV to w.
func (s *CSVSink) Encode(ctx context.Context, w io.Writer, rs *models.ResultSet) error {
	cols := models.ResolveColumns(rs)
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(cols))
	for i, r := range rs.Records() {
		if i%1000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for j, c := range cols {
			row[j] = models.FormatCell(models.Cell(r, c), s.MissingValue)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a delimited file into an open-schema result set.
func ReadCSV(path string) (*models.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCSV(f, strings.TrimSuffix(filepath.Base(path), ".csv"), "")
}

// DecodeCSV reads CSV with a header row. Cells equal to missing, or empty, are treated as absent.
func DecodeCSV(r io.Reader, name, missing string) (*models.ResultSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	schema := models.NewOpenSchema(name)
	schema.Extend(header...)

	var recs []models.Record
	for {
		line, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i >= len(line) {
				break
			}
			v := line[i]
			if v == "" || (missing != "" && v == missing) {
				continue
			}
			values[col] = v
		}
		recs = append(recs, models.NewRecord(values))
	}
	return models.NewResultSet(schema, recs...), nil
}

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"AfricaScraper/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"
)

// columnOrderKey stores the schema column order; parquet groups sort columns by name.
const columnOrderKey = "africa.columns"

const parquetBatch = 1000

// ParquetSink writes one optional column per schema field. Column types are
// resolved for the whole result set before the first row is written.
type ParquetSink struct{}

func (s *ParquetSink) Persist(ctx context.Context, rs *models.ResultSet, dest string) (string, error) {
	if err := checkColumns(rs); err != nil {
		return "", err
	}
	cols := models.ResolveColumns(rs)

	group := parquet.Group{}
	for _, c := range cols {
		if c.Kind == models.DoubleColumn {
			group[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[c.Name] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema(rs.Schema.Name, group)

	index := make(map[string]int, len(cols))
	for i, f := range schema.Fields() {
		index[f.Name()] = i
	}

	order, err := json.Marshal(rs.Schema.Names())
	if err != nil {
		return "", err
	}

	f, err := createFile(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := parquet.NewWriter(f, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(columnOrderKey, string(order)),
	)

	batch := make([]parquet.Row, 0, parquetBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.WriteRows(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range rs.Records() {
		row := make(parquet.Row, len(cols))
		for _, c := range cols {
			idx := index[c.Name]
			switch v := models.Cell(r, c).(type) {
			case nil:
				row[idx] = parquet.NullValue().Level(0, 0, idx)
			case float64:
				row[idx] = parquet.DoubleValue(v).Level(0, 1, idx)
			case string:
				row[idx] = parquet.ByteArrayValue([]byte(v)).Level(0, 1, idx)
			}
		}
		batch = append(batch, row)
		if len(batch) == parquetBatch {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if err := flush(); err != nil {
				return "", fmt.Errorf("writing %s: %w", dest, err)
			}
		}
	}
	if err := flush(); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	log.Info().Str("component", "sink").Str("path", dest).Int("rows", rs.Len()).Int("columns", len(cols)).Msg("parquet written")
	return dest, nil
}

// ReadParquet loads a parquet file back into a result set, restoring the
// original column order when the file records it. Double columns come back as
// number fields.
func ReadParquet(path string) (*models.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("opening parquet %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	kinds := make(map[string]models.FieldType, len(fields))
	for i, fld := range fields {
		names[i] = fld.Name()
		if fld.Type().Kind() == parquet.Double {
			kinds[fld.Name()] = models.Number
		}
	}

	ordered := names
	if raw, ok := pf.Lookup(columnOrderKey); ok {
		var stored []string
		if err := json.Unmarshal([]byte(raw), &stored); err == nil && len(stored) == len(names) {
			ordered = stored
		}
	}

	schemaFields := make([]models.Field, len(ordered))
	for i, n := range ordered {
		schemaFields[i] = models.Field{Name: n, Type: kinds[n]}
	}
	schema := models.NewOpenSchema(strings.TrimSuffix(filepath.Base(path), ".parquet"), schemaFields...)

	var recs []models.Record
	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				values := make(map[string]string, len(row))
				for _, v := range row {
					if v.IsNull() {
						continue
					}
					name := names[v.Column()]
					if v.Kind() == parquet.Double {
						values[name] = strconv.FormatFloat(v.Double(), 'f', -1, 64)
					} else {
						values[name] = string(v.ByteArray())
					}
				}
				recs = append(recs, models.NewRecord(values))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("reading parquet rows: %w", err)
			}
		}
		rows.Close()
	}
	return models.NewResultSet(schema, recs...), nil
}

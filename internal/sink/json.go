package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"AfricaScraper/internal/models"

	"github.com/rs/zerolog/log"
)

// JSONSink writes an array of objects whose keys follow schema order.
// Absent fields are null and double columns are numbers.
type JSONSink struct{}

func (s *JSONSink) Persist(ctx context.Context, rs *models.ResultSet, dest string) (string, error) {
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
	log.Info().Str("component", "sink").Str("path", dest).Int("rows", rs.Len()).Msg("json written")
	return dest, nil
}

func (s *JSONSink) Encode(ctx context.Context, w io.Writer, rs *models.ResultSet) error {
	cols := models.ResolveColumns(rs)
	keys := make([][]byte, len(cols))
	for i, c := range cols {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for i, r := range rs.Records() {
		if i%1000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for j, c := range cols {
			if j > 0 {
				bw.WriteString(", ")
			}
			v, err := json.Marshal(models.Cell(r, c))
			if err != nil {
				return fmt.Errorf("encoding %s: %w", c.Name, err)
			}
			bw.Write(keys[j])
			bw.WriteString(": ")
			bw.Write(v)
		}
		bw.WriteString("}")
	}
	if rs.Len() > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

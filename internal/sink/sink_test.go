package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"AfricaScraper/internal/database"
	"AfricaScraper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet() *models.ResultSet {
	schema := models.NewOpenSchema("indicators",
		models.Field{Name: "name", Required: true},
		models.Field{Name: "link", Type: models.URL},
		models.Field{Name: "count", Type: models.Number},
	)
	schema.Extend("Geographic area", "note")
	return models.NewResultSet(schema,
		models.NewRecord(map[string]string{"name": "Population, total", "link": "https://x.org/1", "count": "1200", "Geographic area": "Kenya"}),
		models.NewRecord(map[string]string{"name": "Say \"hi\"", "count": "7.5", "Geographic area": "Brazil", "note": "multi\nline"}),
		models.NewRecord(map[string]string{"name": "Births", "Geographic area": "Cabo Verde"}),
	)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"csv", "json", "parquet", "table"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(f))
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVSinkHeaderAndMissingValues(t *testing.T) {
	var buf bytes.Buffer
	s := &CSVSink{MissingValue: "N/A"}
	require.NoError(t, s.Encode(context.Background(), &buf, sampleSet()))

	lines := strings.SplitN(buf.String(), "\n", 2)
	assert.Equal(t, "name,link,count,Geographic area,note", lines[0])
	assert.Contains(t, buf.String(), "\"Population, total\",https://x.org/1,1200,Kenya,N/A\n")
	assert.Contains(t, buf.String(), "Births,N/A,N/A,Cabo Verde,N/A\n")
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "indicators.csv")
	s := &CSVSink{MissingValue: "N/A"}
	got, err := s.Persist(context.Background(), sampleSet(), path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	back, err := DecodeCSV(f, "indicators", "N/A")
	require.NoError(t, err)

	require.Equal(t, 3, back.Len())
	assert.Equal(t, []string{"name", "link", "count", "Geographic area", "note"}, back.Schema.Names())
	assert.Equal(t, "Say \"hi\"", back.At(1).Value("name"))
	assert.Equal(t, "multi\nline", back.At(1).Value("note"))
	_, ok := back.At(2).Get("link")
	assert.False(t, ok)
}

func TestDecodeCSVStripsBOMAndToleratesShortRows(t *testing.T) {
	rs, err := DecodeCSV(strings.NewReader("\ufeffReference area,Value\nKenya,3\nGhana\n"), "x", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Reference area", "Value"}, rs.Schema.Names())
	require.Equal(t, 2, rs.Len())
	_, ok := rs.At(1).Get("Value")
	assert.False(t, ok)
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONSink{}).Encode(context.Background(), &buf, sampleSet()))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, 1200.0, rows[0]["count"])
	assert.Nil(t, rows[2]["count"])
	assert.Nil(t, rows[0]["note"])
	assert.Equal(t, "Cabo Verde", rows[2]["Geographic area"])

	// Keys follow schema order.
	first := strings.SplitN(buf.String(), "\n", 3)[1]
	assert.Less(t, strings.Index(first, `"name"`), strings.Index(first, `"link"`))
	assert.Less(t, strings.Index(first, `"count"`), strings.Index(first, `"Geographic area"`))
}

func TestJSONSinkEmpty(t *testing.T) {
	var buf bytes.Buffer
	rs := models.NewResultSet(models.NewSchema("empty", models.Field{Name: "a"}))
	require.NoError(t, (&JSONSink{}).Encode(context.Background(), &buf, rs))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.parquet")
	rs := sampleSet()

	_, err := (&ParquetSink{}).Persist(context.Background(), rs, path)
	require.NoError(t, err)

	back, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, rs.Schema.Names(), back.Schema.Names())
	require.Equal(t, rs.Len(), back.Len())

	for i, want := range rs.Records() {
		got := back.At(i)
		for _, name := range rs.Schema.Names() {
			wv, wok := want.Get(name)
			gv, gok := got.Get(name)
			assert.Equal(t, wok, gok, "row %d field %s presence", i, name)
			assert.Equal(t, wv, gv, "row %d field %s", i, name)
		}
	}

	f, ok := back.Schema.Field("count")
	require.True(t, ok)
	assert.Equal(t, models.Number, f.Type)
}

func TestParquetKeepsInferredCodesVerbatim(t *testing.T) {
	schema := models.NewOpenSchema("areas")
	schema.Extend("M49", "Population")
	rs := models.NewResultSet(schema,
		models.NewRecord(map[string]string{"M49": "012", "Population": "1,234"}),
		models.NewRecord(map[string]string{"M49": "404", "Population": "5.50"}),
	)
	path := filepath.Join(t.TempDir(), "areas.parquet")
	_, err := (&ParquetSink{}).Persist(context.Background(), rs, path)
	require.NoError(t, err)

	back, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, "012", back.At(0).Value("M49"))
	assert.Equal(t, "1,234", back.At(0).Value("Population"))
	assert.Equal(t, "5.50", back.At(1).Value("Population"))
}

func TestSinksRejectResultSetWithoutColumns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := database.Open(ctx, "sqlite", filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	defer store.Close()

	rs := models.NewResultSet(models.NewOpenSchema("unicef_pt"))
	sinks := map[string]Sink{
		"csv":     &CSVSink{},
		"json":    &JSONSink{},
		"parquet": &ParquetSink{},
		"table":   &TableSink{Store: store},
	}
	for name, s := range sinks {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(dir, "empty."+name)
			_, err := s.Persist(ctx, rs, dest)
			assert.ErrorIs(t, err, ErrNoColumns)
			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr), "no artifact for %s", name)
		})
	}
}

func TestParquetMixedNumberColumnFallsBackToString(t *testing.T) {
	schema := models.NewSchema("mixed", models.Field{Name: "value", Type: models.Number})
	rs := models.NewResultSet(schema,
		models.NewRecord(map[string]string{"value": "12"}),
		models.NewRecord(map[string]string{"value": "<5"}),
	)
	path := filepath.Join(t.TempDir(), "mixed.parquet")
	_, err := (&ParquetSink{}).Persist(context.Background(), rs, path)
	require.NoError(t, err)

	back, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, "12", back.At(0).Value("value"))
	assert.Equal(t, "<5", back.At(1).Value("value"))
	f, _ := back.Schema.Field("value")
	assert.Equal(t, models.Text, f.Type)
}

func TestTableSinkWritesAfricaSibling(t *testing.T) {
	ctx := context.Background()
	store, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	defer store.Close()

	rs := sampleSet()
	rs = models.NewResultSet(rs.Schema, append(rs.Records(),
		models.NewRecord(map[string]string{"name": "Deaths", "Geographic area": "Cape Verde"}))...)

	s := &TableSink{
		Store:        store,
		CountryField: "Geographic area",
		Spellings:    []string{"Kenya", "Cabo Verde", "Cape Verde"},
		Aliases:      map[string]string{"Cape Verde": "Cabo Verde"},
	}
	table, err := s.Persist(ctx, rs, "UN Indicators")
	require.NoError(t, err)
	assert.Equal(t, "un_indicators", table)

	n, err := store.CountRows(ctx, "un_indicators_africa")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var capeVerde int
	require.NoError(t, store.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "un_indicators_africa" WHERE "Geographic area" = 'Cabo Verde'`).Scan(&capeVerde))
	assert.Equal(t, 2, capeVerde)
}

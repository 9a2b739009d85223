package countries

import (
	"testing"

	"AfricaScraper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultSet(field string, values ...string) *models.ResultSet {
	schema := models.NewSchema("t", models.Field{Name: field}, models.Field{Name: "row"})
	var recs []models.Record
	for i, v := range values {
		recs = append(recs, models.NewRecord(map[string]string{field: v, "row": string(rune('a' + i))}))
	}
	return models.NewResultSet(schema, recs...)
}

func TestFilterKeepsAfricanRowsInOrder(t *testing.T) {
	rs := resultSet("Geographic area", "Kenya", "France", "Ghana", "Kenya")

	out := Filter(rs, Africa(nil), "Geographic area")

	require.Equal(t, 3, out.Len())
	var got, rows []string
	for _, r := range out.Records() {
		got = append(got, r.Value("Geographic area"))
		rows = append(rows, r.Value("row"))
	}
	assert.Equal(t, []string{"Kenya", "Ghana", "Kenya"}, got)
	assert.Equal(t, []string{"a", "c", "d"}, rows)
	assert.Equal(t, 4, rs.Len(), "input untouched")
}

func TestFilterResolvesAliases(t *testing.T) {
	rs := resultSet("Country", "Cape Verde", "Ivory Coast", "Swaziland", "Tanzania", "Congo, Dem. Rep.", "Niger ", "Nigeria")
	out := Filter(rs, Africa(nil), "Country")
	assert.Equal(t, rs.Len(), out.Len())
}

func TestFilterWritesCanonicalSpelling(t *testing.T) {
	rs := resultSet("Country", "Ivory Coast", "Côte d'Ivoire", "Cape Verde", "Niger ")
	out := Filter(rs, Africa(nil), "Country")

	var got, rows []string
	for _, r := range out.Records() {
		got = append(got, r.Value("Country"))
		rows = append(rows, r.Value("row"))
	}
	assert.Equal(t, []string{"Côte d'Ivoire", "Côte d'Ivoire", "Cabo Verde", "Niger"}, got)
	assert.Equal(t, []string{"a", "b", "c", "d"}, rows)
	assert.Equal(t, "Ivory Coast", rs.At(0).Value("Country"), "input untouched")
}

func TestFilterDropsRecordsWithoutField(t *testing.T) {
	schema := models.NewSchema("t", models.Field{Name: "Country"})
	rs := models.NewResultSet(schema,
		models.NewRecord(map[string]string{}),
		models.NewRecord(map[string]string{"Country": "Mali"}),
	)
	out := Filter(rs, Africa(nil), "Country")
	assert.Equal(t, 1, out.Len())
}

// Filtering never grows a set and every survivor is a member.
func TestFilterIsSubset(t *testing.T) {
	allow := Africa(nil)
	rs := resultSet("c", "Brazil", "Egypt", "Egypt, Arab Rep.", "", "Sudan", "Sudan (former)", "Eswatini", "Kenya ", "kenya")
	out := Filter(rs, allow, "c")
	assert.LessOrEqual(t, out.Len(), rs.Len())
	for _, r := range out.Records() {
		assert.True(t, allow.Contains(r.Value("c")))
	}
	assert.Equal(t, 5, out.Len())
}

func TestAllowList(t *testing.T) {
	l := Africa(map[string]string{"Mauritanie": "Mauritania", "Atlantis": "Atlantis"})
	assert.Len(t, l.Names(), 54)

	c, ok := l.Canonical("Mauritanie")
	assert.True(t, ok)
	assert.Equal(t, "Mauritania", c)
	assert.False(t, l.Contains("Atlantis"))
	assert.False(t, l.Contains("Réunion"))
	assert.Contains(t, l.Spellings(), "Ivory Coast")
	assert.Contains(t, l.Spellings(), "Côte d'Ivoire")
	assert.Equal(t, "Côte d'Ivoire", l.Aliases()["Ivory Coast"])
	assert.Equal(t, "Mauritania", l.Aliases()["Mauritanie"])
}

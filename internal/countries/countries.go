// Package countries holds the African country allow-list and the filter applied to result sets.
package countries

import (
	"sort"
	"strings"

	"AfricaScraper/internal/models"
)

// ListVersion identifies the canonical list below. Bump it when spellings change.
const ListVersion = "un-m49-2024"

// canonical uses UN M49 / UNICEF spellings.
var canonical = []string{
	"Algeria", "Angola", "Benin", "Botswana", "Burkina Faso", "Burundi",
	"Cabo Verde", "Cameroon", "Central African Republic", "Chad", "Comoros",
	"Congo", "Democratic Republic of the Congo", "Côte d'Ivoire", "Djibouti",
	"Egypt", "Equatorial Guinea", "Eritrea", "Eswatini", "Ethiopia", "Gabon",
	"Gambia", "Ghana", "Guinea", "Guinea-Bissau", "Kenya", "Lesotho", "Liberia",
	"Libya", "Madagascar", "Malawi", "Mali", "Mauritania", "Mauritius",
	"Morocco", "Mozambique", "Namibia", "Niger", "Nigeria", "Rwanda",
	"Sao Tome and Principe", "Senegal", "Seychelles", "Sierra Leone", "Somalia",
	"South Africa", "South Sudan", "Sudan", "Togo", "Tunisia", "Uganda",
	"United Republic of Tanzania", "Zambia", "Zimbabwe",
}

// defaultAliases maps spellings used by other publishers to the canonical name.
var defaultAliases = map[string]string{
	"Cape Verde":                   "Cabo Verde",
	"Ivory Coast":                  "Côte d'Ivoire",
	"Cote d'Ivoire":                "Côte d'Ivoire",
	"Côte d’Ivoire":                "Côte d'Ivoire",
	"Swaziland":                    "Eswatini",
	"Kingdom of Eswatini":          "Eswatini",
	"Tanzania":                     "United Republic of Tanzania",
	"Tanzania, United Republic of": "United Republic of Tanzania",
	"DR Congo":                     "Democratic Republic of the Congo",
	"Congo, Dem. Rep.":             "Democratic Republic of the Congo",
	"Congo, Rep.":                  "Congo",
	"Republic of the Congo":        "Congo",
	"Egypt, Arab Rep.":             "Egypt",
	"Gambia, The":                  "Gambia",
	"The Gambia":                   "Gambia",
	"São Tomé and Príncipe":        "Sao Tome and Principe",
	"Libyan Arab Jamahiriya":       "Libya",
}

// AllowList is an immutable set of canonical country names plus aliases.
type AllowList struct {
	names   map[string]struct{}
	aliases map[string]string
}

// Africa returns the default list, extended with extra aliases (alias -> canonical).
// Extra aliases pointing at unknown names are ignored.
func Africa(extra map[string]string) *AllowList {
	l := &AllowList{names: make(map[string]struct{}, len(canonical)), aliases: map[string]string{}}
	for _, n := range canonical {
		l.names[n] = struct{}{}
	}
	for a, c := range defaultAliases {
		l.aliases[a] = c
	}
	for a, c := range extra {
		if _, ok := l.names[c]; ok {
			l.aliases[a] = c
		}
	}
	return l
}

// Canonical resolves name to its canonical spelling. ok is false for non-members.
func (l *AllowList) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if c, ok := l.aliases[name]; ok {
		name = c
	}
	_, ok := l.names[name]
	return name, ok
}

// Contains reports membership after alias resolution. Matching is exact otherwise.
func (l *AllowList) Contains(name string) bool {
	_, ok := l.Canonical(name)
	return ok
}

// Names returns the canonical names, sorted.
func (l *AllowList) Names() []string {
	out := make([]string, 0, len(l.names))
	for n := range l.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Spellings returns every accepted spelling, canonical names and aliases, sorted.
func (l *AllowList) Spellings() []string {
	out := l.Names()
	for a := range l.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Aliases returns a copy of the alias map (alias -> canonical name).
func (l *AllowList) Aliases() map[string]string {
	out := make(map[string]string, len(l.aliases))
	for a, c := range l.aliases {
		out[a] = c
	}
	return out
}

// Filter keeps the records whose field value is an allowed country, preserving order.
// Survivors carry the canonical spelling in field. Records without the field are
// dropped. rs is not modified.
func Filter(rs *models.ResultSet, allow *AllowList, field string) *models.ResultSet {
	var kept []models.Record
	for _, r := range rs.Records() {
		v, ok := r.Get(field)
		if !ok {
			continue
		}
		c, ok := allow.Canonical(v)
		if !ok {
			continue
		}
		if c != v {
			r = r.With(field, c)
		}
		kept = append(kept, r)
	}
	return models.NewResultSet(rs.Schema, kept...)
}

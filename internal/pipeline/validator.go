package pipeline

import (
	"net/url"
	"strings"

	"AfricaScraper/internal/models"
	"AfricaScraper/utils"
)

// Validator checks raw records against a schema. It has no side effects.
type Validator struct {
	Schema *models.Schema
}

func NewValidator(schema *models.Schema) *Validator {
	return &Validator{Schema: schema}
}

// Validate returns the validated record, or a *Rejection naming the first violated rule.
// Fields the schema does not know are dropped.
func (v *Validator) Validate(raw models.RawRecord) (models.Record, error) {
	values := make(map[string]string, len(raw.Values))
	for _, f := range v.Schema.Fields() {
		s, ok := raw.Get(f.Name)
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			if f.Required {
				return models.Record{}, &Rejection{Reason: MissingRequiredField, Field: f.Name}
			}
			continue
		}

		switch f.Type {
		case models.URL:
			if !isHTTPURL(s) {
				return models.Record{}, &Rejection{Reason: MalformedField, Field: f.Name, Rule: "url_scheme"}
			}
		case models.Date:
			if !utils.HasYear(s) {
				return models.Record{}, &Rejection{Reason: MalformedField, Field: f.Name, Rule: "date_year"}
			}
		case models.Category:
			if !contains(f.Values, s) {
				return models.Record{}, &Rejection{Reason: MalformedField, Field: f.Name, Rule: "category"}
			}
		case models.Number:
			n, ok := utils.NormalizeNumber(s)
			if !ok {
				return models.Record{}, &Rejection{Reason: MalformedField, Field: f.Name, Rule: "number"}
			}
			s = n
		}
		values[f.Name] = s
	}
	return models.NewRecord(values), nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

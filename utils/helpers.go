package utils

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// UniqueStrings returns slice without duplicates, keeping first occurrences in order.
func UniqueStrings(slice []string) []string {
	keys := make(map[string]bool)
	uniqueSlice := []string{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			uniqueSlice = append(uniqueSlice, entry)
		}
	}
	return uniqueSlice
}

// slugRegex matches any character that is NOT a letter, a number, or a hyphen.
var slugRegex = regexp.MustCompile(`[^\p{L}\p{N}-]+`)

// CreateSlug generates a URL and file friendly slug from a title.
func CreateSlug(title string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(title), " ", "-")
	slug = slugRegex.ReplaceAllString(slug, "")
	return strings.ToLower(slug)
}

var identRegex = regexp.MustCompile(`[^a-z0-9]+`)

// TableName turns an arbitrary label into a lower_snake SQL identifier.
func TableName(label string) string {
	name := identRegex.ReplaceAllString(strings.ToLower(label), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "dataset"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// TimestampedName builds "<base>_YYYYMMDD_HHMMSS.<ext>".
func TimestampedName(base, ext string, at time.Time) string {
	return CreateSlug(base) + "_" + at.Format("20060102_150405") + "." + ext
}

// ResolveURL resolves href against base. Unparsable input is returned unchanged.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

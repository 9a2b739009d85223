package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"CME", "NUTRITION", "HIV_AIDS"},
		UniqueStrings([]string{"CME", "NUTRITION", "CME", "HIV_AIDS", "NUTRITION"}))
	assert.Empty(t, UniqueStrings(nil))
}

func TestCreateSlug(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Spaces", "UN Population", "un-population"},
		{"Punctuation", "World Bank (Databank)!", "world-bank-databank"},
		{"Accents Kept", "Côte d'Ivoire", "côte-divoire"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CreateSlug(tc.input))
		})
	}
}

func TestTableName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"unicef-CME", "unicef_cme"},
		{"UNICEF,NUTRITION,1.0", "unicef_nutrition_1_0"},
		{"2024 data", "t_2024_data"},
		{"***", "dataset"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, TableName(tc.input))
		})
	}
}

func TestTimestampedName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "worldbank_20240309_140507.csv", TimestampedName("worldbank", "csv", at))
}

func TestResolveURL(t *testing.T) {
	base := "https://open.africa/dataset/?page=2"
	assert.Equal(t, "https://open.africa/dataset/kenya-census", ResolveURL(base, "/dataset/kenya-census"))
	assert.Equal(t, "https://example.org/x", ResolveURL(base, "https://example.org/x"))
	assert.Equal(t, "", ResolveURL(base, "  "))
	assert.Equal(t, "relative/path", ResolveURL("", "relative/path"))
}

package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

func record(label string, m time.Month, d int) model.EventRecord {
	return model.EventRecord{Label: label, Range: model.Single(model.Date(2024, m, d))}
}

func penrice() *Normalizer {
	return New(Options{
		TitleCaseWords: []string{"term", "holiday", "half", "INSET"},
		Prefix:         "Penrice: ",
		SeasonNames:    true,
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		rec  model.EventRecord
		want string
	}{
		{"prefix and title case", record("term 1", 9, 2), "Penrice: Term 1"},
		{"upper-case canonical word", record("inset day", 9, 2), "Penrice: INSET day"},
		{"whitespace collapsed", record("  Term   2 ", 1, 6), "Penrice: Term 2"},
		{"existing prefix kept once", record("Penrice: Term 3", 4, 22), "Penrice: Term 3"},
		{"half term qualified by season", record("half term", 10, 28), "Penrice: Autumn Half Term"},
		{"qualified half term left alone", record("Spring Half Term", 10, 28), "Penrice: Spring Half Term"},
		{"half term outside a season", record("Half Term", 9, 2), "Penrice: Half Term"},
		{"words inside other words untouched", record("Termly update", 9, 2), "Penrice: Termly update"},
		{"empty label", record("", 9, 2), "Penrice:"},
	}

	n := penrice()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.rec)
			assert.Equal(t, tt.want, got.Label)
			assert.Equal(t, tt.rec.Range, got.Range)
			assert.Equal(t, tt.rec.Origin, got.Origin)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	labels := []string{
		"term 1",
		"half term",
		"Autumn half TERM",
		"Penrice: Penrice: Term",
		"INSET Days",
		"  Christmas   Holidays ",
		"",
	}

	variants := map[string]*Normalizer{
		"full":      penrice(),
		"no prefix": New(Options{TitleCaseWords: []string{"term"}}),
		"no words":  New(Options{Prefix: "X "}),
		"bare name": New(Options{Prefix: "Penrice", TitleCaseWords: []string{"term"}}),
		"seasons":   New(Options{SeasonNames: true}),
	}

	for name, n := range variants {
		for _, label := range labels {
			rec := record(label, 10, 28)
			once := n.Normalize(rec)
			twice := n.Normalize(once)
			assert.Equal(t, once, twice, "%s: %q", name, label)
		}
	}
}

func TestNormalizePrefixSeparator(t *testing.T) {
	tests := []struct {
		prefix string
		label  string
		want   string
	}{
		{"Penrice", "Term 1", "Penrice Term 1"},
		{"Penrice", "Penrice Term 1", "Penrice Term 1"},
		{"Penrice:", "Term 1", "Penrice: Term 1"},
		{"Penrice: ", "Term 1", "Penrice: Term 1"},
		{"X", "Xmas", "X Xmas"},
		{"X ", "Xmas", "X Xmas"},
		{"Penrice", "", "Penrice"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.label, func(t *testing.T) {
			n := New(Options{Prefix: tt.prefix})
			got := n.Normalize(record(tt.label, 9, 2))
			assert.Equal(t, tt.want, got.Label)
			assert.Equal(t, got, n.Normalize(got))
		})
	}
}

func TestNormalizeWithoutOptions(t *testing.T) {
	n := New(Options{})
	assert.Equal(t, "half term", n.Normalize(record(" half   term ", 10, 28)).Label)
}

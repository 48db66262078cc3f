package datetext

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// monthNames maps every accepted spelling (lower case) to its month.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdayNames = []string{
	"monday", "mon",
	"tuesday", "tues", "tue",
	"wednesday", "weds", "wed",
	"thursday", "thurs", "thur", "thu",
	"friday", "fri",
	"saturday", "sat",
	"sunday", "sun",
}

// Token rules. Each is a regexp fragment with named groups, combined into
// exprPattern below. They are kept separate so that each can be matched on
// its own in tests.
var (
	weekdayRule = `(?P<weekday>` + alternation(weekdayNames) + `)\b\.?,?`
	dayRule     = `(?P<day>\d{1,2})(?P<suffix>st|nd|rd|th)?\b`
	monthRule   = `(?P<month>` + alternation(monthKeys()) + `)\b\.?`
	yearRule    = `(?P<year>\d{4})\b`

	separatorRule   = `(?:-+|–|—|to|until|till)`
	conjunctionRule = `(?:,\s*(?:and|&)|,|&|and|\+)`
)

var (
	// exprPattern matches one date expression:
	//   [weekday[,]] day[suffix] [[of] month[.]] [[,] year]
	exprPattern = regexp.MustCompile(`(?i)(?:\b` + weekdayRule + `\s+)?\b` + dayRule +
		`(?:\s+(?:of\s+)?` + monthRule + `)?(?:,?\s+` + yearRule + `)?`)

	separatorPattern   = regexp.MustCompile(`(?i)^\s*` + separatorRule + `\s*$`)
	conjunctionPattern = regexp.MustCompile(`(?i)^\s*` + conjunctionRule + `\s*$`)

	// suspectPattern finds "5th Janury 2025" style tokens: an ordinal day
	// and a year around a word that should have been a month.
	suspectPattern = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)\s+([a-z]+)\.?,?\s+\d{4}\b`)

	// trailingNotePattern strips the "Begins at 3:00pm" style note some
	// pages append to early-finish days.
	trailingNotePattern = regexp.MustCompile(`(?i)\s*\(?\s*begins at \d{1,2}[:.]\d{2}\s*(?:am|pm)?\.?\s*\)?$`)
)

func monthKeys() []string {
	keys := make([]string, 0, len(monthNames))
	for k := range monthNames {
		keys = append(keys, k)
	}
	return keys
}

// alternation joins words longest first so that "september" wins over "sep".
func alternation(words []string) string {
	sorted := append([]string(nil), words...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	for i, w := range sorted {
		sorted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(sorted, "|")
}

// lookupMonth resolves a month token, ignoring case and a trailing dot.
func lookupMonth(s string) (time.Month, bool) {
	m, ok := monthNames[strings.TrimSuffix(strings.ToLower(s), ".")]
	return m, ok
}

// maxMonthTypo is the edit distance up to which a word counts as a misspelt
// month name.
const maxMonthTypo = 2

// looksLikeMonth reports whether word is within maxMonthTypo edits of a full
// month name. Words shorter than four letters never qualify.
func looksLikeMonth(word string) bool {
	word = strings.ToLower(strings.TrimSuffix(word, "."))
	if len(word) < 4 || isWeekday(word) {
		return false
	}
	for m := time.January; m <= time.December; m++ {
		if levenshtein.ComputeDistance(word, strings.ToLower(m.String())) <= maxMonthTypo {
			return true
		}
	}
	return false
}

func isWeekday(s string) bool {
	s = strings.ToLower(s)
	for _, w := range weekdayNames {
		if w == s {
			return true
		}
	}
	return false
}

type link int

const (
	linkNone link = iota
	linkRange
	linkList
)

// classifyGap decides how the text between two date expressions joins them.
func classifyGap(gap string) link {
	switch {
	case separatorPattern.MatchString(gap):
		return linkRange
	case conjunctionPattern.MatchString(gap):
		return linkList
	default:
		return linkNone
	}
}

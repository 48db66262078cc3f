// Package normalize rewrites event labels into their final summary form.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/evenwebb/penrice-calendar-scraper/internal/holiday"
	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

// Options configures a Normalizer.
type Options struct {
	// TitleCaseWords are matched case-insensitively as whole words and
	// replaced by their canonical spelling. A word that already contains an
	// upper-case letter ("INSET") is its own canonical spelling; any other
	// word is title-cased ("term" -> "Term").
	TitleCaseWords []string

	// Prefix is prepended to every label that does not already start with it.
	Prefix string

	// SeasonNames qualifies a bare "Half Term" with its season by start
	// month ("Autumn Half Term").
	SeasonNames bool
}

// Normalizer applies Options to EventRecords. It is safe for concurrent use.
type Normalizer struct {
	opts      Options
	canonical map[string]string
	words     *regexp.Regexp
}

var halfTermPattern = regexp.MustCompile(`(?i)(^|\s)half term\b`)

// New builds a Normalizer.
func New(opts Options) *Normalizer {
	n := &Normalizer{opts: opts, canonical: make(map[string]string)}

	title := cases.Title(language.English)
	quoted := make([]string, 0, len(opts.TitleCaseWords))
	for _, w := range opts.TitleCaseWords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := n.canonical[key]; dup {
			continue
		}
		if hasUpper(w) {
			n.canonical[key] = w
		} else {
			n.canonical[key] = title.String(w)
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) > 0 {
		n.words = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return n
}

// Normalize returns rec with its label rewritten. Only the label changes, and
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(rec model.EventRecord) model.EventRecord {
	label := collapse(rec.Label)

	// The prefix is removed up front and added back last, so a label that
	// already carries it is treated exactly like one that does not.
	prefix := collapse(n.opts.Prefix)
	label = stripPrefix(label, prefix)

	if n.opts.SeasonNames {
		label = qualifyHalfTerm(label, rec.Range)
	}

	if n.words != nil {
		label = n.words.ReplaceAllStringFunc(label, func(m string) string {
			if c, ok := n.canonical[strings.ToLower(m)]; ok {
				return c
			}
			return m
		})
	}

	if prefix != "" {
		label = collapse(prefix + " " + label)
	}

	out := rec
	out.Label = label
	return out
}

// qualifyHalfTerm turns a bare "Half Term" into "<Season> Half Term". Labels
// that already name a season are left alone.
func qualifyHalfTerm(label string, r model.DateRange) string {
	season := holiday.Season(r.Start.Month())
	if season == "" {
		return label
	}
	loc := halfTermPattern.FindStringSubmatchIndex(label)
	if loc == nil {
		return label
	}
	// loc[3] is the end of the leading whitespace group.
	before := strings.TrimSpace(label[:loc[3]])
	if fields := strings.Fields(before); len(fields) > 0 && isSeason(fields[len(fields)-1]) {
		return label
	}
	return collapse(label[:loc[3]] + season + " " + label[loc[3]:])
}

// stripPrefix removes prefix from the start of label. The prefix only
// matches as whole words, so "X" is not stripped from "Xmas".
func stripPrefix(label, prefix string) string {
	if prefix == "" || !strings.HasPrefix(label, prefix) {
		return label
	}
	rest := label[len(prefix):]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return label
	}
	return collapse(rest)
}

func isSeason(word string) bool {
	switch strings.ToLower(word) {
	case "spring", "summer", "autumn", "winter", "february", "may", "october":
		return true
	}
	return false
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

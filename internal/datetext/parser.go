// Package datetext turns one line of free-form term-dates text into labelled
// date ranges.
//
// A line is scanned for date expressions ("Mon 2nd Sept 2024", "3rd", "5 Jan").
// The text between two neighbouring expressions decides how they combine:
// a separator ("-", "–", "to") makes a range, a conjunction ("&", "and", ",")
// makes a list of discrete days, anything else leaves them independent.
// Ranges bind tighter than lists, so "1st–3rd Jan & 5th Jan" is one three-day
// range plus one single day.
package datetext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

// ErrMalformedDate is wrapped by every error Parse returns. It marks a line
// that looked like it carried a date but could not be turned into one.
var ErrMalformedDate = errors.New("malformed date")

// DefaultRollover is how far in the past a year-less date may fall before it
// is moved to the following year.
const DefaultRollover = 180 * 24 * time.Hour

// Parser extracts EventRecords from text lines. The zero value is usable and
// infers missing years relative to the wall clock.
type Parser struct {
	// Now is the reference time for year inference. Zero means time.Now().
	Now time.Time
	// Rollover overrides DefaultRollover when positive.
	Rollover time.Duration
}

// NewParser returns a Parser that infers years relative to now.
func NewParser(now time.Time, rollover time.Duration) *Parser {
	return &Parser{Now: now, Rollover: rollover}
}

// expr is one matched date expression. month and year are zero until known.
type expr struct {
	start, end int

	day          int
	month        time.Month
	year         int
	yearExplicit bool
}

// unit is either a single expression (from == to) or a range of two.
type unit struct {
	from, to int
	used     bool
}

// Parse returns the events found on line. A line without any date yields
// (nil, nil). A line with a malformed date yields nil and an error wrapping
// ErrMalformedDate; the caller is expected to log it and move on.
func (p *Parser) Parse(line string) ([]model.EventRecord, error) {
	if err := checkSuspectMonths(line); err != nil {
		return nil, err
	}

	exprs, err := scan(line)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, nil
	}

	links := make([]link, len(exprs)-1)
	for i := range links {
		links[i] = classifyGap(line[exprs[i].end:exprs[i+1].start])
	}

	units := groupUnits(exprs, links)

	// Resolve right to left so a unit can borrow month and year from the
	// list member that follows it ("2nd & 3rd Sept 2024").
	for u := len(units) - 1; u >= 0; u-- {
		var next *unit
		if u+1 < len(units) && links[units[u].to] == linkList && units[u+1].used {
			next = &units[u+1]
		}
		p.resolve(exprs, &units[u], next)
	}

	ranges := make([]model.DateRange, 0, len(units))
	for _, un := range units {
		if !un.used {
			continue
		}
		r, err := toRange(exprs[un.from], exprs[un.to])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedDate, line, err)
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, nil
	}

	label := cleanLabel(stripUsed(line, exprs, units, links))

	out := make([]model.EventRecord, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, model.EventRecord{Label: label, Range: r, Origin: model.OriginScraped})
	}
	return out, nil
}

// checkSuspectMonths rejects ordinal-day + word + year tokens whose word is a
// near miss for a month name ("5th Janury 2025"). Other words between a day
// and a year ("21st anniversary 2024") are ordinary text.
func checkSuspectMonths(line string) error {
	for _, m := range suspectPattern.FindAllStringSubmatch(line, -1) {
		word := m[1]
		if _, ok := lookupMonth(word); ok {
			continue
		}
		if !looksLikeMonth(word) {
			continue
		}
		return fmt.Errorf("%w: %q: unrecognised month %q", ErrMalformedDate, line, word)
	}
	return nil
}

func scan(line string) ([]expr, error) {
	idx := exprPattern.FindAllStringSubmatchIndex(line, -1)
	if len(idx) == 0 {
		return nil, nil
	}

	weekdayGroup := exprPattern.SubexpIndex("weekday")
	dayGroup := exprPattern.SubexpIndex("day")
	suffixGroup := exprPattern.SubexpIndex("suffix")
	monthGroup := exprPattern.SubexpIndex("month")
	yearGroup := exprPattern.SubexpIndex("year")

	group := func(m []int, g int) string {
		if m[2*g] < 0 {
			return ""
		}
		return line[m[2*g]:m[2*g+1]]
	}

	exprs := make([]expr, 0, len(idx))
	for _, m := range idx {
		// A bare number with neither month, ordinal suffix nor weekday is
		// ordinary text ("Term 1", "Year 7") and never part of a date.
		if group(m, monthGroup) == "" && group(m, suffixGroup) == "" && group(m, weekdayGroup) == "" {
			continue
		}

		e := expr{start: m[0], end: m[1]}

		day, err := strconv.Atoi(group(m, dayGroup))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedDate, line, err)
		}
		e.day = day

		if s := group(m, monthGroup); s != "" {
			month, ok := lookupMonth(s)
			if !ok {
				return nil, fmt.Errorf("%w: %q: unrecognised month %q", ErrMalformedDate, line, s)
			}
			e.month = month
		}

		if s := group(m, yearGroup); s != "" {
			year, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrMalformedDate, line, err)
			}
			e.year = year
			e.yearExplicit = true
		}

		exprs = append(exprs, e)
	}
	return exprs, nil
}

// groupUnits pairs range-linked expressions first; every other expression
// becomes a unit of its own.
func groupUnits(exprs []expr, links []link) []unit {
	units := make([]unit, 0, len(exprs))
	for i := 0; i < len(exprs); i++ {
		if i+1 < len(exprs) && links[i] == linkRange {
			units = append(units, unit{from: i, to: i + 1, used: true})
			i++
			continue
		}
		units = append(units, unit{from: i, to: i, used: true})
	}
	return units
}

// resolve fills in month and year for the expressions of u. It marks u as
// unused when no month can be found, which is how stray numbers such as
// "Term 1" stay part of the label.
func (p *Parser) resolve(exprs []expr, u *unit, next *unit) {
	first, last := &exprs[u.from], &exprs[u.to]

	// Months: within the range first, then from the following list member.
	if first.month == 0 {
		first.month = last.month
	}
	if first.month == 0 && next != nil {
		first.month = exprs[next.from].month
		if !first.yearExplicit && exprs[next.from].yearExplicit {
			first.year = exprs[next.from].year
			first.yearExplicit = true
		}
	}
	if last.month == 0 {
		last.month = first.month
	}
	if first.month == 0 {
		u.used = false
		return
	}

	// Years: explicit years spread across the range, then from the following
	// list member, and only then inferred from the reference time.
	if !first.yearExplicit && !last.yearExplicit && next != nil && exprs[next.from].yearExplicit {
		first.year = exprs[next.from].year
		first.yearExplicit = true
	}

	switch {
	case first.year == 0 && last.year == 0:
		last.year = p.inferYear(last.month, last.day)
		fallthrough
	case first.year == 0:
		first.year = last.year
		first.yearExplicit = last.yearExplicit
		if u.from != u.to && dateOf(*first).After(dateOf(*last)) {
			first.year--
		}
	case last.year == 0:
		last.year = first.year
		last.yearExplicit = first.yearExplicit
		if dateOf(*last).Before(dateOf(*first)) {
			last.year++
		}
	}
}

func (p *Parser) inferYear(month time.Month, day int) int {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	rollover := p.Rollover
	if rollover <= 0 {
		rollover = DefaultRollover
	}

	today := model.Truncate(now)
	candidate := model.Date(today.Year(), month, day)
	if today.Sub(candidate) > rollover {
		return today.Year() + 1
	}
	return today.Year()
}

// dateOf is the calendar date of e without validation.
func dateOf(e expr) time.Time {
	return model.Date(e.year, e.month, e.day)
}

func validDate(e expr) (time.Time, error) {
	if e.day < 1 || e.day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", e.day)
	}
	d := dateOf(e)
	if d.Day() != e.day || d.Month() != e.month {
		return time.Time{}, fmt.Errorf("%s has no day %d in %d", e.month, e.day, e.year)
	}
	return d, nil
}

func toRange(a, b expr) (model.DateRange, error) {
	start, err := validDate(a)
	if err != nil {
		return model.DateRange{}, err
	}
	end, err := validDate(b)
	if err != nil {
		return model.DateRange{}, err
	}
	r := model.DateRange{Start: start, End: end}
	if !r.Valid() {
		return model.DateRange{}, fmt.Errorf("range %s ends before it starts", r)
	}
	return r, nil
}

// stripUsed removes the text of used units, and of the conjunctions between
// neighbouring used units, from line.
func stripUsed(line string, exprs []expr, units []unit, links []link) string {
	var b strings.Builder
	pos := 0
	for i, u := range units {
		if !u.used {
			continue
		}
		start, end := exprs[u.from].start, exprs[u.to].end
		if i+1 < len(units) && units[i+1].used && links[u.to] == linkList {
			end = exprs[units[i+1].from].start
		}
		if start < pos {
			start = pos
		}
		b.WriteString(line[pos:start])
		b.WriteString(" ")
		pos = end
	}
	b.WriteString(line[pos:])
	return b.String()
}

func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = trailingNotePattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "()", "")
	s = strings.Trim(s, " -–—:,;")
	return strings.Join(strings.Fields(s), " ")
}

package holiday

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

var schoolWeek = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// weekdays lists the Monday to Friday dates in r, inclusive.
func weekdays(r model.DateRange) ([]time.Time, error) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Byweekday: schoolWeek,
		Dtstart:   model.Truncate(r.Start),
		Until:     model.Truncate(r.End),
	})
	if err != nil {
		return nil, err
	}
	return rule.All(), nil
}

// SchoolDays counts the Monday to Friday dates in r.
func SchoolDays(r model.DateRange) int {
	if !r.Valid() {
		return 0
	}
	days, err := weekdays(r)
	if err != nil {
		appLog.Error("holiday: weekday rule failed", err, "range", r.String())
		return 0
	}
	return len(days)
}

// ExpandHalfTerm widens a single-day "Half Term" record to the Monday to
// Friday week containing it. Records whose source line announces an early
// finish ("Begins at 3:00pm") mark one afternoon only and are left alone, as
// is everything that is not a single-day half term.
func ExpandHalfTerm(rec model.EventRecord, line string) model.EventRecord {
	if rec.Range.Days() != 1 || !containsFold(rec.Label, "half term") {
		return rec
	}
	if containsFold(line, "begins at 3:00pm") {
		return rec
	}

	day := model.Truncate(rec.Range.Start)
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	monday := day.AddDate(0, 0, -offset)

	days, err := weekdays(model.DateRange{Start: monday, End: monday.AddDate(0, 0, 6)})
	if err != nil || len(days) == 0 {
		appLog.Error("holiday: half term expansion failed", err, "label", rec.Label)
		return rec
	}

	out := rec
	out.Range = model.DateRange{Start: days[0], End: days[len(days)-1]}
	appLog.Debug("holiday: expanded half term",
		"label", strings.TrimSpace(rec.Label),
		"from", rec.Range.String(),
		"to", out.Range.String(),
	)
	return out
}

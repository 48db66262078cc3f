package ics

import (
	"sort"
	"strings"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

const dateKey = "20060102"

// uidNamespace scopes the name-based UUIDs of this generator.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:penrice-calendar-scraper:event"))

// FeedOptions holds the VCALENDAR level properties.
type FeedOptions struct {
	ProdID string
	Name   string
}

// UID derives the stable identifier of an event from its summary and
// inclusive range. The same inputs always give the same UID.
func UID(summary string, r model.DateRange, domain string) string {
	name := summary + "|" + r.Start.Format(dateKey) + "|" + r.End.Format(dateKey)
	id := uuid.NewSHA1(uidNamespace, []byte(name)).String()
	if domain == "" {
		return id
	}
	return id + "@" + domain
}

// NewCalendarEvent converts a record into its serialization-ready form. The
// record label becomes the summary; the exclusive end is one day after the
// inclusive range end.
func NewCalendarEvent(rec model.EventRecord, domain string) model.CalendarEvent {
	start := model.Truncate(rec.Range.Start)
	end := model.Truncate(rec.Range.End)
	return model.CalendarEvent{
		UID:     UID(rec.Label, model.DateRange{Start: start, End: end}, domain),
		Summary: rec.Label,
		Start:   start,
		End:     end.AddDate(0, 0, 1),
	}
}

type eventKey struct {
	summary    string
	start, end string
}

func keyOf(ev model.CalendarEvent) eventKey {
	return eventKey{summary: ev.Summary, start: ev.Start.Format(dateKey), end: ev.End.Format(dateKey)}
}

// SortEvents orders events by start, summary and end, and drops events that
// repeat an earlier (summary, start, end) triple. The input is not modified.
func SortEvents(events []model.CalendarEvent) []model.CalendarEvent {
	sorted := append([]model.CalendarEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Summary != b.Summary {
			return a.Summary < b.Summary
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Description < b.Description
	})
	return lo.UniqBy(sorted, keyOf)
}

// Serialize renders events as one iCalendar document. The output depends only
// on the set of events and opts: input order does not matter and no wall
// clock value is written. DTSTAMP is the event start at 00:00 UTC.
func Serialize(events []model.CalendarEvent, opts FeedOptions) []byte {
	cal := ical.NewCalendar()
	if opts.ProdID != "" {
		cal.SetProductId(opts.ProdID)
	}
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range SortEvents(events) {
		vev := cal.AddEvent(ev.UID)
		vev.SetDtStampTime(model.Truncate(ev.Start))
		vev.SetAllDayStartAt(ev.Start)
		vev.SetAllDayEndAt(ev.End)
		vev.SetSummary(ev.Summary)
		if d := strings.TrimSpace(ev.Description); d != "" {
			vev.SetDescription(d)
		}
	}

	// RFC 5545 lines end in CRLF whatever the build OS.
	return []byte(cal.Serialize(ical.WithNewLineWindows))
}

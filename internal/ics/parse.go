package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

// ParseFeed reads back a feed produced by Serialize. Folded lines are joined
// and escaped text is unescaped by the parser. Dates come back as midnight
// UTC with End still exclusive; use CalendarEvent.Inclusive for the range.
//
// A VEVENT without UID or dates is logged and skipped.
func ParseFeed(body []byte) ([]model.CalendarEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	events := make([]model.CalendarEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent parse failed", "err", perr, "uid", ve.Id())
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.CalendarEvent, error) {
	var out model.CalendarEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	// All-day values are parsed in time.Local; only the calendar day is kept.
	start, err := ve.GetAllDayStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = model.Truncate(start)

	end, err := ve.GetAllDayEndAt()
	if err != nil {
		// A missing DTEND on a date-valued event means one day.
		out.End = out.Start.AddDate(0, 0, 1)
	} else {
		out.End = model.Truncate(end)
	}

	if !out.End.After(out.Start) {
		return out, fmt.Errorf("DTEND %s not after DTSTART %s", out.End.Format(dateKey), out.Start.Format(dateKey))
	}
	return out, nil
}

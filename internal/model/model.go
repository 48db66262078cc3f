package model

import "time"

// Day is one calendar day. Every date in this module is a midnight UTC value
// so that comparisons and AddDate arithmetic never cross DST boundaries.
const Day = 24 * time.Hour

// Date returns the midnight UTC value for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping its calendar day.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DateRange is an inclusive span of calendar days. Start == End describes a
// single day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Single returns the one-day range for d.
func Single(d time.Time) DateRange {
	d = Truncate(d)
	return DateRange{Start: d, End: d}
}

// Valid reports whether Start <= End.
func (r DateRange) Valid() bool {
	return !r.End.Before(r.Start)
}

// Days is the inclusive number of days covered by r.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/Day) + 1
}

// String renders r as "2006-01-02..2006-01-02".
func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// Origin records which pipeline stage produced an EventRecord.
type Origin int

const (
	OriginScraped Origin = iota
	OriginInferredHoliday
)

func (o Origin) String() string {
	switch o {
	case OriginScraped:
		return "scraped"
	case OriginInferredHoliday:
		return "inferred_holiday"
	default:
		return "unknown"
	}
}

// EventRecord is a labelled date range produced by the parser (Scraped) or
// the holiday inferencer (InferredHoliday). Records are passed by value and
// never modified in place; transformations return new records.
type EventRecord struct {
	Label  string
	Range  DateRange
	Origin Origin
}

// CalendarEvent is the serialization-ready form of an EventRecord.
//
// End is exclusive, following the iCalendar convention for all-day events:
// a one-day event on 2024-12-25 has Start 2024-12-25 and End 2024-12-26.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string

	Start time.Time
	End   time.Time
}

// Inclusive converts the exclusive End back into the inclusive DateRange.
func (e CalendarEvent) Inclusive() DateRange {
	return DateRange{Start: e.Start, End: e.End.AddDate(0, 0, -1)}
}

// Package pipeline turns extracted text lines into a serialized calendar:
// parse, expand half terms, infer holidays, normalize, serialize.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/evenwebb/penrice-calendar-scraper/internal/datetext"
	"github.com/evenwebb/penrice-calendar-scraper/internal/holiday"
	"github.com/evenwebb/penrice-calendar-scraper/internal/ics"
	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
	"github.com/evenwebb/penrice-calendar-scraper/internal/normalize"
)

var (
	// ErrNoLines means the page yielded no text at all.
	ErrNoLines = errors.New("no lines to parse")
	// ErrNoEvents means no line carried a usable date, or every record was
	// filtered out. No feed is produced in either case.
	ErrNoEvents = errors.New("no events found")
)

const (
	StrategyGaps    = "gaps"
	StrategyMarkers = "markers"
)

const holidayDescription = "Inferred from the gap between terms"

// Options is the complete configuration of one Run.
type Options struct {
	IncludeScraped  bool
	IncludeHolidays bool
	HolidayStrategy string // StrategyGaps (default) or StrategyMarkers

	ExpandHalfTerm bool
	SeasonNames    bool
	Describe       bool

	TitleCaseWords []string
	SummaryPrefix  string
	UIDDomain      string
	Feed           ics.FeedOptions

	// Now and Rollover drive year inference for dates without a year.
	Now      time.Time
	Rollover time.Duration
}

// Result is everything one Run produced.
type Result struct {
	// Records are the normalized records in emission order.
	Records []model.EventRecord
	// Events are sorted and de-duplicated, in feed order.
	Events []model.CalendarEvent
	Feed   []byte
}

// Run processes lines into a feed. Lines that fail to parse are logged and
// skipped; only the pipeline-level conditions ErrNoLines and ErrNoEvents are
// returned.
func Run(lines []string, opts Options) (Result, error) {
	if len(lines) == 0 {
		return Result{}, ErrNoLines
	}

	scraped := parseLines(lines, opts)
	if len(scraped) == 0 {
		return Result{}, fmt.Errorf("%w: none of %d lines carried a date", ErrNoEvents, len(lines))
	}

	var holidays []model.EventRecord
	if opts.IncludeHolidays {
		holidays = inferHolidays(scraped, opts.HolidayStrategy)
	}

	var records []model.EventRecord
	if opts.IncludeScraped {
		records = append(records, scraped...)
	}
	records = append(records, holidays...)
	if len(records) == 0 {
		return Result{}, fmt.Errorf("%w: %d scraped records, none selected", ErrNoEvents, len(scraped))
	}

	norm := normalize.New(normalize.Options{
		TitleCaseWords: opts.TitleCaseWords,
		Prefix:         opts.SummaryPrefix,
		SeasonNames:    opts.SeasonNames,
	})
	records = lo.Map(records, func(rec model.EventRecord, _ int) model.EventRecord {
		return norm.Normalize(rec)
	})

	events := lo.Map(records, func(rec model.EventRecord, _ int) model.CalendarEvent {
		ev := ics.NewCalendarEvent(rec, opts.UIDDomain)
		if opts.Describe {
			ev.Description = describe(rec)
		}
		return ev
	})
	events = ics.SortEvents(events)

	appLog.Info("pipeline completed",
		"lines", len(lines),
		"scraped", len(scraped),
		"holidays", len(holidays),
		"events", len(events),
	)

	return Result{
		Records: records,
		Events:  events,
		Feed:    ics.Serialize(events, opts.Feed),
	}, nil
}

func parseLines(lines []string, opts Options) []model.EventRecord {
	parser := datetext.NewParser(opts.Now, opts.Rollover)

	var out []model.EventRecord
	for _, line := range lines {
		recs, err := parser.Parse(line)
		if err != nil {
			appLog.Warn("skipping malformed line", "line", line, "err", err)
			continue
		}
		if len(recs) == 0 {
			appLog.Debug("no date on line", "line", line)
			continue
		}
		if opts.ExpandHalfTerm {
			recs = lo.Map(recs, func(rec model.EventRecord, _ int) model.EventRecord {
				return holiday.ExpandHalfTerm(rec, line)
			})
		}
		out = append(out, recs...)
	}
	return out
}

func inferHolidays(scraped []model.EventRecord, strategy string) []model.EventRecord {
	switch strategy {
	case StrategyMarkers:
		return holiday.InferFromMarkers(scraped)
	default:
		ranges := lo.Map(scraped, func(rec model.EventRecord, _ int) model.DateRange {
			return rec.Range
		})
		return holiday.Infer(ranges)
	}
}

func describe(rec model.EventRecord) string {
	if rec.Origin == model.OriginInferredHoliday {
		return holidayDescription
	}
	if rec.Range.Days() < 2 {
		return ""
	}
	n := holiday.SchoolDays(rec.Range)
	if n == 1 {
		return "1 school day"
	}
	return fmt.Sprintf("%d school days", n)
}

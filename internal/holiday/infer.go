// Package holiday derives holiday periods from the gaps between term ranges.
package holiday

import (
	"sort"
	"strings"
	"time"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

// Infer returns one InferredHoliday record per gap between the given ranges.
//
// Ranges are walked in start order while tracking the furthest end seen so
// far, so nested or overlapping ranges form one continuous block. Adjacent
// ranges (next start is the day after the block end) leave no gap. Nothing is
// inferred before the first range or after the last one. The input slice is
// not modified.
func Infer(ranges []model.DateRange) []model.EventRecord {
	if len(ranges) < 2 {
		return nil
	}

	sorted := append([]model.DateRange(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var out []model.EventRecord
	blockEnd := sorted[0].End
	for _, next := range sorted[1:] {
		if gap, ok := between(blockEnd, next.Start); ok {
			out = append(out, newHoliday(gap))
		}
		if next.End.After(blockEnd) {
			blockEnd = next.End
		}
	}
	return out
}

// InferFromMarkers pairs every "End of Term" record with the next record, by
// start date, whose label contains "Term Begins" and returns the days in
// between as holidays.
func InferFromMarkers(records []model.EventRecord) []model.EventRecord {
	sorted := append([]model.EventRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Before(sorted[j].Range.Start)
	})

	var out []model.EventRecord
	for i, rec := range sorted {
		if !containsFold(rec.Label, "end of term") {
			continue
		}
		for _, next := range sorted[i+1:] {
			if !containsFold(next.Label, "term begins") {
				continue
			}
			if gap, ok := between(rec.Range.End, next.Range.Start); ok {
				out = append(out, newHoliday(gap))
			}
			break
		}
	}
	return out
}

// between returns the days strictly after last and strictly before first.
func between(last, first time.Time) (model.DateRange, bool) {
	gap := model.DateRange{
		Start: last.AddDate(0, 0, 1),
		End:   first.AddDate(0, 0, -1),
	}
	return gap, gap.Valid()
}

func newHoliday(r model.DateRange) model.EventRecord {
	return model.EventRecord{
		Label:  Name(r.Start),
		Range:  r,
		Origin: model.OriginInferredHoliday,
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
